package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

// OrderCreate places an order. Replays of the same Idempotency-Key are answered by
// the idempotency middleware before this handler runs.
func OrderCreate(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body types.Order
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CreateOrder(r.Context(), actorID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func OrdersByUser(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		userID := validators.SanitizeString(r.URL.Query().Get("userId"), 64)
		orders, err := svc.Orders(r.Context(), actorID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}
