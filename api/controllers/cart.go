package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

// CartByUser lists the cart named by the userId query parameter.
func CartByUser(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		userID := validators.SanitizeString(r.URL.Query().Get("userId"), 64)
		items, err := svc.Cart(r.Context(), actorID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func CartAdd(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body types.CartItem
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.AddToCart(r.Context(), actorID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func CartUpdate(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body types.CartItem
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id := validators.SanitizeString(chi.URLParam(r, "id"), 64)
		item, err := svc.UpdateCart(r.Context(), actorID, id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// CartDelete removes an entry and echoes its id.
func CartDelete(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id := validators.SanitizeString(chi.URLParam(r, "id"), 64)
		deleted, err := svc.DeleteFromCart(r.Context(), actorID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deleted)
	}
}

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	actorID := middleware.UserIDFromContext(r.Context())
	if actorID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return "", false
	}
	return actorID, true
}
