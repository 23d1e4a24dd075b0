package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/backend"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/redis"
)

// NewRouter mounts the storefront resource API. Session endpoints and the catalog
// are public; user, cart and order endpoints require a bearer token.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	svc backend.Service,
	idem redis.IdempotencyStore,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.DevServer.AllowedOrigins),
	)

	r.Get("/healthz", controllers.Health(cfg, dbP, logg))

	r.Post("/login", controllers.Login(svc, logg))
	r.Post("/signup", controllers.Signup(svc, logg))
	r.Get("/session", controllers.Session(svc, logg))

	r.Get("/products", controllers.Products(svc, logg))
	r.Get("/products/{id}", controllers.Product(svc, logg))
	r.Get("/brands", controllers.Brands(svc, logg))
	r.Get("/categories", controllers.Categories(svc, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(svc, logg))

		r.Patch("/users/{id}", controllers.UpdateUser(svc, logg))

		r.Get("/cart", controllers.CartByUser(svc, logg))
		r.Post("/cart", controllers.CartAdd(svc, logg))
		r.Patch("/cart/{id}", controllers.CartUpdate(svc, logg))
		r.Delete("/cart/{id}", controllers.CartDelete(svc, logg))

		r.Get("/orders", controllers.OrdersByUser(svc, logg))
		r.With(middleware.Idempotency(idem, cfg.DevServer.IdempotencyTTL, logg)).
			Post("/orders", controllers.OrderCreate(svc, logg))
	})

	return r
}
