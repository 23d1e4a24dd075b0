package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the configured browser origins call the API with a bearer token and
// read the request id and replay marker back.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
