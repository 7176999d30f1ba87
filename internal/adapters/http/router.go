package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter registers the door access HTTP routes and middleware stack.
// The member surface sits under /api/door, the device surface under
// /api/device; they use different authentication middleware.
func NewRouter(handler *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/api/door", func(r chi.Router) {
		r.Get("/whoami", handler.whoami)
		r.Group(func(r chi.Router) {
			r.Use(handler.memberAuthMiddleware)
			r.Post("/open/{area}", handler.openDoor)
		})
	})

	r.Route("/api/device", func(r chi.Router) {
		r.Use(handler.deviceAuthMiddleware)
		r.Post("/poll", handler.devicePoll)
		r.Post("/confirm", handler.deviceConfirm)
	})

	return r
}
