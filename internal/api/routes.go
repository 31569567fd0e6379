package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router. adminToken, when non-empty, protects
// the operator endpoints under /api.
func SetupRoutes(h *Handlers, hc *HealthChecker, adminToken string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Relay-Token", "X-Gumroad-Secret"},
		MaxAge:         300,
	}))

	// Health checks (no auth)
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)

	// Inbound boundaries (the webhook carries its own shared secret)
	r.Post("/webhook/gumroad", h.HandlePurchaseWebhook)
	r.Post("/registro", h.HandleRegister)

	// Operator endpoints
	r.Route("/api", func(r chi.Router) {
		if adminToken != "" {
			r.Use(tokenAuth(adminToken))
		}
		r.Get("/deliveries", h.HandleDeliveries)
		r.Get("/deliveries/followups", h.HandleFollowUps)
	})

	return r
}

func tokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Relay-Token") != token {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
