package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. An empty apiKey leaves the
// admin API open for local development.
func SetupRoutes(h *Handlers, apiKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		if apiKey != "" {
			r.Use(requireAPIKey(apiKey))
		}

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Get("/{id}", h.GetRule)
			r.Put("/{id}", h.UpdateRule)
			r.Delete("/{id}", h.DeleteRule)
			r.Post("/{id}/toggle", h.ToggleRule)
			r.Post("/{id}/reset", h.ResetRuleStats)
		})

		r.Route("/smartbot", func(r chi.Router) {
			r.Get("/stats", h.GetSmartBotStats)
			r.Get("/history", h.GetReplyHistory)
			r.Delete("/history", h.ClearReplyHistory)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", h.ListWebhooks)
			r.Post("/", h.CreateWebhook)
			r.Get("/stats", h.GetWebhookStats)
			r.Get("/{id}", h.GetWebhook)
			r.Put("/{id}", h.UpdateWebhook)
			r.Delete("/{id}", h.DeleteWebhook)
			r.Post("/{id}/test", h.TestWebhook)
			r.Get("/{id}/logs", h.GetWebhookLogs)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/status", h.GetSessionStatus)
			r.Get("/qr", h.GetSessionQR)
		})

		r.Post("/messages/send", h.SendMessage)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Get("/{id}", h.GetCampaign)
			r.Delete("/{id}", h.DeleteCampaign)
			r.Post("/{id}/start", h.StartCampaign)
			r.Post("/{id}/cancel", h.CancelCampaign)
		})
	})

	return r
}

// requireAPIKey accepts the key via X-API-Key or a bearer token.
func requireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := req.Header.Get("X-API-Key")
			if key == "" {
				const prefix = "Bearer "
				if auth := req.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
					key = auth[len(prefix):]
				}
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
