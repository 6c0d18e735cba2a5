package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/auth"
)

// SetupRoutes wires all application routes: health, the WebSocket endpoint,
// and the JSON API for auth and history.
func SetupRoutes(h *Handler, authHandler *auth.Handler, history *HistoryHandler, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	r.Get("/", h.Health)
	r.Get("/ws", h.WebSocket)

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterRoutes(api)
		api.Get("/rooms", history.Rooms)
		api.Get("/history/group", history.Group)
		api.Get("/history/private", history.Private)
	})

	return r
}

// corsMiddleware reflects allowed origins for the SPA that serves the chat
// pages. The WebSocket endpoint has its own origin check in the upgrader.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(origin); ok {
			allowed[normalized] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				normalized, ok := normalizeOrigin(origin)
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if ok {
					if _, exists := allowed[normalized]; exists {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Vary", "Origin")
					}
				}
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
