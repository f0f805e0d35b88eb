package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	myMiddleware "patrolchat/pkg/middleware"
)

func (s *Server) Routes() *chi.Mux {
	r := s.router
	r.Use(cors.Handler(cors.Options{
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(myMiddleware.Logging(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/chat", func(r chi.Router) {
		r.Use(myMiddleware.Authenticator(s.verifier))
		r.Use(httprate.Limit(
			s.cfg.RateLimitPerMin,
			time.Minute,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
				if uid := myMiddleware.UIDFromContext(r.Context()); uid != "" {
					return "user:" + uid, nil
				}
				return "ip:" + r.RemoteAddr, nil
			}),
		))
		r.Post("/message", s.SendMessage())
		r.Get("/conversation/{conversationId}", s.GetConversation())
		r.Get("/conversation", s.GetConversations())
		r.Post("/conversation/{conversationId}/read", s.MarkConversationAsRead())
		r.Patch("/user/conversation/{conversationId}", s.UpdateUserConversation())
		r.Get("/contacts/{query}", s.GetContacts())
	})

	r.Get("/chat/ws", s.ServeWs())

	return r
}
