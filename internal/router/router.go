package router

import (
	"campustrade-api/internal/handler"
	"campustrade-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler             *handler.Handler
	AuthHandler         *handler.AuthHandler
	ListingHandler      *handler.ListingHandler
	TransactionHandler  *handler.TransactionHandler
	ReviewHandler       *handler.ReviewHandler
	NotificationHandler *handler.NotificationHandler
	MessageHandler      *handler.MessageHandler
	AdminHandler        *handler.AdminHandler
	WebSocketHandler    *handler.WebSocketHandler

	Authenticator  middleware.Authenticator
	AllowedOrigins []string
	Logger         *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := middleware.NewAuthMiddleware(cfg.Authenticator)
	optionalAuth := middleware.NewOptionalAuthMiddleware(cfg.Authenticator)

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// PUBLIC routes. A valid token, when present, identifies the viewer.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)

			if cfg.AuthHandler != nil {
				r.Post("/auth/register", cfg.AuthHandler.Register)
				r.Post("/auth/login", cfg.AuthHandler.Login)
			}
			if cfg.ListingHandler != nil {
				r.Get("/categories", cfg.ListingHandler.Categories)
				r.Get("/listings", cfg.ListingHandler.Search)
				r.Get("/listings/{id}", cfg.ListingHandler.Get)
			}
			if cfg.ReviewHandler != nil {
				r.Get("/users/{id}/reviews", cfg.ReviewHandler.ListForUser)
				r.Get("/users/{id}/reviews/stats", cfg.ReviewHandler.Stats)
			}
		})

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			if cfg.AuthHandler != nil {
				r.Post("/auth/logout", cfg.AuthHandler.Logout)
				r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
				r.Get("/auth/me", cfg.AuthHandler.Me)
				r.Put("/me/profile", cfg.AuthHandler.UpdateProfile)
				r.Put("/me/password", cfg.AuthHandler.ChangePassword)
				r.Get("/me/stats", cfg.AuthHandler.Stats)
			}

			if cfg.ListingHandler != nil {
				r.Get("/me/listings", cfg.ListingHandler.Mine)
				r.Post("/listings", cfg.ListingHandler.Create)
				r.Put("/listings/{id}", cfg.ListingHandler.Update)
				r.Delete("/listings/{id}", cfg.ListingHandler.Delete)
				r.Put("/listings/{id}/status", cfg.ListingHandler.SetStatus)
			}

			if cfg.TransactionHandler != nil {
				r.Route("/transactions", func(r chi.Router) {
					r.Get("/", cfg.TransactionHandler.List)
					r.Post("/", cfg.TransactionHandler.Create)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", cfg.TransactionHandler.Get)
						r.Post("/accept", cfg.TransactionHandler.Accept)
						r.Post("/reject", cfg.TransactionHandler.Reject)
						r.Post("/start", cfg.TransactionHandler.Start)
						r.Post("/complete", cfg.TransactionHandler.Complete)
						r.Post("/cancel", cfg.TransactionHandler.Cancel)
						r.Post("/dispute", cfg.TransactionHandler.Dispute)

						if cfg.ReviewHandler != nil {
							r.Get("/reviews", cfg.ReviewHandler.ListForTransaction)
							r.Post("/reviews", cfg.ReviewHandler.Create)
							r.Get("/reviews/eligibility", cfg.ReviewHandler.Eligibility)
						}
					})
				})
			}

			if cfg.NotificationHandler != nil {
				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", cfg.NotificationHandler.List)
					r.Get("/unread-count", cfg.NotificationHandler.UnreadCount)
					r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
					r.Post("/{id}/read", cfg.NotificationHandler.MarkRead)
					r.Delete("/{id}", cfg.NotificationHandler.Delete)
				})
			}

			if cfg.MessageHandler != nil {
				r.Route("/messages", func(r chi.Router) {
					r.Get("/", cfg.MessageHandler.Conversations)
					r.Post("/", cfg.MessageHandler.Send)
					r.Get("/unread-count", cfg.MessageHandler.UnreadCount)
					r.Get("/with/{user_id}", cfg.MessageHandler.Conversation)
					r.Post("/with/{user_id}/read", cfg.MessageHandler.MarkConversationRead)
					r.Post("/{id}/read", cfg.MessageHandler.MarkRead)
					r.Delete("/{id}", cfg.MessageHandler.Delete)
				})
			}

			if cfg.WebSocketHandler != nil {
				r.Get("/ws", cfg.WebSocketHandler.Serve)
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Get("/disputes", cfg.AdminHandler.Disputes)
					r.Post("/disputes/{id}/resolve", cfg.AdminHandler.Resolve)
				})
			}
		})
	})

	return r
}
