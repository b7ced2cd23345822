/*
Package handler provides the HTTP handlers and routing setup for the PeerCall server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"peercall/internal/pkg/auth/jwt"
	"peercall/internal/pkg/limiter"
	"peercall/internal/pkg/logx"
	"peercall/internal/pkg/resp"
)

const (
	// Room identifier issuance is cheap but abusable; keep it slow per IP.
	CreateRoomRate  = 0.05
	CreateRoomBurst = 2

	// Auth endpoints do bcrypt work per request.
	AuthRate  = 0.5
	AuthBurst = 5

	// Each accepted upgrade costs a goroutine pair for the connection lifetime.
	ConnectRate  = 0.2
	ConnectBurst = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	createRoomLimiter := limiter.NewIPRateLimiter(rate.Limit(CreateRoomRate), CreateRoomBurst)
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		logx.Info("Health check endpoint hit")

		data := map[string]string{
			"status":  "ok",
			"service": "PeerCall Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)

			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))

			auth.With(jwt.RequireAuth).Post("/change-password", HandleChangePassword(deps))
		})

		api.Route("/user", func(user chi.Router) {
			user.Use(jwt.RequireAuth)

			user.Get("/profile", HandleGetProfile(deps))
			user.Post("/profile", HandleUpdateProfile(deps))
			user.Delete("/profile", HandleDeleteAccount(deps))

			user.Post("/avatar/presign", HandleAvatarPresign(deps))
			user.Post("/avatar/confirm", HandleAvatarConfirm(deps))
		})

		api.Route("/rooms", func(rooms chi.Router) {
			rooms.With(jwt.RequireAuth, createRoomLimiter.Middleware).
				Post("/", HandleCreateRoom(deps))
			rooms.Get("/{roomID}", HandleCheckRoom(deps))
		})

		api.Route("/call-logs", func(logs chi.Router) {
			logs.Use(jwt.RequireAuth)

			logs.Post("/", HandleCreateCallLog(deps))
			logs.Post("/end", HandleEndCallLog(deps))
			logs.Get("/", HandleListCallLogs(deps))
			logs.Get("/stats", HandleCallLogStats(deps))
		})
	})

	r.With(connectLimiter.Middleware).Get("/ws", HandleWebSocket(deps))

	return r
}
