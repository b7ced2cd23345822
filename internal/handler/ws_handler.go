package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"peercall/internal/app/identity"
	"peercall/internal/app/signaling"
	"peercall/internal/pkg/auth/jwt"
	"peercall/internal/pkg/logx"
)

const (
	wsReadBufferSize  = 4096
	wsWriteBufferSize = 4096
)

// newUpgrader builds the WebSocket upgrader with the origin policy from
// configuration. Development accepts any origin.
func newUpgrader(deps *AppDeps) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(deps.Config.AllowedOrigins))
	for _, origin := range deps.Config.AllowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}
}

// HandleWebSocket upgrades the connection and hands it to the signaling
// relay. Browsers cannot set headers on WebSocket requests, so the identity
// token travels in the "token" query parameter; connections without a valid
// token join as guests under a generated display name.
func HandleWebSocket(deps *AppDeps) http.HandlerFunc {
	upgrader := newUpgrader(deps)

	return func(w http.ResponseWriter, r *http.Request) {
		id := resolveIdentity(r, deps.Config.JWTSecret)

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error response.
			logx.Warn("WebSocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
			return
		}

		client := signaling.NewClient(deps.Relay, wsConn, id)

		go client.WritePump()
		client.ReadPump()
	}
}

// resolveIdentity derives the connection's identity claims from the token
// query parameter, falling back to a guest identity.
func resolveIdentity(r *http.Request, secret string) identity.Identity {
	if token := r.URL.Query().Get("token"); token != "" {
		payload, err := jwt.ParseToken(token, secret)
		if err == nil {
			return identity.Identity{
				UserID:      payload.UserID,
				DisplayName: payload.DisplayName,
			}
		}
		logx.Warn("Invalid token on signaling connection, continuing as guest", "error", err)
	}

	displayName := r.URL.Query().Get("displayName")
	if displayName == "" {
		displayName = "Guest"
	}

	return identity.Identity{
		UserID:      "guest-" + uuid.New().String(),
		DisplayName: displayName,
	}
}
