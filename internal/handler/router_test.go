package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"peercall/internal/app/identity"
	"peercall/internal/app/signaling"
	"peercall/internal/configs"
	"peercall/internal/pkg/auth/jwt"
	"peercall/internal/pkg/randx"
)

const testSecret = "test-secret"

func newTestDeps() *AppDeps {
	registry := signaling.NewRegistry()
	rooms := signaling.NewRoomTable(2)

	return &AppDeps{
		Relay: signaling.NewRelay(registry, rooms),
		Config: &configs.AppConfig{
			Environment:  "development",
			Port:         8080,
			RoomCapacity: 2,
			JWTSecret:    testSecret,
		},
	}
}

func testToken(t *testing.T, userID, displayName string) string {
	t.Helper()
	token, err := jwt.GenerateToken(&jwt.Payload{
		UserID:      userID,
		DisplayName: displayName,
	}, testSecret, jwt.UserIdentityExpiration)
	require.NoError(t, err)
	return token
}

func doRequest(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Zero(t, body.Code)
	return body.Data
}

func TestHealthEndpoint(t *testing.T) {
	router := Router(newTestDeps())

	rec := doRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	require.Equal(t, "ok", data["status"])
}

func TestCreateRoomRequiresAuth(t *testing.T) {
	router := Router(newTestDeps())

	rec := doRequest(router, http.MethodPost, "/api/rooms/", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRoomReturnsValidIdentifier(t *testing.T) {
	router := Router(newTestDeps())
	token := testToken(t, "u1", "Alice")

	rec := doRequest(router, http.MethodPost, "/api/rooms/", token)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	roomID, ok := data["roomId"].(string)
	require.True(t, ok)
	require.True(t, randx.IsValidRoomID(roomID))
}

func TestCheckRoomRejectsMalformedID(t *testing.T) {
	router := Router(newTestDeps())

	rec := doRequest(router, http.MethodGet, "/api/rooms/not-a-room", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckRoomReportsOccupancy(t *testing.T) {
	deps := newTestDeps()
	router := Router(deps)

	roomID := randx.RoomID()

	// Nobody has joined yet: the room does not exist.
	rec := doRequest(router, http.MethodGet, "/api/rooms/"+roomID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	require.Equal(t, false, data["exists"])
	require.Equal(t, float64(0), data["participants"])

	// Fill the room through the relay and probe again.
	joinRoom(t, deps.Relay, "u1", "Alice", roomID)
	joinRoom(t, deps.Relay, "u2", "Bob", roomID)

	rec = doRequest(router, http.MethodGet, "/api/rooms/"+roomID, "")
	data = decodeData(t, rec)
	require.Equal(t, true, data["exists"])
	require.Equal(t, float64(2), data["participants"])
	require.Equal(t, true, data["full"])
}

type discardSender struct{}

func (discardSender) Send(env signaling.Envelope) error { return nil }
func (discardSender) Close()                            {}

func joinRoom(t *testing.T, relay *signaling.Relay, userID, displayName, roomID string) {
	t.Helper()
	connID := relay.Connect(identity.Identity{UserID: userID, DisplayName: displayName}, discardSender{})
	env, err := signaling.NewEnvelope(signaling.TypeJoin, signaling.JoinPayload{RoomID: roomID})
	require.NoError(t, err)
	relay.Dispatch(connID, env)
}

func TestResolveIdentityFromToken(t *testing.T) {
	token := testToken(t, "u1", "Alice")

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	id := resolveIdentity(req, testSecret)

	require.Equal(t, "u1", id.UserID)
	require.Equal(t, "Alice", id.DisplayName)
}

func TestResolveIdentityGuestFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?displayName=Visitor", nil)
	id := resolveIdentity(req, testSecret)

	require.Equal(t, "Visitor", id.DisplayName)
	require.NotEmpty(t, id.UserID)

	// Two guests never share an identity.
	other := resolveIdentity(req, testSecret)
	require.NotEqual(t, id.UserID, other.UserID)
}

func TestResolveIdentityRejectsForgedToken(t *testing.T) {
	forged := testToken(t, "u1", "Alice")

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+forged, nil)
	id := resolveIdentity(req, "a-different-secret")

	// A bad signature demotes the connection to guest instead of keeping the claims.
	require.NotEqual(t, "u1", id.UserID)
}
