package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"peercall/internal/pkg/errs"
	"peercall/internal/pkg/logx"
	"peercall/internal/pkg/randx"
	"peercall/internal/pkg/resp"
)

// HandleCreateRoom mints a fresh room identifier for the caller to share.
// Rooms have no persistent existence: the identifier only becomes a live room
// when the first participant joins it over the signaling channel.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := randx.RoomID()

		logx.Info("Room identifier issued", "room_id", roomID)

		resp.RespondSuccess(w, r, map[string]any{
			"roomId": roomID,
		})
	}
}

// HandleCheckRoom is the pre-join probe: it validates the identifier format
// and reports the room's current occupancy. A room that nobody is in does not
// exist, and joining a nonexistent room is still fine, it just creates it.
// The occupancy answer may be stale by the time the caller's join arrives.
func HandleCheckRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		if !randx.IsValidRoomID(roomID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRoomID))
			return
		}

		occupancy, exists := deps.Relay.RoomOccupancy(roomID)
		capacity := deps.Relay.Capacity()

		resp.RespondSuccess(w, r, map[string]any{
			"roomId":       roomID,
			"exists":       exists,
			"participants": occupancy,
			"full":         capacity > 0 && occupancy >= capacity,
		})
	}
}
