package handler

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"peercall/internal/app/db"
	"peercall/internal/pkg/errs"
	"peercall/internal/pkg/logx"
	"peercall/internal/pkg/randx"
	"peercall/internal/pkg/req"
	"peercall/internal/pkg/resp"
)

// callLogView shapes one call record for API responses.
func callLogView(cl db.CallLogWithPeers) map[string]any {
	view := map[string]any{
		"id":               cl.ID.String(),
		"callerId":         cl.CallerID.String(),
		"receiverId":       cl.ReceiverID.String(),
		"callerUsername":   cl.CallerUsername,
		"receiverUsername": cl.ReceiverUsername,
		"roomId":           cl.RoomID,
		"startTime":        cl.StartTime.Time.Format(time.RFC3339),
		"durationSeconds":  cl.DurationSeconds,
	}
	if cl.EndTime.Valid {
		view["endTime"] = cl.EndTime.Time.Format(time.RFC3339)
	}
	return view
}

type CreateCallLogInput struct {
	ReceiverID string `json:"receiverId"`
	RoomID     string `json:"roomId"`
}

// HandleCreateCallLog opens a call record for a room. The caller is the
// authenticated user; start time is the server clock.
func HandleCreateCallLog(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerUUID, customErr := requireUserUUID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input CreateCallLogInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var receiverUUID pgtype.UUID
		if err := receiverUUID.Scan(input.ReceiverID); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrCallLogInvalid))
			return
		}
		if receiverUUID == callerUUID {
			resp.RespondError(w, r, errs.NewError(errs.ErrCallLogInvalid))
			return
		}
		if !randx.IsValidRoomID(input.RoomID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRoomID))
			return
		}

		callLog, err := deps.DB.CreateCallLog(r.Context(), db.CreateCallLogParams{
			CallerID:   callerUUID,
			ReceiverID: receiverUUID,
			RoomID:     input.RoomID,
		})
		if err != nil {
			logx.Error(err, "failed to create call log", "room_id", input.RoomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondCreated(w, r, map[string]any{
			"callLog": map[string]any{
				"id":        callLog.ID.String(),
				"roomId":    callLog.RoomID,
				"startTime": callLog.StartTime.Time.Format(time.RFC3339),
			},
		})
	}
}

type EndCallLogInput struct {
	RoomID string `json:"roomId"`
}

// HandleEndCallLog closes the open call record for a room, stamping the end
// time and duration. Either party of the call may close it.
func HandleEndCallLog(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userUUID, customErr := requireUserUUID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input EndCallLogInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !randx.IsValidRoomID(input.RoomID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRoomID))
			return
		}

		open, err := deps.DB.GetOpenCallLog(r.Context(), input.RoomID)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrCallLogNotFound))
				return
			}
			logx.Error(err, "failed to fetch open call log", "room_id", input.RoomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if open.CallerID != userUUID && open.ReceiverID != userUUID {
			resp.RespondError(w, r, errs.NewError(errs.ErrCallLogNotFound))
			return
		}

		now := time.Now()
		duration := now.Sub(open.StartTime.Time)
		if duration < 0 {
			duration = 0
		}

		callLog, err := deps.DB.EndCallLog(r.Context(), db.EndCallLogParams{
			ID:              open.ID,
			EndTime:         pgtype.Timestamptz{Time: now, Valid: true},
			DurationSeconds: int32(duration.Seconds()),
		})
		if err != nil {
			logx.Error(err, "failed to end call log", "room_id", input.RoomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"callLog": map[string]any{
				"id":              callLog.ID.String(),
				"roomId":          callLog.RoomID,
				"endTime":         callLog.EndTime.Time.Format(time.RFC3339),
				"durationSeconds": callLog.DurationSeconds,
			},
		})
	}
}

// HandleListCallLogs returns the authenticated user's recent call history,
// newest first.
func HandleListCallLogs(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userUUID, customErr := requireUserUUID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logs, err := deps.DB.ListUserCallLogs(r.Context(), userUUID)
		if err != nil {
			logx.Error(err, "failed to list call logs")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		views := make([]map[string]any, 0, len(logs))
		for _, cl := range logs {
			views = append(views, callLogView(cl))
		}

		resp.RespondSuccess(w, r, map[string]any{"callLogs": views})
	}
}

// HandleCallLogStats returns aggregate call counters for the authenticated user.
func HandleCallLogStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userUUID, customErr := requireUserUUID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		stats, err := deps.DB.GetCallLogStats(r.Context(), userUUID)
		if err != nil {
			logx.Error(err, "failed to compute call log stats")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"stats": map[string]any{
				"totalCalls":      stats.TotalCalls,
				"completedCalls":  stats.CompletedCalls,
				"activeCalls":     stats.ActiveCalls,
				"totalDuration":   stats.TotalDuration,
				"averageDuration": stats.AverageDuration,
			},
		})
	}
}
