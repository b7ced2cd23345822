package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"peercall/internal/app/db"
	"peercall/internal/pkg/auth/jwt"
	"peercall/internal/pkg/errs"
	"peercall/internal/pkg/logx"
	"peercall/internal/pkg/req"
	"peercall/internal/pkg/resp"
)

const (
	// presignDuration is the validity window for avatar upload URLs.
	presignDuration = 15 * time.Minute

	// maxAvatarBytes caps avatar uploads at 5 MiB.
	maxAvatarBytes = 5 << 20
)

// avatarExtensions maps the accepted image MIME types to their stored file extension.
var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// requireUserUUID resolves the authenticated identity to a database UUID.
// Returns a nil error payload on success.
func requireUserUUID(r *http.Request) (pgtype.UUID, *errs.CustomError) {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		return pgtype.UUID{}, errs.NewError(errs.ErrUnauthorized)
	}

	var userUUID pgtype.UUID
	if err := userUUID.Scan(identity.UserID); err != nil {
		return pgtype.UUID{}, errs.NewError(errs.ErrUnauthorized)
	}
	return userUUID, nil
}

// HandleGetProfile returns the authenticated user's own profile.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userUUID, customErr := requireUserUUID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		user, err := deps.DB.GetUserByID(r.Context(), userUUID)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "failed to fetch user profile")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": userView(deps, user)})
	}
}

type UpdateProfileInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// HandleUpdateProfile updates username and/or email. Empty fields keep their current value.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userUUID, customErr := requireUserUUID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input UpdateProfileInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Username != "" && !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}
		if input.Email != "" && !emailRegex.MatchString(input.Email) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}

		user, err := deps.DB.UpdateUserProfile(r.Context(), db.UpdateUserProfileParams{
			ID:       userUUID,
			Username: input.Username,
			Email:    input.Email,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists, "username or email"))
				return
			}
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "failed to update user profile")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": userView(deps, user)})
	}
}

type DeleteAccountInput struct {
	Password string `json:"password"`
}

// HandleDeleteAccount removes the account and its call history after
// confirming the password. The stored avatar object is cleaned up best effort.
func HandleDeleteAccount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userUUID, customErr := requireUserUUID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input DeleteAccountInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		user, err := deps.DB.GetUserByID(r.Context(), userUUID)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "failed to fetch user before deletion")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("account deletion: password mismatch", "user_id", user.ID.String())
			resp.RespondError(w, r, errs.NewError(errs.ErrOldPasswordInvalid))
			return
		}

		if err := deps.DB.DeleteUser(r.Context(), userUUID); err != nil {
			logx.Error(err, "failed to delete user account", "user_id", user.ID.String())
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if user.AvatarKey.Valid && user.AvatarKey.String != "" {
			go func(key string) {
				ctx, cancel := newDetachedContext()
				defer cancel()
				if err := deps.Storage.Delete(ctx, key); err != nil {
					logx.Warn("failed to delete avatar object for removed account", "key", key, "error", err)
				}
			}(user.AvatarKey.String)
		}

		logx.Info("Account deleted", "user_id", user.ID.String())

		resp.RespondSuccess(w, r, map[string]any{
			"message": "Account deleted",
		})
	}
}

type AvatarPresignInput struct {
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandleAvatarPresign hands out a presigned PUT URL for a fresh avatar object.
// The client uploads directly to storage and then confirms the key.
func HandleAvatarPresign(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input AvatarPresignInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		ext, ok := avatarExtensions[input.MimeType]
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnsupportedMediaType))
			return
		}
		if input.FileSize <= 0 || input.FileSize > maxAvatarBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		key := fmt.Sprintf("avatars/%s/%s.%s", identity.UserID, uuid.New().String(), ext)

		uploadURL, err := deps.Storage.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, presignDuration)
		if err != nil {
			logx.Error(err, "failed to presign avatar upload", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"uploadUrl": uploadURL,
			"key":       key,
			"expiresIn": int(presignDuration.Seconds()),
		})
	}
}

type AvatarConfirmInput struct {
	Key string `json:"key"`
}

// HandleAvatarConfirm verifies that the claimed avatar object exists in
// storage and records the key on the account. The previous avatar object is
// deleted in the background.
func HandleAvatarConfirm(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		userUUID, customErr := requireUserUUID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input AvatarConfirmInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		// The key must sit under the caller's own avatar prefix and must not
		// traverse out of it.
		cleanKey := path.Clean(input.Key)
		expectedPrefix := "avatars/" + identity.UserID + "/"
		if cleanKey != input.Key || !strings.HasPrefix(cleanKey, expectedPrefix) {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarKeyInvalid))
			return
		}

		if _, err := deps.Storage.GetObjectMetadata(r.Context(), cleanKey); err != nil {
			logx.Warn("avatar confirm: object missing from storage", "key", cleanKey, "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarKeyInvalid))
			return
		}

		previous, err := deps.DB.GetUserByID(r.Context(), userUUID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		user, err := deps.DB.UpdateUserAvatar(r.Context(), db.UpdateUserAvatarParams{
			ID:        userUUID,
			AvatarKey: pgtype.Text{String: cleanKey, Valid: true},
		})
		if err != nil {
			logx.Error(err, "failed to store avatar key", "key", cleanKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if previous.AvatarKey.Valid && previous.AvatarKey.String != "" && previous.AvatarKey.String != cleanKey {
			go func(key string) {
				ctx, cancel := newDetachedContext()
				defer cancel()
				if err := deps.Storage.Delete(ctx, key); err != nil {
					logx.Warn("failed to delete replaced avatar object", "key", key, "error", err)
				}
			}(previous.AvatarKey.String)
		}

		resp.RespondSuccess(w, r, map[string]any{"user": userView(deps, user)})
	}
}
