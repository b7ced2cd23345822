/*
Package handler provides the HTTP handlers and routing setup for the PeerCall server.

This file contains the authentication handlers: account registration, login,
and password change. Tokens issued here carry the identity claims the
signaling relay later trusts on the WebSocket.
*/
package handler

import (
	"net/http"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"peercall/internal/app/db"
	"peercall/internal/pkg/auth/jwt"
	"peercall/internal/pkg/errs"
	"peercall/internal/pkg/logx"
	"peercall/internal/pkg/req"
	"peercall/internal/pkg/resp"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// userView shapes an account row for API responses. The password hash never leaves the store.
func userView(deps *AppDeps, u db.User) map[string]any {
	return map[string]any{
		"id":        u.ID.String(),
		"username":  u.Username,
		"email":     u.Email,
		"avatar":    deps.FullAssetURL(u.AvatarKey.String),
		"createdAt": u.CreatedAt.Time.Format(time.RFC3339),
	}
}

func issueToken(deps *AppDeps, u db.User) (string, error) {
	payload := &jwt.Payload{
		UserID:      u.ID.String(),
		DisplayName: u.Username,
	}
	return jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
}

func validPassword(password string) bool {
	length := utf8.RuneCountInString(password)
	return length >= 8 && length <= 50
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister processes the request to create a new user account.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}
		if !emailRegex.MatchString(input.Email) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}
		if !validPassword(input.Password) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		user, err := deps.DB.CreateUser(r.Context(), db.CreateUserParams{
			Username:     input.Username,
			Email:        input.Email,
			PasswordHash: string(hashedPassword),
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("registration conflict: username or email already exists", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists, "username or email"))
				return
			}

			logx.Error(err, "failed to create user in database")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		token, err := issueToken(deps, user)
		if err != nil {
			logx.Error(err, "failed to generate token after registration")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("User registered", "user_id", user.ID.String(), "username", user.Username)

		resp.RespondCreated(w, r, map[string]any{
			"token": token,
			"user":  userView(deps, user),
		})
	}
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies user credentials and issues a JWT token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		user, err := deps.DB.GetUserByEmail(r.Context(), input.Email)
		if err != nil {
			logx.Warn("login: user fetch failed", "email", input.Email)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "email", input.Email)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		token, err := issueToken(deps, user)
		if err != nil {
			logx.Error(err, "login: jwt generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("User logged in", "user_id", user.ID.String())

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  userView(deps, user),
		})
	}
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleChangePassword rotates the account password after verifying the current one.
func HandleChangePassword(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input ChangePasswordInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.CurrentPassword == input.NewPassword {
			resp.RespondError(w, r, errs.NewError(errs.ErrSamePassword))
			return
		}
		if !validPassword(input.NewPassword) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		var userUUID pgtype.UUID
		if err := userUUID.Scan(identity.UserID); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		user, err := deps.DB.GetUserByID(r.Context(), userUUID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
			logx.Warn("password change: current password mismatch", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrOldPasswordInvalid))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		err = deps.DB.UpdateUserPassword(r.Context(), db.UpdateUserPasswordParams{
			ID:           userUUID,
			PasswordHash: string(hashedPassword),
		})
		if err != nil {
			logx.Error(err, "failed to update user password in database", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Password changed", "user_id", identity.UserID)

		resp.RespondSuccess(w, r, map[string]any{
			"message": "Password changed successfully",
		})
	}
}
