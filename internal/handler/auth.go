package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/model"
	"storefront/internal/mw"
	"storefront/internal/service"
)

type Accounts interface {
	Register(ctx context.Context, email, password, name string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	IssueToken(user *model.User) (string, error)
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, upd service.ProfileUpdate) (*model.User, error)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func RegisterHandler(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := accounts.Register(r.Context(), req.Email, req.Password, req.Name)
		if err != nil {
			if msg, ok := validationMessage(err); ok {
				writeError(w, http.StatusBadRequest, msg)
				return
			}
			if errors.Is(err, service.ErrEmailTaken) {
				writeError(w, http.StatusConflict, "User already exists")
				return
			}
			internalError(w, "register failed", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": "User registered successfully",
			"user":    user,
		})
	}
}

func LoginHandler(accounts Accounts, secureCookie bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := accounts.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "Invalid credentials")
				return
			}
			internalError(w, "login failed", err)
			return
		}

		token, err := accounts.IssueToken(user)
		if err != nil {
			internalError(w, "token generation failed", err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     mw.TokenCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		})
		w.Header().Set("Authorization", "Bearer "+token)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"token":   token,
			"user":    user,
		})
	}
}

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     mw.TokenCookie,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
	}
}

func ProfileHandler(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		user, err := accounts.GetProfile(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "User not found")
				return
			}
			internalError(w, "get profile failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
	}
}

func UpdateProfileHandler(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		var upd service.ProfileUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}

		user, err := accounts.UpdateProfile(r.Context(), claims.UserID, upd)
		if err != nil {
			if msg, ok := validationMessage(err); ok {
				writeError(w, http.StatusBadRequest, msg)
				return
			}
			switch {
			case errors.Is(err, service.ErrUserNotFound):
				writeError(w, http.StatusNotFound, "User not found")
			case errors.Is(err, service.ErrEmailTaken):
				writeError(w, http.StatusConflict, "Email already in use")
			default:
				internalError(w, "update profile failed", err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
	}
}
