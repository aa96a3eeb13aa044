package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/icard-hq/apiserver/internal/mailer"
	"github.com/icard-hq/apiserver/internal/services"
	"github.com/icard-hq/apiserver/internal/store"
	"github.com/icard-hq/apiserver/types"
)

// AuthHandler provides the account lifecycle endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	sessions *SessionManager
}

func NewAuthHandler(accounts *services.AccountService, sessions *SessionManager) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions}
}

// AuthRouter registers account routes on the given router.
func AuthRouter(r chi.Router, accounts *services.AccountService, sessions *SessionManager) {
	handler := NewAuthHandler(accounts, sessions)

	r.Post("/login", handler.Login)
	r.Post("/verify-otp", handler.VerifyOTP)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)
	r.Post("/logout", handler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(sessions.RequireAuth)
		r.Post("/register", handler.Register)
		r.Post("/change-password", handler.ChangePassword)
		r.Get("/profile", handler.Profile)
		r.Put("/profile", handler.UpdateProfile)
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess := sessionFromContext(r.Context())
	user, err := h.accounts.Login(r.Context(), sess, req.Email, req.Password)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	MobileNo string `json:"mobile_no"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess := sessionFromContext(r.Context())
	user, err := h.accounts.Register(r.Context(), sess, services.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		MobileNo: req.MobileNo,
		Password: req.Password,
		Role:     types.Role(req.Role),
	})
	if err != nil {
		var deliveryErr *mailer.DeliveryError
		if errors.As(err, &deliveryErr) {
			// The account exists and the challenge is pending; the client
			// should retry the verification mail.
			_ = h.sessions.Save(r.Context(), w, sess)
			writeError(w, http.StatusBadGateway, "account created but the verification email could not be sent")
			return
		}
		writeAccountError(w, err)
		return
	}
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess := sessionFromContext(r.Context())
	user, err := h.accounts.VerifyOTP(r.Context(), sess, req.Email, req.Code)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess := sessionFromContext(r.Context())
	if err := h.accounts.ForgotPassword(r.Context(), sess, req.Email); err != nil {
		var deliveryErr *mailer.DeliveryError
		if errors.As(err, &deliveryErr) {
			_ = h.sessions.Save(r.Context(), w, sess)
			writeError(w, http.StatusBadGateway, "failed to send the reset email")
			return
		}
		writeAccountError(w, err)
		return
	}
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "otp sent"})
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess := sessionFromContext(r.Context())
	if err := h.accounts.ResetPassword(r.Context(), sess, req.Email, req.Code, req.NewPassword); err != nil {
		writeAccountError(w, err)
		return
	}
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess := sessionFromContext(r.Context())
	if err := h.accounts.ChangePassword(r.Context(), sess, req.OldPassword, req.NewPassword); err != nil {
		writeAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// Logout drops the session regardless of its current state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := h.sessions.Clear(r.Context(), w, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type ProfileResponse struct {
	User    types.User     `json:"user"`
	Address *types.Address `json:"address,omitempty"`
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	user, addr, err := h.accounts.Profile(r.Context(), sess)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{User: user, Address: addr})
}

type UpdateProfileRequest struct {
	FullName string        `json:"full_name"`
	MobileNo string        `json:"mobile_no"`
	Address  types.Address `json:"address"`
	ImageKey string        `json:"image_key"`
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess := sessionFromContext(r.Context())
	user, err := h.accounts.UpdateProfile(r.Context(), sess, services.ProfileInput{
		FullName:  req.FullName,
		MobileNo:  req.MobileNo,
		Address:   req.Address,
		ImageKey:  req.ImageKey,
		IPAddress: r.RemoteAddr,
	})
	if err != nil {
		writeAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// writeAccountError maps account lifecycle errors to HTTP statuses. Auth
// failures keep their deliberately generic messages.
func writeAccountError(w http.ResponseWriter, err error) {
	var authErr *services.AuthError
	if errors.As(err, &authErr) {
		writeError(w, http.StatusUnauthorized, authErr.Error())
		return
	}
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	switch {
	case errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, services.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "admin access required")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
