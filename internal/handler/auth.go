package handler

import (
	"net/http"
	"strings"

	"campustrade-api/internal/middleware"
	"campustrade-api/internal/model"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/response"
)

// AuthHandler handles account and session requests.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=2,max=20,username"`
	Password string `json:"password" validate:"required,min=8,max=72,password"`
}

// LoginRequest is the body of POST /auth/login. identifier is an email
// address or a username; email is accepted as well.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required_without=Email,max=254"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required"`
}

// UpdateProfileRequest is the body of PUT /me/profile. Omitted fields are
// left unchanged; an empty student_id clears it.
type UpdateProfileRequest struct {
	Username   *string `json:"username" validate:"omitempty,min=2,max=20,username"`
	StudentID  *string `json:"student_id" validate:"omitempty,alphanum,min=8,max=12"`
	Phone      *string `json:"phone" validate:"omitempty,len=10,numeric,startswith=09"`
	Department *string `json:"department" validate:"omitempty,max=120"`
	Bio        *string `json:"bio" validate:"omitempty,max=1000"`
}

// ChangePasswordRequest is the body of PUT /me/password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72,password"`
}

// LoginResponse carries the issued token and the account.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresIn int         `json:"expires_in"`
	User      *model.User `json:"user"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	u, err := h.auth.Register(r.Context(), req.Email, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, u)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	login := req.Identifier
	if login == "" {
		login = req.Email
	}
	token, u, err := h.auth.Login(r.Context(), login, req.Password)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, LoginResponse{
		Token:     token,
		ExpiresIn: int(h.auth.TokenTTL().Seconds()),
		User:      u,
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.TokenFromRequest(r)); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "revoked"})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.auth.Refresh(r.Context(), middleware.TokenFromRequest(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"token":      token,
		"expires_in": int(h.auth.TokenTTL().Seconds()),
	})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.User(r.Context(), actor(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, u)
}

// UpdateProfile handles PUT /api/v1/me/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	u, err := h.auth.UpdateProfile(r.Context(), actor(r), model.ProfilePatch{
		Username:   req.Username,
		StudentID:  req.StudentID,
		Phone:      req.Phone,
		Department: req.Department,
		Bio:        req.Bio,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, u)
}

// ChangePassword handles PUT /api/v1/me/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), actor(r), req.OldPassword, req.NewPassword); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "changed"})
}

// Stats handles GET /api/v1/me/stats
func (h *AuthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.auth.UserStats(r.Context(), actor(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}
