package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/service"
	"github.com/calliri/hearth/pkg/middleware"
	"github.com/calliri/hearth/pkg/validator"
)

// AuthHandler serves the credential and session endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	invites *service.InviteService
	devices *service.DeviceService
	logger  *slog.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(
	auth *service.AuthService,
	invites *service.InviteService,
	devices *service.DeviceService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{auth: auth, invites: invites, devices: devices, logger: logger}
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func toUserResponse(u *domain.User) *userResponse {
	return &userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role.String(),
	}
}

type sessionResponse struct {
	Status       string        `json:"status"`
	AccessToken  string        `json:"access_token,omitempty"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	User         *userResponse `json:"user,omitempty"`
}

func toSessionResponse(res *service.LoginResult) *sessionResponse {
	out := &sessionResponse{
		Status:       res.Status,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
	if res.User != nil && res.Status != service.StatusPasswordSetupRequired {
		out.User = toUserResponse(res.User)
	}
	return out
}

type loginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		RefreshToken: req.RefreshToken,
		ClientIP:     clientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(result))
}

type setupPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required"`
}

// SetupPassword handles POST /auth/setup-password, the one-time first-login
// password establishment.
func (h *AuthHandler) SetupPassword(w http.ResponseWriter, r *http.Request) {
	var req setupPasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.SetupPassword(r.Context(), req.Email, req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(result))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh handles POST /auth/refresh, rotating the presented refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type registerRequest struct {
	Token      string `json:"token" validate:"required"`
	Password   string `json:"password" validate:"required"`
	FirstName  string `json:"first_name" validate:"max=100"`
	LastName   string `json:"last_name" validate:"max=100"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

// Register handles POST /auth/register, redeeming an invite into a new
// account. When a device name is supplied the device is registered in the
// same call and a full token pair comes back; otherwise the client gets an
// access token and registers its device separately.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.invites.ConsumeInvite(r.Context(), req.Token, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, err)
		return
	}

	access, err := h.auth.IssueAccessToken(user)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := &sessionResponse{
		Status:      service.StatusDeviceRequired,
		AccessToken: access,
		User:        toUserResponse(user),
	}

	if req.DeviceName != "" {
		_, secret, err := h.devices.Register(r.Context(), user.ID, req.DeviceName)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Status = service.StatusAuthenticated
		resp.RefreshToken = secret
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	user, err := h.auth.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// ChangePassword handles POST /auth/change-password. All registered
// devices are revoked as a side effect, so other sessions die with the old
// password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if err := h.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

type deviceResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Revoked    bool      `json:"revoked"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}
