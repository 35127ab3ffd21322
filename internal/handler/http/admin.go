package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/service"
	"github.com/calliri/hearth/pkg/validator"
)

// AdminHandler serves the admin-only endpoints.
type AdminHandler struct {
	invites *service.InviteService
	logger  *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(invites *service.InviteService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{invites: invites, logger: logger}
}

type createInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin user"`
}

type createInviteResponse struct {
	InviteID  string    `json:"invite_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateInvite handles POST /admin/invite. The plaintext invite token is
// returned once and never retrievable afterwards.
func (h *AdminHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.invites.CreateInvite(r.Context(), req.Email, domain.Role(req.Role))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &createInviteResponse{
		InviteID:  created.ID,
		Email:     created.Email,
		Role:      created.Role.String(),
		Token:     created.Token,
		ExpiresAt: created.ExpiresAt,
	})
}
