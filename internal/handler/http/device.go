package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/service"
	"github.com/calliri/hearth/pkg/middleware"
	"github.com/calliri/hearth/pkg/validator"
)

// DeviceHandler serves the device registry endpoints.
type DeviceHandler struct {
	devices *service.DeviceService
	logger  *slog.Logger
}

// NewDeviceHandler creates the device handler.
func NewDeviceHandler(devices *service.DeviceService, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, logger: logger}
}

type registerDeviceRequest struct {
	DeviceName string `json:"device_name" validate:"required,max=100"`
}

type registeredDeviceResponse struct {
	DeviceID     string `json:"device_id"`
	Name         string `json:"name"`
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /auth/register-device. The refresh token in the
// response is the only time the plaintext secret is ever visible.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	device, secret, err := h.devices.Register(r.Context(), claims.UserID, req.DeviceName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &registeredDeviceResponse{
		DeviceID:     device.ID,
		Name:         device.Name,
		RefreshToken: secret,
	})
}

// List handles GET /auth/devices, most recently used first.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	devices, err := h.devices.List(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]*deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// Revoke handles DELETE /auth/devices/{id}.
func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	claims := middleware.ClaimsFromContext(r.Context())

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		role = domain.RoleUser
	}

	if err := h.devices.Revoke(r.Context(), deviceID, claims.UserID, role); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func toDeviceResponse(d *domain.Device) *deviceResponse {
	return &deviceResponse{
		ID:         d.ID,
		Name:       d.Name,
		Revoked:    d.Revoked,
		LastUsedAt: d.LastUsedAt,
		CreatedAt:  d.CreatedAt,
	}
}
