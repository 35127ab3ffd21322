package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/event"
	"github.com/calliri/hearth/internal/repository"
	"github.com/calliri/hearth/internal/token"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

// DeviceService manages the registry of refresh-token-holding devices.
type DeviceService struct {
	devices repository.DeviceRepository
	tokens  *token.Manager
	events  *event.Producer
	logger  *slog.Logger
	now     func() time.Time
}

// NewDeviceService creates the device service.
func NewDeviceService(
	devices repository.DeviceRepository,
	tokens *token.Manager,
	events *event.Producer,
	logger *slog.Logger,
) *DeviceService {
	return &DeviceService{
		devices: devices,
		tokens:  tokens,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates a named device for the user and mints its first refresh
// secret. The plaintext secret is returned exactly once; only its hash is
// stored.
func (s *DeviceService) Register(ctx context.Context, userID, name string) (*domain.Device, string, error) {
	secret, err := token.NewSecret()
	if err != nil {
		return nil, "", err
	}

	device := &domain.Device{
		ID:             uuid.New().String(),
		UserID:         userID,
		Name:           name,
		TokenHash:      token.HashSecret(secret),
		TokenExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
	}

	if err := s.devices.Create(ctx, device); err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "device registered",
		slog.String("device_id", device.ID),
		slog.String("user_id", userID),
		slog.String("name", name),
	)
	s.events.DeviceRegistered(ctx, event.DeviceRegistered{
		DeviceID: device.ID,
		UserID:   userID,
		Name:     name,
	})

	return device, secret, nil
}

// List returns the user's devices, most recently used first.
func (s *DeviceService) List(ctx context.Context, userID string) ([]*domain.Device, error) {
	return s.devices.ListByUserID(ctx, userID)
}

// Revoke invalidates a device's refresh token. Only the owner or an admin
// may revoke; access tokens already issued stay valid until they expire on
// their own.
func (s *DeviceService) Revoke(ctx context.Context, deviceID, callerID string, callerRole domain.Role) error {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}

	if !callerRole.CanRevokeDevice(callerID, device.UserID) {
		return apperrors.Forbidden("cannot revoke another user's device")
	}

	if err := s.devices.SetRevoked(ctx, deviceID, true); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "device revoked",
		slog.String("device_id", deviceID),
		slog.String("user_id", device.UserID),
		slog.String("by_user_id", callerID),
	)
	s.events.DeviceRevoked(ctx, event.DeviceRevoked{
		DeviceID: deviceID,
		UserID:   device.UserID,
		ByUserID: callerID,
	})
	return nil
}

// SweepExpired deletes devices whose refresh tokens have lapsed. Run
// periodically so dead registrations do not pile up.
func (s *DeviceService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.devices.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired devices swept", slog.Int64("count", n))
	}
	return n, nil
}
