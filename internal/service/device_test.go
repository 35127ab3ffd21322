package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/token"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

func newDeviceFixture(t *testing.T) (*mockDeviceRepo, *DeviceService) {
	t.Helper()
	repo := &mockDeviceRepo{}
	mgr := token.NewManager("test-secret", 15*time.Minute, 90*24*time.Hour)
	svc := NewDeviceService(repo, mgr, noopEvents(), discardLogger())
	svc.now = func() time.Time { return testNow }
	return repo, svc
}

func TestDeviceRegister(t *testing.T) {
	repo, svc := newDeviceFixture(t)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Device) bool {
		return d.UserID == "u1" && d.Name == "iPad" &&
			d.TokenExpiresAt.Equal(testNow.Add(90*24*time.Hour))
	})).Return(nil)

	device, secret, err := svc.Register(context.Background(), "u1", "iPad")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Equal(t, token.HashSecret(secret), device.TokenHash)
	assert.NotEqual(t, secret, device.TokenHash)
}

func TestDeviceRevokeByOwner(t *testing.T) {
	repo, svc := newDeviceFixture(t)
	device := &domain.Device{ID: "dev-1", UserID: "u1"}

	repo.On("GetByID", mock.Anything, "dev-1").Return(device, nil)
	repo.On("SetRevoked", mock.Anything, "dev-1", true).Return(nil)

	err := svc.Revoke(context.Background(), "dev-1", "u1", domain.RoleUser)
	require.NoError(t, err)
}

func TestDeviceRevokeByAdmin(t *testing.T) {
	repo, svc := newDeviceFixture(t)
	device := &domain.Device{ID: "dev-1", UserID: "u1"}

	repo.On("GetByID", mock.Anything, "dev-1").Return(device, nil)
	repo.On("SetRevoked", mock.Anything, "dev-1", true).Return(nil)

	err := svc.Revoke(context.Background(), "dev-1", "admin-1", domain.RoleAdmin)
	require.NoError(t, err)
}

func TestDeviceRevokeForbiddenForOtherUser(t *testing.T) {
	repo, svc := newDeviceFixture(t)
	device := &domain.Device{ID: "dev-1", UserID: "u1"}

	repo.On("GetByID", mock.Anything, "dev-1").Return(device, nil)

	err := svc.Revoke(context.Background(), "dev-1", "u2", domain.RoleUser)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	repo.AssertNotCalled(t, "SetRevoked", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeviceRevokeNotFound(t *testing.T) {
	repo, svc := newDeviceFixture(t)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("device", "missing"))

	err := svc.Revoke(context.Background(), "missing", "u1", domain.RoleUser)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeviceSweepExpired(t *testing.T) {
	repo, svc := newDeviceFixture(t)

	repo.On("DeleteExpired", mock.Anything, testNow).Return(int64(3), nil)

	n, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
