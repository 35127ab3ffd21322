package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopEvents() *event.Producer {
	return event.NewProducer(nil, discardLogger())
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) CreateIfAbsent(ctx context.Context, user *domain.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) SetPasswordHashIfUnset(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *mockUserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) Create(ctx context.Context, device *domain.Device) error {
	return m.Called(ctx, device).Error(0)
}

func (m *mockDeviceRepo) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Device), args.Error(1)
}

func (m *mockDeviceRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Device, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Device), args.Error(1)
}

func (m *mockDeviceRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Device, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Device), args.Error(1)
}

func (m *mockDeviceRepo) ReplaceToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.Device, error) {
	args := m.Called(ctx, oldHash, newHash, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Device), args.Error(1)
}

func (m *mockDeviceRepo) SetRevoked(ctx context.Context, id string, revoked bool) error {
	return m.Called(ctx, id, revoked).Error(0)
}

func (m *mockDeviceRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockDeviceRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockInviteRepo struct {
	mock.Mock
}

func (m *mockInviteRepo) Create(ctx context.Context, invite *domain.Invite) error {
	return m.Called(ctx, invite).Error(0)
}

func (m *mockInviteRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invite, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invite), args.Error(1)
}

func (m *mockInviteRepo) ConsumeAndCreateUser(ctx context.Context, inviteID string, user *domain.User) error {
	return m.Called(ctx, inviteID, user).Error(0)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

func (m *mockLimiter) RecordFailure(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
