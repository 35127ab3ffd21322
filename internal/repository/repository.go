package repository

import (
	"context"
	"time"

	"github.com/calliri/hearth/internal/domain"
)

// UserRepository persists household accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	// CreateIfAbsent inserts the user unless an account with the same
	// email already exists. It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, user *domain.User) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// SetPasswordHashIfUnset establishes the first password. It only
	// succeeds when no hash is stored yet; a second attempt returns
	// ErrInvalidState.
	SetPasswordHashIfUnset(ctx context.Context, id, passwordHash string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// DeviceRepository persists the registry of refresh-token-holding devices.
type DeviceRepository interface {
	Create(ctx context.Context, device *domain.Device) error
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Device, error)
	ListByUserID(ctx context.Context, userID string) ([]*domain.Device, error)
	// ReplaceToken atomically swaps oldHash for newHash on an active,
	// unexpired device. It returns the rotated device, or ErrNotFound when
	// no such row exists, which covers revoked, expired, and replayed
	// hashes alike.
	ReplaceToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.Device, error)
	SetRevoked(ctx context.Context, id string, revoked bool) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	// DeleteExpired removes devices whose refresh tokens lapsed before the
	// cutoff and reports how many rows went away.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// InviteRepository persists single-use registration invites.
type InviteRepository interface {
	Create(ctx context.Context, invite *domain.Invite) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invite, error)
	// ConsumeAndCreateUser marks the invite consumed and inserts the new
	// account in one transaction. A concurrent consumer of the same invite
	// gets ErrInviteAlreadyUsed; neither side ends up with a half-applied
	// state.
	ConsumeAndCreateUser(ctx context.Context, inviteID string, user *domain.User) error
}
