package http

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/calliri/hearth/internal/domain"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

// In-memory repository fakes honoring the same conditional-write semantics
// as the Postgres implementations, so the handler tests exercise the full
// stack below the HTTP layer.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(user)
}

func (r *fakeUserRepo) insert(user *domain.User) error {
	email := strings.ToLower(user.Email)
	for _, u := range r.users {
		if strings.ToLower(u.Email) == email {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}
	}
	now := time.Now()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) CreateIfAbsent(_ context.Context, user *domain.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insert(user); err != nil {
		return false, nil
	}
	return true, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

func (r *fakeUserRepo) SetPasswordHashIfUnset(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.NotFound("user", id)
	}
	if u.PasswordHash != nil {
		return apperrors.InvalidState("password is already set")
	}
	u.PasswordHash = &passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.NotFound("user", id)
	}
	u.PasswordHash = &passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*domain.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[string]*domain.Device)}
}

func (r *fakeDeviceRepo) Create(_ context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	device.LastUsedAt = now
	device.CreatedAt = now
	cp := *device
	r.devices[device.ID] = &cp
	return nil
}

func (r *fakeDeviceRepo) GetByID(_ context.Context, id string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, apperrors.NotFound("device", id)
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDeviceRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.TokenHash == tokenHash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("device", "token")
}

func (r *fakeDeviceRepo) ListByUserID(_ context.Context, userID string) ([]*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Device
	for _, d := range r.devices {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastUsedAt.After(out[i].LastUsedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *fakeDeviceRepo) ReplaceToken(_ context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.TokenHash == oldHash && !d.Revoked && d.TokenExpiresAt.After(time.Now()) {
			d.TokenHash = newHash
			d.TokenExpiresAt = expiresAt
			d.LastUsedAt = time.Now()
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("device", "token")
}

func (r *fakeDeviceRepo) SetRevoked(_ context.Context, id string, revoked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return apperrors.NotFound("device", id)
	}
	d.Revoked = revoked
	return nil
}

func (r *fakeDeviceRepo) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, d := range r.devices {
		if d.UserID == userID && !d.Revoked {
			d.Revoked = true
			n++
		}
	}
	return n, nil
}

func (r *fakeDeviceRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, d := range r.devices {
		if d.TokenExpiresAt.Before(cutoff) {
			delete(r.devices, id)
			n++
		}
	}
	return n, nil
}

type fakeInviteRepo struct {
	mu      sync.Mutex
	invites map[string]*domain.Invite
	users   *fakeUserRepo
}

func newFakeInviteRepo(users *fakeUserRepo) *fakeInviteRepo {
	return &fakeInviteRepo{invites: make(map[string]*domain.Invite), users: users}
}

func (r *fakeInviteRepo) Create(_ context.Context, invite *domain.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	invite.Email = strings.ToLower(invite.Email)
	invite.CreatedAt = time.Now()
	cp := *invite
	r.invites[invite.ID] = &cp
	return nil
}

func (r *fakeInviteRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.invites {
		if i.TokenHash == tokenHash {
			cp := *i
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("invite", "token")
}

func (r *fakeInviteRepo) ConsumeAndCreateUser(ctx context.Context, inviteID string, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[inviteID]
	if !ok {
		return apperrors.NotFound("invite", inviteID)
	}
	if inv.Consumed {
		return apperrors.InviteAlreadyUsed()
	}
	r.users.mu.Lock()
	err := r.users.insert(user)
	r.users.mu.Unlock()
	if err != nil {
		return err
	}
	now := time.Now()
	inv.Consumed = true
	inv.ConsumedAt = &now
	return nil
}
