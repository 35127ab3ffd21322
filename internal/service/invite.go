package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/event"
	"github.com/calliri/hearth/internal/repository"
	"github.com/calliri/hearth/internal/token"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

// InviteService issues and consumes single-use registration invites.
type InviteService struct {
	invites    repository.InviteRepository
	events     *event.Producer
	logger     *slog.Logger
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewInviteService creates the invite service. ttl bounds how long an
// issued invite stays redeemable. A bcryptCost of zero selects the
// production default.
func NewInviteService(
	invites repository.InviteRepository,
	events *event.Producer,
	logger *slog.Logger,
	ttl time.Duration,
	bcryptCost int,
) *InviteService {
	if bcryptCost == 0 {
		bcryptCost = defaultBcryptCost
	}
	return &InviteService{
		invites:    invites,
		events:     events,
		logger:     logger,
		ttl:        ttl,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// CreatedInvite is returned from CreateInvite. Token is the plaintext
// invite token, shown exactly once; only its hash survives.
type CreatedInvite struct {
	ID        string
	Email     string
	Role      domain.Role
	Token     string
	ExpiresAt time.Time
}

// CreateInvite issues an invite for the target email with the role to
// grant. Authorization is the caller's responsibility; this service trusts
// that only admins reach it.
func (s *InviteService) CreateInvite(ctx context.Context, email string, role domain.Role) (*CreatedInvite, error) {
	if !role.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown role %q", role))
	}

	plaintext, err := token.NewSecret()
	if err != nil {
		return nil, err
	}

	invite := &domain.Invite{
		ID:        uuid.New().String(),
		Email:     email,
		TokenHash: token.HashSecret(plaintext),
		Role:      role,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "invite created",
		slog.String("invite_id", invite.ID),
		slog.String("email", email),
		slog.String("role", role.String()),
	)
	s.events.InviteCreated(ctx, event.InviteCreated{
		InviteID:  invite.ID,
		Email:     email,
		Role:      role.String(),
		ExpiresAt: invite.ExpiresAt,
	})

	return &CreatedInvite{
		ID:        invite.ID,
		Email:     invite.Email,
		Role:      invite.Role,
		Token:     plaintext,
		ExpiresAt: invite.ExpiresAt,
	}, nil
}

// ConsumeInvite redeems an invite token into a new account with the given
// password. Marking the invite consumed and creating the user happen in one
// transaction, so a concurrent redeem of the same token has exactly one
// winner.
func (s *InviteService) ConsumeInvite(ctx context.Context, plaintext, password, firstName, lastName string) (*domain.User, error) {
	invite, err := s.invites.GetByTokenHash(ctx, token.HashSecret(plaintext))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InviteInvalid()
		}
		return nil, err
	}
	if invite.Consumed {
		return nil, apperrors.InviteAlreadyUsed()
	}
	if invite.Expired(s.now()) {
		return nil, apperrors.InviteExpired()
	}

	if len(password) < MinPasswordLength {
		return nil, apperrors.WeakPassword(MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        invite.Email,
		PasswordHash: &hashStr,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         invite.Role,
	}

	if err := s.invites.ConsumeAndCreateUser(ctx, invite.ID, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "invite consumed",
		slog.String("invite_id", invite.ID),
		slog.String("user_id", user.ID),
	)
	s.events.UserRegistered(ctx, event.UserRegistered{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role.String(),
	})

	return user, nil
}
