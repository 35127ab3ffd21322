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
	"github.com/calliri/hearth/internal/ratelimit"
	"github.com/calliri/hearth/internal/repository"
	"github.com/calliri/hearth/internal/token"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

// MinPasswordLength is the only composition rule applied to passwords.
// Length is the policy; no character-class requirements.
const MinPasswordLength = 16

const defaultBcryptCost = 12

// Login outcome statuses returned to the client alongside any tokens.
const (
	StatusAuthenticated         = "authenticated"
	StatusPasswordSetupRequired = "password_setup_required"
	StatusDeviceRequired        = "device_registration_required"
)

// LoginInput carries one login attempt. RefreshToken is optional; a known
// device presents its current refresh token to skip the device naming step.
type LoginInput struct {
	Email        string
	Password     string
	RefreshToken string
	ClientIP     string
}

// LoginResult is the outcome of a login, setup or registration step.
// RefreshToken is only set once a device is bound; Status tells the client
// which step comes next.
type LoginResult struct {
	Status       string
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// AuthService implements the credential and session lifecycle: login with
// rate limiting, first-login password setup, password change, and refresh
// token rotation.
type AuthService struct {
	users      repository.UserRepository
	devices    repository.DeviceRepository
	tokens     *token.Manager
	limiter    ratelimit.Limiter
	events     *event.Producer
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

// NewAuthService creates the auth service. A bcryptCost of zero selects the
// production default; tests pass bcrypt.MinCost to keep hashing fast.
func NewAuthService(
	users repository.UserRepository,
	devices repository.DeviceRepository,
	tokens *token.Manager,
	limiter ratelimit.Limiter,
	events *event.Producer,
	logger *slog.Logger,
	bcryptCost int,
) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = defaultBcryptCost
	}
	return &AuthService{
		users:      users,
		devices:    devices,
		tokens:     tokens,
		limiter:    limiter,
		events:     events,
		logger:     logger,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Login runs the credential check for one attempt. An unknown email and a
// wrong password produce byte-identical results; only the audit log records
// which one happened. Accounts that have never set a password are steered
// to setup before any password comparison runs.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	key := ratelimit.Key(in.Email, in.ClientIP)

	allowed, retryAfter, err := s.limiter.Allow(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		s.logger.WarnContext(ctx, "login rate limited",
			slog.String("email", in.Email),
			slog.String("client_ip", in.ClientIP),
		)
		return nil, apperrors.RateLimited(retryAfter)
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.recordFailure(ctx, key)
			s.logger.WarnContext(ctx, "login attempt for unknown email",
				slog.String("email", in.Email),
				slog.String("client_ip", in.ClientIP),
			)
			return nil, apperrors.InvalidCredentials()
		}
		return nil, err
	}

	if !user.HasPassword() {
		return &LoginResult{Status: StatusPasswordSetupRequired, User: user}, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(in.Password)); err != nil {
		s.recordFailure(ctx, key)
		s.logger.WarnContext(ctx, "login password mismatch",
			slog.String("user_id", user.ID),
			slog.String("client_ip", in.ClientIP),
		)
		return nil, apperrors.InvalidCredentials()
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to reset rate counter",
			slog.String("error", err.Error()),
		)
	}

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	if in.RefreshToken != "" {
		if refresh, ok := s.rotateForLogin(ctx, user, in.RefreshToken); ok {
			return &LoginResult{
				Status:       StatusAuthenticated,
				User:         user,
				AccessToken:  access,
				RefreshToken: refresh,
			}, nil
		}
	}

	return &LoginResult{
		Status:      StatusDeviceRequired,
		User:        user,
		AccessToken: access,
	}, nil
}

// rotateForLogin tries to rotate a refresh token presented at login so a
// known device skips renaming. Any defect in the presented token, including
// it belonging to another user, silently falls back to device registration
// rather than failing the login.
func (s *AuthService) rotateForLogin(ctx context.Context, user *domain.User, presented string) (string, bool) {
	oldHash := token.HashSecret(presented)

	device, err := s.devices.GetByTokenHash(ctx, oldHash)
	if err != nil || device.UserID != user.ID || device.Revoked || !device.TokenExpiresAt.After(s.now()) {
		return "", false
	}

	secret, err := token.NewSecret()
	if err != nil {
		return "", false
	}
	_, err = s.devices.ReplaceToken(ctx, oldHash, token.HashSecret(secret), s.now().Add(s.tokens.RefreshTTL()))
	if err != nil {
		return "", false
	}
	return secret, true
}

// SetupPassword establishes the password for an account that has never had
// one. The conditional write makes the first-login path single-shot; a
// second attempt fails even when racing the first.
func (s *AuthService) SetupPassword(ctx context.Context, email, newPassword string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if len(newPassword) < MinPasswordLength {
		return nil, apperrors.WeakPassword(MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.SetPasswordHashIfUnset(ctx, user.ID, string(hash)); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "password established", slog.String("user_id", user.ID))
	s.events.PasswordEstablished(ctx, event.PasswordEstablished{UserID: user.ID})

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Status:      StatusDeviceRequired,
		User:        user,
		AccessToken: access,
	}, nil
}

// ChangePassword replaces an established password after verifying the
// current one, then revokes every registered device so stolen refresh
// tokens die with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return apperrors.InvalidState("password has not been set up yet")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.InvalidCredentials()
	}

	if len(newPassword) < MinPasswordLength {
		return apperrors.WeakPassword(MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	revoked, err := s.devices.RevokeAllForUser(ctx, user.ID)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
		slog.Int64("devices_revoked", revoked),
	)
	s.events.PasswordChanged(ctx, event.PasswordChanged{UserID: user.ID, DevicesRevoked: revoked})
	return nil
}

// Refresh exchanges a presented refresh token for a fresh access and
// refresh pair, rotating the stored secret. The conditional update is the
// atomic arbiter: of two concurrent calls presenting the same token,
// exactly one wins and the loser is treated as replay.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*domain.TokenPair, error) {
	oldHash := token.HashSecret(presented)

	device, err := s.devices.GetByTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "refresh with unknown token, possible replay")
			return nil, apperrors.TokenInvalid()
		}
		return nil, err
	}
	if device.Revoked {
		return nil, apperrors.TokenRevoked()
	}
	if !device.TokenExpiresAt.After(s.now()) {
		return nil, apperrors.TokenExpired()
	}

	secret, err := token.NewSecret()
	if err != nil {
		return nil, err
	}

	rotated, err := s.devices.ReplaceToken(ctx, oldHash, token.HashSecret(secret), s.now().Add(s.tokens.RefreshTTL()))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.TokenInvalid()
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, rotated.UserID)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: secret}, nil
}

// GetUser loads one account by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// IssueAccessToken signs a new access token for the given user. Used by
// flows that authenticate through other means, such as invite consumption.
func (s *AuthService) IssueAccessToken(user *domain.User) (string, error) {
	return s.tokens.IssueAccessToken(user)
}

// SeedAccount describes one account ensured at first startup.
type SeedAccount struct {
	Email     string
	FirstName string
	LastName  string
	Role      domain.Role
}

// EnsureSeedAccounts idempotently creates the fixed bootstrap accounts with
// no password hash, forcing them through first-login setup. Safe to run on
// every startup.
func (s *AuthService) EnsureSeedAccounts(ctx context.Context, accounts []SeedAccount) error {
	for _, acct := range accounts {
		user := &domain.User{
			ID:        uuid.New().String(),
			Email:     acct.Email,
			FirstName: acct.FirstName,
			LastName:  acct.LastName,
			Role:      acct.Role,
		}

		created, err := s.users.CreateIfAbsent(ctx, user)
		if err != nil {
			return fmt.Errorf("ensure seed account %s: %w", acct.Email, err)
		}
		if created {
			s.logger.InfoContext(ctx, "seed account created",
				slog.String("email", acct.Email),
				slog.String("role", acct.Role.String()),
			)
		}
	}
	return nil
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	if err := s.limiter.RecordFailure(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login failure",
			slog.String("error", err.Error()),
		)
	}
}
