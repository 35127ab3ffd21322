package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/token"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

func newInviteFixture(t *testing.T) (*mockInviteRepo, *InviteService) {
	t.Helper()
	repo := &mockInviteRepo{}
	svc := NewInviteService(repo, noopEvents(), discardLogger(), 24*time.Hour, bcrypt.MinCost)
	svc.now = func() time.Time { return testNow }
	return repo, svc
}

func TestCreateInvite(t *testing.T) {
	repo, svc := newInviteFixture(t)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(i *domain.Invite) bool {
		return i.Email == "new@user" && i.Role == domain.RoleUser &&
			i.ExpiresAt.Equal(testNow.Add(24*time.Hour)) && i.TokenHash != ""
	})).Return(nil)

	created, err := svc.CreateInvite(context.Background(), "new@user", domain.RoleUser)
	require.NoError(t, err)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, token.HashSecret(created.Token), repo.Calls[0].Arguments.Get(1).(*domain.Invite).TokenHash)
	assert.Equal(t, testNow.Add(24*time.Hour), created.ExpiresAt)
}

func TestCreateInviteRejectsUnknownRole(t *testing.T) {
	repo, svc := newInviteFixture(t)

	_, err := svc.CreateInvite(context.Background(), "new@user", domain.Role("superuser"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConsumeInvite(t *testing.T) {
	repo, svc := newInviteFixture(t)
	plaintext := "invite-token-secret"
	invite := &domain.Invite{
		ID:        "inv-1",
		Email:     "new@user",
		TokenHash: token.HashSecret(plaintext),
		Role:      domain.RoleUser,
		ExpiresAt: testNow.Add(time.Hour),
	}

	repo.On("GetByTokenHash", mock.Anything, invite.TokenHash).Return(invite, nil)
	repo.On("ConsumeAndCreateUser", mock.Anything, "inv-1", mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "new@user" && u.Role == domain.RoleUser && u.HasPassword()
	})).Return(nil)

	user, err := svc.ConsumeInvite(context.Background(), plaintext, "twenty-character-password", "New", "User")
	require.NoError(t, err)
	assert.Equal(t, "new@user", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte("twenty-character-password")))
}

func TestConsumeInviteUnknownToken(t *testing.T) {
	repo, svc := newInviteFixture(t)

	repo.On("GetByTokenHash", mock.Anything, mock.Anything).
		Return(nil, apperrors.NotFound("invite", "token"))

	_, err := svc.ConsumeInvite(context.Background(), "no-such-token", "twenty-character-password", "", "")
	assert.ErrorIs(t, err, apperrors.ErrInviteInvalid)
}

func TestConsumeInviteExpired(t *testing.T) {
	repo, svc := newInviteFixture(t)
	plaintext := "invite-token-secret"
	invite := &domain.Invite{
		ID:        "inv-1",
		Email:     "new@user",
		TokenHash: token.HashSecret(plaintext),
		Role:      domain.RoleUser,
		ExpiresAt: testNow.Add(-time.Minute),
	}

	repo.On("GetByTokenHash", mock.Anything, invite.TokenHash).Return(invite, nil)

	_, err := svc.ConsumeInvite(context.Background(), plaintext, "twenty-character-password", "", "")
	assert.ErrorIs(t, err, apperrors.ErrInviteExpired)
	repo.AssertNotCalled(t, "ConsumeAndCreateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumeInviteAlreadyUsed(t *testing.T) {
	repo, svc := newInviteFixture(t)
	plaintext := "invite-token-secret"
	invite := &domain.Invite{
		ID:        "inv-1",
		Email:     "new@user",
		TokenHash: token.HashSecret(plaintext),
		Role:      domain.RoleUser,
		ExpiresAt: testNow.Add(time.Hour),
		Consumed:  true,
	}

	repo.On("GetByTokenHash", mock.Anything, invite.TokenHash).Return(invite, nil)

	_, err := svc.ConsumeInvite(context.Background(), plaintext, "twenty-character-password", "", "")
	assert.ErrorIs(t, err, apperrors.ErrInviteAlreadyUsed)
}

func TestConsumeInviteLosesRace(t *testing.T) {
	repo, svc := newInviteFixture(t)
	plaintext := "invite-token-secret"
	invite := &domain.Invite{
		ID:        "inv-1",
		Email:     "new@user",
		TokenHash: token.HashSecret(plaintext),
		Role:      domain.RoleUser,
		ExpiresAt: testNow.Add(time.Hour),
	}

	repo.On("GetByTokenHash", mock.Anything, invite.TokenHash).Return(invite, nil)
	repo.On("ConsumeAndCreateUser", mock.Anything, "inv-1", mock.Anything).
		Return(apperrors.InviteAlreadyUsed())

	_, err := svc.ConsumeInvite(context.Background(), plaintext, "twenty-character-password", "", "")
	assert.ErrorIs(t, err, apperrors.ErrInviteAlreadyUsed)
}

func TestConsumeInviteWeakPassword(t *testing.T) {
	repo, svc := newInviteFixture(t)
	plaintext := "invite-token-secret"
	invite := &domain.Invite{
		ID:        "inv-1",
		Email:     "new@user",
		TokenHash: token.HashSecret(plaintext),
		Role:      domain.RoleUser,
		ExpiresAt: testNow.Add(time.Hour),
	}

	repo.On("GetByTokenHash", mock.Anything, invite.TokenHash).Return(invite, nil)

	_, err := svc.ConsumeInvite(context.Background(), plaintext, "15-chars-only!!", "", "")
	assert.ErrorIs(t, err, apperrors.ErrWeakPassword)
	repo.AssertNotCalled(t, "ConsumeAndCreateUser", mock.Anything, mock.Anything, mock.Anything)
}
