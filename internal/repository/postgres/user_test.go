package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calliri/hearth/internal/domain"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

func newUserRepoMock(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func userRows(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "role", "created_at", "updated_at",
	}).AddRow(u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.CreatedAt, u.UpdatedAt)
}

func sampleUser() *domain.User {
	hash := "$2a$04$abcdefghijklmnopqrstuv"
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:           "11111111-1111-1111-1111-111111111111",
		Email:        "alice@example.com",
		PasswordHash: &hash,
		FirstName:    "Alice",
		LastName:     "Smith",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepositoryCreate(t *testing.T) {
	mock, repo := newUserRepoMock(t)
	user := sampleUser()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs(user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(user.CreatedAt, user.UpdatedAt))

	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateIfAbsent(t *testing.T) {
	mock, repo := newUserRepoMock(t)
	user := sampleUser()
	user.PasswordHash = nil

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs(user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := repo.CreateIfAbsent(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateIfAbsentConflict(t *testing.T) {
	mock, repo := newUserRepoMock(t)
	user := sampleUser()
	user.PasswordHash = nil

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs(user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := repo.CreateIfAbsent(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetByEmail(t *testing.T) {
	mock, repo := newUserRepoMock(t)
	want := sampleUser()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = lower($1)`)).
		WithArgs(want.Email).
		WillReturnRows(userRows(want))

	got, err := repo.GetByEmail(context.Background(), want.Email)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetByEmailNotFound(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = lower($1)`)).
		WithArgs("nobody@example.com").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "email", "password_hash", "first_name", "last_name", "role", "created_at", "updated_at",
		}))

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySetPasswordHashIfUnset(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND password_hash IS NULL`)).
		WithArgs("user-id", "new-hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetPasswordHashIfUnset(context.Background(), "user-id", "new-hash")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySetPasswordHashIfUnsetAlreadySet(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND password_hash IS NULL`)).
		WithArgs("user-id", "new-hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetPasswordHashIfUnset(context.Background(), "user-id", "new-hash")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdatePasswordHash(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users`)).
		WithArgs("user-id", "new-hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdatePasswordHash(context.Background(), "user-id", "new-hash")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
