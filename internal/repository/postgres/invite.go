package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/calliri/hearth/internal/domain"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

// InviteRepository is the pgx implementation of repository.InviteRepository.
type InviteRepository struct {
	db DB
}

// NewInviteRepository creates a Postgres-backed invite repository.
func NewInviteRepository(db DB) *InviteRepository {
	return &InviteRepository{db: db}
}

const inviteColumns = `id, email, token_hash, role, expires_at, consumed, consumed_at, created_at`

func scanInvite(row pgx.Row) (*domain.Invite, error) {
	var i domain.Invite
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.TokenHash,
		&i.Role,
		&i.ExpiresAt,
		&i.Consumed,
		&i.ConsumedAt,
		&i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *InviteRepository) Create(ctx context.Context, invite *domain.Invite) error {
	query := `
		INSERT INTO invites (id, email, token_hash, role, expires_at)
		VALUES ($1, lower($2), $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		invite.ID, invite.Email, invite.TokenHash, invite.Role, invite.ExpiresAt,
	).Scan(&invite.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("invite", "email", invite.Email)
		}
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (r *InviteRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE token_hash = $1`

	invite, err := scanInvite(r.db.QueryRow(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("invite", "token")
		}
		return nil, fmt.Errorf("get invite by token hash: %w", err)
	}
	return invite, nil
}

// ConsumeAndCreateUser flips the invite to consumed and inserts the account
// inside one transaction. The conditional UPDATE arbitrates races: whichever
// transaction commits first wins the invite and the loser sees zero rows.
func (r *InviteRepository) ConsumeAndCreateUser(ctx context.Context, inviteID string, user *domain.User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin consume invite: %w", err)
	}
	defer tx.Rollback(ctx)

	consume := `
		UPDATE invites
		SET consumed = TRUE, consumed_at = now()
		WHERE id = $1 AND NOT consumed`

	tag, err := tx.Exec(ctx, consume, inviteID)
	if err != nil {
		return fmt.Errorf("consume invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.InviteAlreadyUsed()
	}

	insert := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role)
		VALUES ($1, lower($2), $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err = tx.QueryRow(ctx, insert,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}
		return fmt.Errorf("insert invited user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit consume invite: %w", err)
	}
	return nil
}
