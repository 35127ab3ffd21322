package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/calliri/hearth/internal/domain"
	apperrors "github.com/calliri/hearth/pkg/errors"
)

// DeviceRepository is the pgx implementation of repository.DeviceRepository.
type DeviceRepository struct {
	db DB
}

// NewDeviceRepository creates a Postgres-backed device repository.
func NewDeviceRepository(db DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `id, user_id, name, token_hash, token_expires_at, revoked, last_used_at, created_at`

func scanDevice(row pgx.Row) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Name,
		&d.TokenHash,
		&d.TokenExpiresAt,
		&d.Revoked,
		&d.LastUsedAt,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	query := `
		INSERT INTO devices (id, user_id, name, token_hash, token_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING last_used_at, created_at`

	err := r.db.QueryRow(ctx, query,
		device.ID, device.UserID, device.Name, device.TokenHash, device.TokenExpiresAt,
	).Scan(&device.LastUsedAt, &device.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("device", "id", device.ID)
		}
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	device, err := scanDevice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("device", id)
		}
		return nil, fmt.Errorf("get device by id: %w", err)
	}
	return device, nil
}

func (r *DeviceRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE token_hash = $1`

	device, err := scanDevice(r.db.QueryRow(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("device", "token")
		}
		return nil, fmt.Errorf("get device by token hash: %w", err)
	}
	return device, nil
}

func (r *DeviceRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = $1 ORDER BY last_used_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return devices, nil
}

// ReplaceToken performs the rotation compare-and-swap. The WHERE clause is
// the whole safety argument: only one caller can match the old hash on an
// active, unexpired device, so a replayed secret finds zero rows.
func (r *DeviceRepository) ReplaceToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.Device, error) {
	query := `
		UPDATE devices
		SET token_hash = $2, token_expires_at = $3, last_used_at = now()
		WHERE token_hash = $1 AND NOT revoked AND token_expires_at > now()
		RETURNING ` + deviceColumns

	device, err := scanDevice(r.db.QueryRow(ctx, query, oldHash, newHash, expiresAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("device", "token")
		}
		return nil, fmt.Errorf("rotate device token: %w", err)
	}
	return device, nil
}

func (r *DeviceRepository) SetRevoked(ctx context.Context, id string, revoked bool) error {
	query := `UPDATE devices SET revoked = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, revoked)
	if err != nil {
		return fmt.Errorf("set device revoked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("device", id)
	}
	return nil
}

func (r *DeviceRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE devices SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`

	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke devices for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *DeviceRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM devices WHERE token_expires_at < $1`

	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired devices: %w", err)
	}
	return tag.RowsAffected(), nil
}
