package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/duochat/duochat-server/internal/database"
	"github.com/duochat/duochat-server/internal/model"
)

type PairingCodeRepository interface {
	FindPendingByCode(ctx context.Context, code string) (*model.PairingCode, error)
	Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error)
	DeletePendingByDevice(ctx context.Context, deviceID string) (int64, error)
	DeleteByCode(ctx context.Context, code string) error
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
	// Consume atomically flips a pending code to paired and creates the
	// room with both device identities, in one transaction. A nil code
	// result means no pending row matched, which is how the loser of a
	// concurrent consume race observes the transition.
	Consume(ctx context.Context, code, consumerDeviceID string) (*model.PairingCode, *model.Room, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type pairingCodeRepo struct {
	db *database.DB
}

func NewPairingCodeRepository(db *database.DB) PairingCodeRepository {
	return &pairingCodeRepo{db: db}
}

func (r *pairingCodeRepo) FindPendingByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pairing_codes
		WHERE code = $1 AND paired = FALSE
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		INSERT INTO pairing_codes (code, device_id, room_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.Code, params.DeviceID, params.RoomID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pairingCodeRepo) DeletePendingByDevice(ctx context.Context, deviceID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE device_id = $1 AND paired = FALSE
	`, deviceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingCodeRepo) DeleteByCode(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pairing_codes WHERE code = $1`, code)
	return err
}

func (r *pairingCodeRepo) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pairing_codes WHERE room_id = $1`, roomID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingCodeRepo) Consume(ctx context.Context, code, consumerDeviceID string) (*model.PairingCode, *model.Room, error) {
	var pc model.PairingCode
	var room model.Room

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &pc, `
			UPDATE pairing_codes SET paired = TRUE
			WHERE code = $1 AND paired = FALSE
			RETURNING *
		`, code)
		if err != nil {
			return err
		}

		return tx.GetContext(ctx, &room, `
			INSERT INTO rooms (id, device_a, device_b)
			VALUES ($1, $2, $3)
			RETURNING *
		`, pc.RoomID, pc.DeviceID, consumerDeviceID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &pc, &room, nil
}

func (r *pairingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE (paired = FALSE AND expires_at < NOW())
		   OR (paired = TRUE AND created_at < NOW() - INTERVAL '1 day')
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
