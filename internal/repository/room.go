package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/duochat/duochat-server/internal/database"
	"github.com/duochat/duochat-server/internal/model"
)

type RoomRepository interface {
	FindByID(ctx context.Context, roomID string) (*model.Room, error)
	// Destroy deletes the room and cascades to its message history and any
	// residual pairing codes, in one transaction. Destroying an absent
	// room is a no-op so that unpair stays idempotent.
	Destroy(ctx context.Context, roomID string) error
}

type roomRepo struct {
	db *database.DB
}

func NewRoomRepository(db *database.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) FindByID(ctx context.Context, roomID string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `SELECT * FROM rooms WHERE id = $1`, roomID)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) Destroy(ctx context.Context, roomID string) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE room_id = $1`, roomID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pairing_codes WHERE room_id = $1`, roomID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
		return err
	})
}
