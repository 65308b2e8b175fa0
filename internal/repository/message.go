package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/duochat/duochat-server/internal/database"
	"github.com/duochat/duochat-server/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	FindByID(ctx context.Context, id string) (*model.Message, error)
	// FindByRoom returns messages ordered oldest first, capped at limit.
	FindByRoom(ctx context.Context, roomID string, limit int) ([]model.Message, error)
	// MarkRead sets the read flag and returns the updated row. Marking an
	// already-read message is a no-op update, so the call is idempotent.
	MarkRead(ctx context.Context, id string) (*model.Message, error)
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
}

type messageRepo struct {
	db database.DBTX
}

func NewMessageRepository(db database.DBTX) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(id, room_id, sender_id, content, kind, voice_url, voice_duration, reply_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, uuid.NewString(), params.RoomID, params.SenderID, params.Content,
		params.Kind, params.VoiceURL, params.VoiceDuration, params.ReplyTo)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM messages WHERE id = $1`, id)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) FindByRoom(ctx context.Context, roomID string, limit int) ([]model.Message, error) {
	msgs := []model.Message{}
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE room_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, roomID, limit)
	return msgs, err
}

func (r *messageRepo) MarkRead(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		UPDATE messages SET read = TRUE
		WHERE id = $1
		RETURNING *
	`, id)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE room_id = $1`, roomID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
