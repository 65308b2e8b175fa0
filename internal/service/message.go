package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/duochat/duochat-server/internal/config"
	apperrors "github.com/duochat/duochat-server/internal/errors"
	"github.com/duochat/duochat-server/internal/model"
	"github.com/duochat/duochat-server/internal/repository"
)

// MessageService is the persistence facade for chat history. The relay
// persists through it before broadcasting so the record every client
// sees carries the server-assigned id and timestamp.
type MessageService struct {
	msgRepo repository.MessageRepository
}

func NewMessageService(msgRepo repository.MessageRepository) *MessageService {
	return &MessageService{msgRepo: msgRepo}
}

func (s *MessageService) Append(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	if params.Kind == "" {
		params.Kind = model.MessageKindText
	}
	if !params.Kind.Valid() {
		return nil, apperrors.ValidationError("unknown message kind")
	}
	if params.Kind == model.MessageKindText && strings.TrimSpace(params.Content) == "" {
		return nil, apperrors.MissingRequired("content")
	}
	if params.Kind == model.MessageKindVoice && (params.VoiceURL == nil || *params.VoiceURL == "") {
		return nil, apperrors.MissingRequired("voiceUrl")
	}

	msg, err := s.msgRepo.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return msg, nil
}

// History returns the room's messages oldest first, capped at the
// history limit.
func (s *MessageService) History(ctx context.Context, roomID string) ([]model.Message, error) {
	msgs, err := s.msgRepo.FindByRoom(ctx, roomID, config.MessageHistoryLimit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return msgs, nil
}

// MarkRead flips the read flag. The flag only ever transitions false to
// true; marking an already-read message returns the same record again.
func (s *MessageService) MarkRead(ctx context.Context, messageID string) (*model.Message, error) {
	msg, err := s.msgRepo.MarkRead(ctx, messageID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if msg == nil {
		return nil, apperrors.NotFound("Message")
	}
	return msg, nil
}

// Clear deletes the room's entire history.
func (s *MessageService) Clear(ctx context.Context, roomID string) error {
	count, err := s.msgRepo.DeleteByRoom(ctx, roomID)
	if err != nil {
		return apperrors.Database(err)
	}

	log.Info().Str("roomId", roomID).Int64("count", count).Msg("chat history cleared")
	return nil
}
