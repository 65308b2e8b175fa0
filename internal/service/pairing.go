package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/duochat/duochat-server/internal/errors"
	"github.com/duochat/duochat-server/internal/model"
	"github.com/duochat/duochat-server/internal/repository"
)

const pairingCodeDigits = 6

var pairingCodeMax = big.NewInt(1_000_000)

// PairResult is returned when a pairing code is consumed successfully.
type PairResult struct {
	RoomID            string
	GeneratorDeviceID string
	ConsumerDeviceID  string
}

type PairingService struct {
	codeRepo repository.PairingCodeRepository
	roomRepo repository.RoomRepository
	ttl      time.Duration
}

func NewPairingService(
	codeRepo repository.PairingCodeRepository,
	roomRepo repository.RoomRepository,
	ttl time.Duration,
) *PairingService {
	return &PairingService{
		codeRepo: codeRepo,
		roomRepo: roomRepo,
		ttl:      ttl,
	}
}

// Generate creates a fresh pairing code for the device, superseding any
// pending code it had. The room identifier is minted here so the
// generator already knows which room pairing will create.
func (s *PairingService) Generate(ctx context.Context, deviceID string) (*model.PairingCode, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}

	deleted, err := s.codeRepo.DeletePendingByDevice(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if deleted > 0 {
		log.Debug().Str("deviceId", deviceID).Int64("count", deleted).Msg("superseded pending pairing codes")
	}

	pc, err := s.codeRepo.Create(ctx, model.CreatePairingCodeParams{
		Code:      generatePairingCode(),
		DeviceID:  deviceID,
		RoomID:    uuid.NewString(),
		ExpiresAt: time.Now().Add(s.ttl),
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			// Code collided with another device's pending code. The caller
			// retries, which draws a fresh random code.
			return nil, apperrors.Conflict("pairing code collision, retry")
		}
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("deviceId", deviceID).
		Str("roomId", pc.RoomID).
		Time("expiresAt", pc.ExpiresAt).
		Msg("pairing code created")

	return pc, nil
}

// Consume redeems a pending code on behalf of deviceID and creates the
// room. The pending-to-paired transition is a single atomic storage
// operation; of two racing consumers exactly one wins and the loser
// observes NotFound.
func (s *PairingService) Consume(ctx context.Context, code, deviceID string) (*PairResult, error) {
	code = strings.TrimSpace(code)
	deviceID = strings.TrimSpace(deviceID)
	if code == "" {
		return nil, apperrors.MissingRequired("code")
	}
	if deviceID == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}

	pc, err := s.codeRepo.FindPendingByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pc == nil {
		return nil, apperrors.NotFound("Pairing code")
	}

	// Self-pairing is rejected before the expiry check so the response is
	// the same regardless of expiry state.
	if pc.DeviceID == deviceID {
		return nil, apperrors.SelfPairing()
	}

	if pc.Expired(time.Now()) {
		// Lazy expiry: the row is deleted when the expiry is detected, so a
		// retry on the same code reports NotFound rather than Expired.
		if err := s.codeRepo.DeleteByCode(ctx, code); err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to delete expired pairing code")
		}
		return nil, apperrors.PairingExpired()
	}

	consumed, room, err := s.codeRepo.Consume(ctx, code, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if consumed == nil {
		// Another consumer won the race between our read and the update.
		return nil, apperrors.NotFound("Pairing code")
	}

	log.Info().
		Str("roomId", room.ID).
		Str("generator", consumed.DeviceID).
		Str("consumer", deviceID).
		Msg("devices paired")

	return &PairResult{
		RoomID:            room.ID,
		GeneratorDeviceID: consumed.DeviceID,
		ConsumerDeviceID:  deviceID,
	}, nil
}

// Unpair tears the room down: messages, the room row and residual
// pairing codes. Unpairing an already-deleted room is a no-op.
func (s *PairingService) Unpair(ctx context.Context, roomID string) error {
	if err := s.roomRepo.Destroy(ctx, roomID); err != nil {
		return apperrors.Database(err)
	}

	log.Info().Str("roomId", roomID).Msg("room unpaired")
	return nil
}

// Room returns the durable membership record, or nil when the room no
// longer exists.
func (s *PairingService) Room(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return room, nil
}

func generatePairingCode() string {
	n, _ := rand.Int(rand.Reader, pairingCodeMax)
	return fmt.Sprintf("%0*d", pairingCodeDigits, n)
}
