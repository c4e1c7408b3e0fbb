package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/gfd-sse/off2on-bridge-go/internal/errors"
	"github.com/gfd-sse/off2on-bridge-go/internal/model"
	"github.com/gfd-sse/off2on-bridge-go/internal/repository"
	"github.com/gfd-sse/off2on-bridge-go/internal/stream"
)

// ConnectionService orchestrates OTP validation, conflict detection and
// mapping activation. It is the only writer of mapping records during
// connection setup.
type ConnectionService struct {
	mappings  repository.MappingRepository
	registry  *stream.Registry
	otpLength int
}

func NewConnectionService(mappings repository.MappingRepository, registry *stream.Registry, otpLength int) *ConnectionService {
	return &ConnectionService{
		mappings:  mappings,
		registry:  registry,
		otpLength: otpLength,
	}
}

type ConnectResult struct {
	SourceID       string
	DestinationID  string
	Stream         *stream.Stream
	IsReconnection bool
}

// Connect establishes a stream for the destination device. With an OTP it is
// a first-time activation; without one it is a reconnection against an
// existing mapping.
func (s *ConnectionService) Connect(ctx context.Context, destinationID, otp string) (*ConnectResult, error) {
	if strings.TrimSpace(destinationID) == "" {
		return nil, apperrors.MissingRequired("destinationId")
	}

	if strings.TrimSpace(otp) != "" {
		return s.connectWithOTP(ctx, destinationID, otp)
	}
	return s.reconnect(ctx, destinationID)
}

func (s *ConnectionService) connectWithOTP(ctx context.Context, destinationID, otp string) (*ConnectResult, error) {
	code, err := ParseOTP(otp, s.otpLength)
	if err != nil {
		return nil, err
	}

	mapping, err := s.mappings.FindByPendingOTP(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if mapping == nil {
		log.Warn().Str("destinationId", destinationID).Msg("connection rejected: invalid or expired otp")
		return nil, apperrors.InvalidOTP()
	}

	if err := s.checkDeviceConflict(ctx, destinationID, mapping.SourceID); err != nil {
		return nil, err
	}

	// Conditional update keyed by the code: concurrent redemption attempts
	// with the same code produce exactly one winner, and the winning write
	// clears the code so it can never activate a second mapping.
	activated, err := s.mappings.Activate(ctx, code, destinationID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if activated == nil {
		log.Warn().Str("destinationId", destinationID).Msg("connection rejected: otp consumed concurrently")
		return nil, apperrors.InvalidOTP()
	}

	log.Info().
		Str("sourceId", activated.SourceID).
		Str("destinationId", destinationID).
		Msg("device mapping activated, otp cleared")

	return s.openStream(activated.SourceID, destinationID, false), nil
}

func (s *ConnectionService) reconnect(ctx context.Context, destinationID string) (*ConnectResult, error) {
	mapping, err := s.mappings.FindByDestinationID(ctx, destinationID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if mapping == nil {
		log.Warn().Str("destinationId", destinationID).Msg("reconnection rejected: no mapping found")
		return nil, apperrors.MappingNotFound()
	}

	// Found-but-inactive mappings are reconnectable: reactivate rather than
	// reject.
	if !mapping.Active {
		if err := s.mappings.SetActive(ctx, mapping.ID, true); err != nil {
			return nil, apperrors.Database(err)
		}
	}

	log.Info().
		Str("sourceId", mapping.SourceID).
		Str("destinationId", destinationID).
		Msg("reconnecting using existing mapping")

	return s.openStream(mapping.SourceID, destinationID, true), nil
}

// checkDeviceConflict rejects activation when the destination is already
// bound to a different source. The same source is a reconnection and allowed.
func (s *ConnectionService) checkDeviceConflict(ctx context.Context, destinationID, sourceID string) error {
	existing, err := s.mappings.FindByDestinationID(ctx, destinationID)
	if err != nil {
		return apperrors.Database(err)
	}
	if existing != nil && existing.SourceID != sourceID {
		log.Warn().
			Str("destinationId", destinationID).
			Str("boundSourceId", existing.SourceID).
			Str("otpSourceId", sourceID).
			Msg("connection rejected: destination bound to different source")
		return apperrors.DeviceConflict()
	}
	return nil
}

// openStream is the common tail of both paths: open (displacing any existing
// stream for the source) and acknowledge connectivity through the new stream.
func (s *ConnectionService) openStream(sourceID, destinationID string, reconnection bool) *ConnectResult {
	st := s.registry.Open(sourceID)

	ack := model.NewDomainEvent(model.EventConnectionEstablished, sourceID)
	ack.Message = "SSE connection established successfully"
	s.registry.Deliver(sourceID, ack)

	return &ConnectResult{
		SourceID:       sourceID,
		DestinationID:  destinationID,
		Stream:         st,
		IsReconnection: reconnection,
	}
}

// Disconnect closes the live stream for the destination's source, if any.
// It does not deactivate the mapping; only a disconnect-request event does.
func (s *ConnectionService) Disconnect(ctx context.Context, destinationID string) (bool, error) {
	if strings.TrimSpace(destinationID) == "" {
		return false, nil
	}

	mapping, err := s.mappings.FindByDestinationID(ctx, destinationID)
	if err != nil {
		return false, apperrors.Database(err)
	}
	if mapping == nil {
		log.Warn().Str("destinationId", destinationID).Msg("no mapping found for disconnect")
		return false, nil
	}

	s.registry.Close(mapping.SourceID)
	log.Info().
		Str("sourceId", mapping.SourceID).
		Str("destinationId", destinationID).
		Msg("stream closed on disconnect request")
	return true, nil
}

func (s *ConnectionService) IsConnected(ctx context.Context, destinationID string) (bool, error) {
	if strings.TrimSpace(destinationID) == "" {
		return false, nil
	}

	mapping, err := s.mappings.FindByDestinationID(ctx, destinationID)
	if err != nil {
		return false, apperrors.Database(err)
	}
	if mapping == nil {
		return false, nil
	}

	return s.registry.Has(mapping.SourceID), nil
}
