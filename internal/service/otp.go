package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/gfd-sse/off2on-bridge-go/internal/errors"
	"github.com/gfd-sse/off2on-bridge-go/internal/repository"
)

// OTPService is the sole issuer of pairing codes. A source has at most one
// redeemable code at a time; issuing a new one invalidates the old.
type OTPService struct {
	mappings repository.MappingRepository
	expiry   time.Duration
	length   int
}

func NewOTPService(mappings repository.MappingRepository, expiry time.Duration, length int) *OTPService {
	return &OTPService{
		mappings: mappings,
		expiry:   expiry,
		length:   length,
	}
}

type OTPTicket struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *OTPService) Issue(ctx context.Context, sourceID string) (*OTPTicket, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, apperrors.MissingRequired("sourceId")
	}

	code := s.randomCode()
	expiresAt := time.Now().Add(s.expiry)

	// The upsert overwrites any previous pending code for this source, so
	// only the newest code is redeemable.
	if _, err := s.mappings.UpsertPendingOTP(ctx, sourceID, code, expiresAt); err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sourceId", sourceID).
		Time("expiresAt", expiresAt).
		Msg("otp issued")

	return &OTPTicket{
		Code:      fmt.Sprintf("%d", code),
		ExpiresAt: expiresAt,
	}, nil
}

// Peek is a non-consuming existence check, for diagnostics only.
func (s *OTPService) Peek(ctx context.Context, code string) (bool, error) {
	value, err := ParseOTP(code, s.length)
	if err != nil {
		return false, nil
	}

	exists, dbErr := s.mappings.OTPExists(ctx, value)
	if dbErr != nil {
		return false, apperrors.Database(dbErr)
	}
	return exists, nil
}

// randomCode draws a fixed-length numeric code from crypto/rand. The low
// bound keeps the first digit non-zero so codes always print at full length.
func (s *OTPService) randomCode() int64 {
	low := int64(1)
	for i := 1; i < s.length; i++ {
		low *= 10
	}
	span := low*10 - low

	n, _ := rand.Int(rand.Reader, big.NewInt(span))
	return low + n.Int64()
}

// ParseOTP validates that the code is numeric and exactly the configured
// length.
func ParseOTP(code string, length int) (int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != length {
		return 0, apperrors.InvalidOTPFormat()
	}
	for _, c := range trimmed {
		if c < '0' || c > '9' {
			return 0, apperrors.InvalidOTPFormat()
		}
	}

	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, apperrors.InvalidOTPFormat()
	}
	return value, nil
}
