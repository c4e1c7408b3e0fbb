package repository

import (
	"context"
	"time"

	"github.com/gfd-sse/off2on-bridge-go/internal/database"
	"github.com/gfd-sse/off2on-bridge-go/internal/model"
)

type MappingRepository interface {
	FindByPendingOTP(ctx context.Context, otp int64) (*model.DeviceMapping, error)
	FindByDestinationID(ctx context.Context, destinationID string) (*model.DeviceMapping, error)
	FindBySourceID(ctx context.Context, sourceID string) (*model.DeviceMapping, error)
	// Activate is the one-winner redemption step: the conditional update
	// succeeds for at most one caller per code and clears the OTP in the same
	// write that binds the destination. Returns nil when the code has already
	// been consumed or expired.
	Activate(ctx context.Context, otp int64, destinationID string) (*model.DeviceMapping, error)
	SetActive(ctx context.Context, id string, active bool) error
	// UpsertPendingOTP stores a fresh pending code for a source, replacing
	// any previous one so only the newest code is redeemable.
	UpsertPendingOTP(ctx context.Context, sourceID string, otp int64, expiresAt time.Time) (*model.DeviceMapping, error)
	OTPExists(ctx context.Context, otp int64) (bool, error)
	ClearExpiredOTPs(ctx context.Context) (int64, error)
}

type mappingRepo struct {
	db database.DBTX
}

func NewMappingRepository(db database.DBTX) MappingRepository {
	return &mappingRepo{db: db}
}

func (r *mappingRepo) FindByPendingOTP(ctx context.Context, otp int64) (*model.DeviceMapping, error) {
	var m model.DeviceMapping
	err := r.db.GetContext(ctx, &m, `
		SELECT * FROM device_mappings
		WHERE pending_otp = $1 AND otp_expires_at > NOW()
	`, otp)
	return HandleNotFound(&m, err)
}

func (r *mappingRepo) FindByDestinationID(ctx context.Context, destinationID string) (*model.DeviceMapping, error) {
	var m model.DeviceMapping
	err := r.db.GetContext(ctx, &m, `
		SELECT * FROM device_mappings
		WHERE destination_id = $1
	`, destinationID)
	return HandleNotFound(&m, err)
}

func (r *mappingRepo) FindBySourceID(ctx context.Context, sourceID string) (*model.DeviceMapping, error) {
	var m model.DeviceMapping
	err := r.db.GetContext(ctx, &m, `
		SELECT * FROM device_mappings
		WHERE source_id = $1
	`, sourceID)
	return HandleNotFound(&m, err)
}

func (r *mappingRepo) Activate(ctx context.Context, otp int64, destinationID string) (*model.DeviceMapping, error) {
	var m model.DeviceMapping
	err := r.db.GetContext(ctx, &m, `
		UPDATE device_mappings SET
			destination_id = $2,
			active = TRUE,
			pending_otp = NULL,
			otp_expires_at = NULL,
			updated_at = NOW()
		WHERE pending_otp = $1 AND otp_expires_at > NOW()
		RETURNING *
	`, otp, destinationID)
	return HandleNotFound(&m, err)
}

func (r *mappingRepo) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE device_mappings SET
			active = $2,
			updated_at = NOW()
		WHERE id = $1
	`, id, active)
	return err
}

func (r *mappingRepo) UpsertPendingOTP(ctx context.Context, sourceID string, otp int64, expiresAt time.Time) (*model.DeviceMapping, error) {
	var m model.DeviceMapping
	err := r.db.GetContext(ctx, &m, `
		INSERT INTO device_mappings (source_id, pending_otp, otp_expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET
			pending_otp = EXCLUDED.pending_otp,
			otp_expires_at = EXCLUDED.otp_expires_at,
			updated_at = NOW()
		RETURNING *
	`, sourceID, otp, expiresAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mappingRepo) OTPExists(ctx context.Context, otp int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM device_mappings
			WHERE pending_otp = $1 AND otp_expires_at > NOW()
		)
	`, otp)
	return exists, err
}

func (r *mappingRepo) ClearExpiredOTPs(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE device_mappings SET
			pending_otp = NULL,
			otp_expires_at = NULL,
			updated_at = NOW()
		WHERE pending_otp IS NOT NULL AND otp_expires_at <= NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
