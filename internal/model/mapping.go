package model

import "time"

// DeviceMapping pairs a front-liner device (source) with a GFD device
// (destination). The pending OTP lives on the row so activation can clear it
// in the same write that sets the destination.
type DeviceMapping struct {
	ID            string     `db:"id" json:"id"`
	SourceID      string     `db:"source_id" json:"sourceId"`
	DestinationID *string    `db:"destination_id" json:"destinationId,omitempty"`
	Active        bool       `db:"active" json:"active"`
	PendingOTP    *int64     `db:"pending_otp" json:"-"`
	OTPExpiresAt  *time.Time `db:"otp_expires_at" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}
