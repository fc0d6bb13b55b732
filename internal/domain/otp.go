package domain

import "time"

// OTPRecord is the live one-time code for an email. Only the bcrypt hash of the
// code is kept; the plaintext leaves the ledger exactly once, on issue.
type OTPRecord struct {
	Email      string
	CodeHash   []byte
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Consumed   bool
	ConsumedAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IssuedOTP is what the ledger hands back to the caller of Issue.
type IssuedOTP struct {
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}
