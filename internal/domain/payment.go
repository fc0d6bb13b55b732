package domain

import (
	"fmt"
	"time"
)

// VerificationStatus tracks the manual review of a UPI payment claim.
type VerificationStatus string

const (
	VerificationClaimed     VerificationStatus = "claimed"
	VerificationUnderReview VerificationStatus = "under_review"
	VerificationConfirmed   VerificationStatus = "confirmed"
	VerificationRejected    VerificationStatus = "rejected"
)

var verificationTransitions = map[VerificationStatus][]VerificationStatus{
	VerificationClaimed:     {VerificationUnderReview, VerificationConfirmed, VerificationRejected},
	VerificationUnderReview: {VerificationConfirmed, VerificationRejected},
}

// CanTransition reports whether a claim may move from s to next.
// Confirmed and Rejected are terminal.
func (s VerificationStatus) CanTransition(next VerificationStatus) bool {
	for _, allowed := range verificationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransactionStatus returns the transaction status implied by a verification status.
func (s VerificationStatus) TransactionStatus() TransactionStatus {
	switch s {
	case VerificationConfirmed:
		return TransactionCompleted
	case VerificationRejected:
		return TransactionFailed
	default:
		return TransactionPending
	}
}

// UPIVerification is the record created by a payment claim. Nothing about it is
// checked against a banking rail; it waits for a human reviewer.
type UPIVerification struct {
	VerificationID   string             `json:"verificationId" dynamodbav:"verification_id"`
	UPITransactionID string             `json:"upiTransactionId" dynamodbav:"upi_transaction_id"`
	PayerName        string             `json:"payerName" dynamodbav:"payer_name"`
	PayerUPI         string             `json:"payerUPI,omitempty" dynamodbav:"payer_upi"`
	Amount           float64            `json:"amount,omitempty" dynamodbav:"amount"`
	Status           VerificationStatus `json:"status" dynamodbav:"status"`
	SubmittedAt      time.Time          `json:"submittedAt" dynamodbav:"submitted_at"`
	ReviewedAt       *time.Time         `json:"reviewedAt,omitempty" dynamodbav:"reviewed_at"`
}

// Advance moves the claim to next, stamping ReviewedAt on terminal states.
func (v *UPIVerification) Advance(next VerificationStatus, at time.Time) error {
	if !v.Status.CanTransition(next) {
		return fmt.Errorf("cannot move claim from %s to %s: %w", v.Status, next, ErrConflict)
	}
	v.Status = next
	if next == VerificationConfirmed || next == VerificationRejected {
		t := at.UTC()
		v.ReviewedAt = &t
	}
	return nil
}

// PaymentClaim is the user-asserted payment data accepted by the intake.
type PaymentClaim struct {
	UPITransactionID string  `json:"upiTransactionId" validate:"required,max=64"`
	PayerName        string  `json:"payerName" validate:"required,max=120"`
	PayerUPI         string  `json:"payerUPI" validate:"omitempty,max=120"`
	Amount           float64 `json:"amount" validate:"gte=0"`
	// VerificationID links a claim already recorded through the intake endpoint.
	VerificationID string `json:"verificationId,omitempty"`
}

// ReviewDecision is the outcome a reviewer applies to a claim.
type ReviewDecision string

const (
	DecisionStartReview ReviewDecision = "review"
	DecisionConfirm     ReviewDecision = "confirm"
	DecisionReject      ReviewDecision = "reject"
)

// Status maps a decision onto the verification status it produces.
func (d ReviewDecision) Status() (VerificationStatus, error) {
	switch d {
	case DecisionStartReview:
		return VerificationUnderReview, nil
	case DecisionConfirm:
		return VerificationConfirmed, nil
	case DecisionReject:
		return VerificationRejected, nil
	}
	return "", fmt.Errorf("unknown review decision %q: %w", d, ErrValidation)
}
