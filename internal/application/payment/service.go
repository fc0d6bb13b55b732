package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/infrastructure/metrics"
	"github.com/go-event-registration/internal/pkg/id"
	"github.com/go-event-registration/internal/pkg/validate"
)

// Service is the payment claim intake. It records what the payer asserts and
// never contacts a bank or gateway; confirmation is a later human decision.
type Service interface {
	SubmitClaim(ctx context.Context, claim domain.PaymentClaim) (*domain.UPIVerification, error)
	Prepare(ctx context.Context, claim domain.PaymentClaim) (v *domain.UPIVerification, isNew bool, err error)
	Review(ctx context.Context, verificationID string, decision domain.ReviewDecision) (*domain.UPIVerification, error)
}

type claimStore interface {
	PutVerification(ctx context.Context, v *domain.UPIVerification) error
	GetVerification(ctx context.Context, verificationID string) (*domain.UPIVerification, error)
	FindVerificationByUPI(ctx context.Context, upiTransactionID string) (*domain.UPIVerification, error)
	ApplyReview(ctx context.Context, verificationID string, next domain.VerificationStatus, at time.Time) (*domain.UPIVerification, error)
}

type service struct {
	store   claimStore
	now     func() time.Time
	metrics *metrics.Metrics
}

type ServiceDeps struct {
	Store   claimStore
	Clock   func() time.Time
	Metrics *metrics.Metrics
}

func NewService(deps ServiceDeps) Service {
	s := &service{store: deps.Store, now: deps.Clock, metrics: deps.Metrics}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SubmitClaim records a claim and returns it with its verification id. A repeat
// of an already recorded claim returns the existing record.
func (s *service) SubmitClaim(ctx context.Context, claim domain.PaymentClaim) (*domain.UPIVerification, error) {
	v, isNew, err := s.Prepare(ctx, claim)
	if err != nil {
		return nil, err
	}
	if !isNew {
		return v, nil
	}
	if err := s.store.PutVerification(ctx, v); err != nil {
		return nil, persistence("record payment claim", err)
	}
	s.metrics.IncClaimsSubmitted()
	return v, nil
}

// Prepare resolves a claim to a verification record without writing anything.
// isNew is true when the caller is responsible for persisting the record.
func (s *service) Prepare(ctx context.Context, claim domain.PaymentClaim) (*domain.UPIVerification, bool, error) {
	claim.UPITransactionID = strings.TrimSpace(claim.UPITransactionID)
	claim.PayerName = strings.TrimSpace(claim.PayerName)
	claim.PayerUPI = strings.TrimSpace(claim.PayerUPI)
	if err := validate.Struct(claim); err != nil {
		return nil, false, err
	}

	if claim.VerificationID != "" {
		v, err := s.store.GetVerification(ctx, claim.VerificationID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("unknown verification id: %w", domain.ErrValidation)
		}
		if err != nil {
			return nil, false, persistence("load payment claim", err)
		}
		if v.UPITransactionID != claim.UPITransactionID {
			return nil, false, fmt.Errorf("verification id does not match UPI transaction: %w", domain.ErrValidation)
		}
		return v, false, nil
	}

	existing, err := s.store.FindVerificationByUPI(ctx, claim.UPITransactionID)
	switch {
	case err == nil:
		if !strings.EqualFold(existing.PayerName, claim.PayerName) {
			return nil, false, fmt.Errorf("UPI transaction already claimed by another payer: %w", domain.ErrConflict)
		}
		return existing, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, persistence("look up payment claim", err)
	}

	return &domain.UPIVerification{
		VerificationID:   "VER-" + id.New(),
		UPITransactionID: claim.UPITransactionID,
		PayerName:        claim.PayerName,
		PayerUPI:         claim.PayerUPI,
		Amount:           claim.Amount,
		Status:           domain.VerificationClaimed,
		SubmittedAt:      s.now().UTC(),
	}, true, nil
}

// Review applies a reviewer decision to a claim.
func (s *service) Review(ctx context.Context, verificationID string, decision domain.ReviewDecision) (*domain.UPIVerification, error) {
	next, err := decision.Status()
	if err != nil {
		return nil, err
	}
	v, err := s.store.ApplyReview(ctx, verificationID, next, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, persistence("apply payment review", err)
	}
	return v, nil
}

func persistence(op string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrPersistence)
}
