package otp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/infrastructure/metrics"
	"github.com/go-event-registration/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeDigits            = 6
	defaultTTL            = 10 * time.Minute
	defaultVerifiedWindow = 30 * time.Minute
)

// Mailer delivers the OTP email. A nil Mailer means delivery is simulated.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// Ledger issues and verifies one-time codes keyed by email. State is in-process
// only and is lost on restart.
type Ledger struct {
	mu      sync.Mutex
	records map[string]*domain.OTPRecord

	mailer         Mailer
	ttl            time.Duration
	verifiedWindow time.Duration
	hashCost       int
	now            func() time.Time
	metrics        *metrics.Metrics

	// dummyHash keeps verify timing flat when no record exists.
	dummyHash []byte
}

type LedgerDeps struct {
	Mailer         Mailer
	TTL            time.Duration
	VerifiedWindow time.Duration
	HashCost       int
	Clock          func() time.Time
	Metrics        *metrics.Metrics
}

func NewLedger(deps LedgerDeps) *Ledger {
	l := &Ledger{
		records:        make(map[string]*domain.OTPRecord),
		mailer:         deps.Mailer,
		ttl:            deps.TTL,
		verifiedWindow: deps.VerifiedWindow,
		hashCost:       deps.HashCost,
		now:            deps.Clock,
		metrics:        deps.Metrics,
	}
	if l.ttl <= 0 {
		l.ttl = defaultTTL
	}
	if l.verifiedWindow <= 0 {
		l.verifiedWindow = defaultVerifiedWindow
	}
	if l.hashCost < bcrypt.MinCost || l.hashCost > bcrypt.MaxCost {
		l.hashCost = bcrypt.MinCost
	}
	if l.now == nil {
		l.now = time.Now
	}
	l.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("000000"), l.hashCost)
	return l
}

// Issue creates a fresh code for email, replacing any previous one, and hands it
// to the mailer. A failed send is logged; the code stays valid.
func (l *Ledger) Issue(ctx context.Context, email string) (*domain.IssuedOTP, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required: %w", domain.ErrValidation)
	}
	code, err := token.NumericCode(codeDigits)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), l.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}
	now := l.now().UTC()
	rec := &domain.OTPRecord{
		Email:     email,
		CodeHash:  hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(l.ttl),
	}

	l.mu.Lock()
	l.records[email] = rec
	l.mu.Unlock()
	l.metrics.IncOTPIssued()

	issued := &domain.IssuedOTP{Code: code, ExpiresAt: rec.ExpiresAt}
	if l.mailer == nil {
		slog.Info("email not configured, OTP delivery simulated", "email", email, "otp", code)
		return issued, nil
	}
	if err := ctx.Err(); err != nil {
		slog.Warn("OTP email skipped, request cancelled", "email", email, "err", err)
		return issued, nil
	}
	body := fmt.Sprintf("Your registration verification code is %s. It expires in %d minutes.", code, int(l.ttl.Minutes()))
	if err := l.mailer.SendEmail(email, "Your verification code", body); err != nil {
		slog.Warn("failed to send OTP email", "email", email, "err", fmt.Errorf("%v: %w", err, domain.ErrExternalService))
		return issued, nil
	}
	issued.Delivered = true
	return issued, nil
}

// Verify reports whether code is the live, unconsumed, unexpired code for email.
// A success consumes the code. Failures carry no reason.
func (l *Ledger) Verify(email, code string) bool {
	email = normalizeEmail(email)
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[email]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(l.dummyHash, []byte(code))
		l.metrics.IncOTPVerifyFailed()
		return false
	}
	match := bcrypt.CompareHashAndPassword(rec.CodeHash, []byte(code)) == nil
	now := l.now().UTC()
	if !match || rec.Consumed || rec.Expired(now) {
		l.metrics.IncOTPVerifyFailed()
		return false
	}
	rec.Consumed = true
	rec.ConsumedAt = now
	return true
}

// Verified reports whether email completed verification within the verified window.
func (l *Ledger) Verified(email string) bool {
	email = normalizeEmail(email)
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[email]
	if !ok || !rec.Consumed {
		return false
	}
	return l.now().Sub(rec.ConsumedAt) < l.verifiedWindow
}

// Sweep drops expired unconsumed records and consumed records past the verified window.
func (l *Ledger) Sweep() int {
	now := l.now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for email, rec := range l.records {
		stale := rec.Consumed && now.Sub(rec.ConsumedAt) >= l.verifiedWindow
		if stale || (!rec.Consumed && rec.Expired(now)) {
			delete(l.records, email)
			removed++
		}
	}
	return removed
}

// Run sweeps the ledger every interval until ctx is done.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("swept OTP records", "removed", n)
			}
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
