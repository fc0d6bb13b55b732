package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/infrastructure/metrics"
	"github.com/go-event-registration/internal/pkg/id"
)

const (
	defaultSyncTimeout = 15 * time.Second
	defaultRetain      = 24 * time.Hour
)

type registrationStore interface {
	CommitRegistration(ctx context.Context, c domain.RegistrationCommit) error
	MarkSynced(ctx context.Context, registrationID string, at time.Time) error
}

type claimPreparer interface {
	Prepare(ctx context.Context, claim domain.PaymentClaim) (*domain.UPIVerification, bool, error)
}

type teamResolver interface {
	ResolveTeam(ctx context.Context, leaderEmail, eventName string, pt domain.ParticipationType) (string, error)
	MergeMembers(ctx context.Context, teamID string, members []domain.TeamMember) (domain.Roster, error)
}

// RemoteSync mirrors committed records into the spreadsheet.
type RemoteSync interface {
	AppendRegistration(ctx context.Context, r *domain.Registration) error
	AppendTransaction(ctx context.Context, t *domain.Transaction) error
}

// EmailVerifier reports whether an email recently passed OTP verification.
type EmailVerifier interface {
	Verified(email string) bool
}

type Notifier interface {
	RegistrationConfirmed(ctx context.Context, r *domain.Registration)
}

// Coordinator turns a validated submission into exactly one durable
// registration per client session.
type Coordinator struct {
	store    registrationStore
	claims   claimPreparer
	teams    teamResolver
	remote   RemoteSync
	emails   EmailVerifier
	notifier Notifier
	catalog  *domain.Catalog
	metrics  *metrics.Metrics

	flights     *flights
	now         func() time.Time
	syncTimeout time.Duration
}

type CoordinatorDeps struct {
	Store    registrationStore
	Claims   claimPreparer
	Teams    teamResolver
	Remote   RemoteSync    // nil disables remote sync
	Emails   EmailVerifier // nil skips the email proof check
	Notifier Notifier      // optional
	Catalog  *domain.Catalog
	Metrics  *metrics.Metrics

	Clock       func() time.Time
	SyncTimeout time.Duration
	// ReplayWindow is how long a completed submission is replayed to repeat calls.
	ReplayWindow time.Duration
}

func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	c := &Coordinator{
		store:       deps.Store,
		claims:      deps.Claims,
		teams:       deps.Teams,
		remote:      deps.Remote,
		emails:      deps.Emails,
		notifier:    deps.Notifier,
		catalog:     deps.Catalog,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		syncTimeout: deps.SyncTimeout,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.catalog == nil {
		c.catalog = domain.DefaultCatalog()
	}
	if c.syncTimeout <= 0 {
		c.syncTimeout = defaultSyncTimeout
	}
	retain := deps.ReplayWindow
	if retain <= 0 {
		retain = defaultRetain
	}
	c.flights = newFlights(retain, c.now)
	return c
}

// Submit registers the submission. A second call for the same session while the
// first is running fails with ErrConflict; once a call has succeeded, repeats
// get the same result back without writing anything.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) (*domain.SubmissionResult, error) {
	start := c.now()
	sub.normalize()
	key := sub.SessionKey
	if key == "" {
		key = sub.StudentDetails.Email
	}
	if key == "" {
		c.metrics.IncRejected("validation")
		return nil, invalid("a session key or student email is required")
	}

	replay, err := c.flights.begin(key, sub.fingerprint())
	if err != nil {
		c.metrics.IncRejected("conflict")
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	var result *domain.SubmissionResult
	defer func() { c.flights.finish(key, result) }()

	sub.SessionKey = key
	result, err = c.submit(ctx, &sub)
	if err != nil {
		c.metrics.IncRejected(reason(err))
		return nil, err
	}
	c.metrics.ObserveSubmit(start)
	return result, nil
}

func (c *Coordinator) submit(ctx context.Context, sub *Submission) (*domain.SubmissionResult, error) {
	if err := check(sub, c.catalog); err != nil {
		return nil, err
	}
	if err := c.checkEmailProof(sub); err != nil {
		return nil, err
	}

	verification, isNew, err := c.claims.Prepare(ctx, sub.Payment)
	if err != nil {
		return nil, err
	}

	eventKey := sub.EventSelection.EventKey()
	teamID, err := c.teams.ResolveTeam(ctx, sub.StudentDetails.Email, eventKey, sub.ParticipationType)
	if err != nil {
		return nil, err
	}

	reg, tx := c.build(sub, teamID, eventKey, verification)
	commit := domain.RegistrationCommit{Registration: reg, Transaction: tx}
	if isNew {
		commit.Verification = verification
	}
	if err := c.store.CommitRegistration(ctx, commit); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("commit registration: %v: %w", err, domain.ErrPersistence)
	}
	c.metrics.IncRegistrations()
	if isNew {
		c.metrics.IncClaimsSubmitted()
	}

	// The local commit is authoritative from here on; nothing below can fail
	// the submission.
	afterCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.syncTimeout)
	defer cancel()
	c.pushRemote(afterCtx, reg, tx)
	if teamID != domain.NoTeam {
		if _, err := c.teams.MergeMembers(afterCtx, teamID, reg.Members()); err != nil {
			slog.Warn("roster merge failed", "team_id", teamID, "registration_id", reg.RegistrationID, "err", err)
		}
	}
	if c.notifier != nil {
		c.notifier.RegistrationConfirmed(afterCtx, reg)
	}

	return &domain.SubmissionResult{RegistrationID: reg.RegistrationID, TeamID: teamID}, nil
}

func (c *Coordinator) checkEmailProof(sub *Submission) error {
	email := sub.StudentDetails.Email
	if sub.VerifiedEmail != "" {
		if !strings.EqualFold(sub.VerifiedEmail, email) {
			return fmt.Errorf("verification token is for a different email: %w", domain.ErrUnauthorized)
		}
		return nil
	}
	if c.emails != nil && !c.emails.Verified(email) {
		return fmt.Errorf("email %s has not been verified: %w", email, domain.ErrUnauthorized)
	}
	return nil
}

func (c *Coordinator) build(sub *Submission, teamID, eventKey string, v *domain.UPIVerification) (*domain.Registration, *domain.Transaction) {
	now := c.now().UTC()
	regID := "REG-" + id.New()
	txID := "TXN-" + id.New()

	reg := &domain.Registration{
		RegistrationID:    regID,
		TeamID:            teamID,
		EventKey:          eventKey,
		SessionKey:        sub.SessionKey,
		StudentDetails:    sub.StudentDetails,
		EventSelection:    sub.EventSelection,
		ParticipationType: sub.ParticipationType,
		TeamMembers:       sub.TeamMembers,
		Payment: domain.PaymentData{
			TransactionID: txID,
			Amount:        sub.EventSelection.TotalAmount,
			Verification:  *v,
		},
		RegisteredAt: now,
		Status:       domain.RegistrationStatusPending,
	}
	if reg.TeamMembers == nil {
		reg.TeamMembers = []domain.TeamMember{}
	}
	reg.Roster = domain.NewRoster(reg.Members())

	eventIDs := make([]string, 0, len(sub.EventSelection.SelectedEvents))
	for _, e := range sub.EventSelection.SelectedEvents {
		eventIDs = append(eventIDs, e.EventID)
	}
	tx := &domain.Transaction{
		TransactionID:  txID,
		RegistrationID: &regID,
		Customer: domain.CustomerInfo{
			Name:  sub.StudentDetails.Name,
			Email: sub.StudentDetails.Email,
			Phone: sub.StudentDetails.Phone,
		},
		EventID:          strings.Join(eventIDs, ","),
		Amount:           sub.EventSelection.TotalAmount,
		Currency:         domain.CurrencyINR,
		PaymentMethod:    domain.PaymentMethod,
		Status:           v.Status.TransactionStatus(),
		SubmittedAt:      now,
		VerificationData: *v,
	}
	if teamID != domain.NoTeam {
		tx.TeamID = &teamID
	}
	return reg, tx
}

// pushRemote mirrors the committed records. Failures are logged and left for
// the reconciler, which picks up every registration without a sync stamp.
func (c *Coordinator) pushRemote(ctx context.Context, reg *domain.Registration, tx *domain.Transaction) {
	if c.remote == nil {
		return
	}
	if err := c.remote.AppendTransaction(ctx, tx); err != nil {
		c.metrics.IncSyncFailure("append_transaction")
		slog.Warn("remote transaction sync failed", "transaction_id", tx.TransactionID, "registration_id", reg.RegistrationID, "err", err)
	}
	if err := c.remote.AppendRegistration(ctx, reg); err != nil {
		c.metrics.IncSyncFailure("append_registration")
		slog.Warn("remote registration sync failed", "registration_id", reg.RegistrationID, "team_id", reg.TeamID, "err", err)
		return
	}
	if err := c.store.MarkSynced(ctx, reg.RegistrationID, c.now()); err != nil {
		slog.Warn("mark registration synced failed", "registration_id", reg.RegistrationID, "err", err)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
