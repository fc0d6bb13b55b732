package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/infrastructure/metrics"
)

type localStore interface {
	ListUnsynced(ctx context.Context) ([]domain.Registration, error)
	MarkSynced(ctx context.Context, registrationID string, at time.Time) error
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

type remoteStore interface {
	HasRegistration(ctx context.Context, registrationID string) (bool, error)
	AppendRegistration(ctx context.Context, r *domain.Registration) error
	AppendTransaction(ctx context.Context, t *domain.Transaction) error
}

// Reconciler re-pushes registrations the remote sheet never acknowledged.
// A registration already present remotely is only stamped, so repeated passes
// never duplicate rows. Registrations younger than the settle window are left
// to the submission path's own push.
type Reconciler struct {
	local   localStore
	remote  remoteStore
	now     func() time.Time
	timeout time.Duration
	settle  time.Duration
	metrics *metrics.Metrics
}

type ReconcilerDeps struct {
	Local   localStore
	Remote  remoteStore
	Clock   func() time.Time
	Timeout time.Duration // per registration
	// Settle defaults to Timeout: the longest a post-commit push can still be
	// in flight.
	Settle  time.Duration
	Metrics *metrics.Metrics
}

func NewReconciler(deps ReconcilerDeps) *Reconciler {
	r := &Reconciler{
		local:   deps.Local,
		remote:  deps.Remote,
		now:     deps.Clock,
		timeout: deps.Timeout,
		settle:  deps.Settle,
		metrics: deps.Metrics,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.timeout <= 0 {
		r.timeout = 15 * time.Second
	}
	if r.settle <= 0 {
		r.settle = r.timeout
	}
	return r
}

// ReconcileOnce runs a single pass and returns how many registrations were
// pushed or stamped. A remote that is not initialised stops the pass early.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	pending, err := r.local.ListUnsynced(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unsynced: %w", err)
	}
	synced := 0
	now := r.now()
	for i := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if now.Sub(pending[i].RegisteredAt) < r.settle {
			continue
		}
		err := r.syncOne(ctx, &pending[i])
		if errors.Is(err, domain.ErrNotInitialized) {
			return synced, err
		}
		if err != nil {
			r.metrics.IncSyncFailure("reconcile")
			slog.Warn("reconcile registration failed", "registration_id", pending[i].RegistrationID, "err", err)
			continue
		}
		synced++
	}
	if synced > 0 {
		slog.Info("reconciled registrations", "synced", synced, "pending", len(pending)-synced)
	}
	return synced, nil
}

func (r *Reconciler) syncOne(ctx context.Context, reg *domain.Registration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	exists, err := r.remote.HasRegistration(ctx, reg.RegistrationID)
	if err != nil {
		return err
	}
	if !exists {
		tx, err := r.local.GetTransaction(ctx, reg.Payment.TransactionID)
		switch {
		case err == nil:
			if err := r.remote.AppendTransaction(ctx, tx); err != nil {
				return err
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		if err := r.remote.AppendRegistration(ctx, reg); err != nil {
			return err
		}
	}
	return r.local.MarkSynced(ctx, reg.RegistrationID, r.now())
}

// Run reconciles every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("reconcile pass aborted", "err", err)
			}
		}
	}
}
