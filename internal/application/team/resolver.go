package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/infrastructure/metrics"
	"github.com/go-event-registration/internal/pkg/id"
)

type teamStore interface {
	FindTeam(ctx context.Context, leaderEmail, eventKey string) (string, error)
	UpdateRoster(ctx context.Context, teamID string, roster domain.Roster) error
}

// RemoteTeams is the spreadsheet side of team lookups and roster patches.
type RemoteTeams interface {
	CheckExistingTeam(ctx context.Context, email, eventName string) (string, bool, error)
	UpdateTeamMembers(ctx context.Context, teamID string, roster domain.Roster) error
}

// Resolver decides whether a team registration joins an existing Team ID or
// mints a new one, and keeps the denormalised roster of a team up to date.
type Resolver struct {
	mu     sync.Mutex
	minted map[string]string

	store   teamStore
	remote  RemoteTeams
	now     func() time.Time
	metrics *metrics.Metrics
}

type ResolverDeps struct {
	Store   teamStore
	Remote  RemoteTeams // nil when remote sync is disabled
	Clock   func() time.Time
	Metrics *metrics.Metrics
}

func NewResolver(deps ResolverDeps) *Resolver {
	r := &Resolver{
		minted:  make(map[string]string),
		store:   deps.Store,
		remote:  deps.Remote,
		now:     deps.Clock,
		metrics: deps.Metrics,
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// ResolveTeam returns NoTeam for individual participation. For teams it reuses
// the Team ID already registered for (leaderEmail, eventName), looking at ids
// minted by this process, then the local store, then the spreadsheet, and
// mints a new one otherwise.
func (r *Resolver) ResolveTeam(ctx context.Context, leaderEmail, eventName string, pt domain.ParticipationType) (string, error) {
	switch pt {
	case domain.ParticipationIndividual:
		return domain.NoTeam, nil
	case domain.ParticipationTeam:
	default:
		return "", fmt.Errorf("unknown participation type %q: %w", pt, domain.ErrValidation)
	}

	leaderEmail = strings.ToLower(strings.TrimSpace(leaderEmail))
	key := leaderEmail + "\x00" + eventName

	r.mu.Lock()
	teamID, ok := r.minted[key]
	r.mu.Unlock()
	if ok {
		return teamID, nil
	}

	teamID, err := r.lookup(ctx, leaderEmail, eventName)
	if err != nil {
		return "", err
	}
	if teamID == "" {
		if teamID, err = id.NewTeamID(r.now()); err != nil {
			return "", err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.minted[key]; ok {
		return existing, nil
	}
	r.minted[key] = teamID
	return teamID, nil
}

func (r *Resolver) lookup(ctx context.Context, leaderEmail, eventName string) (string, error) {
	teamID, err := r.store.FindTeam(ctx, leaderEmail, eventName)
	if err == nil {
		return teamID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("team lookup: %v: %w", err, domain.ErrPersistence)
	}
	if r.remote == nil {
		return "", nil
	}
	teamID, found, err := r.remote.CheckExistingTeam(ctx, leaderEmail, eventName)
	if err != nil {
		r.metrics.IncSyncFailure("check_existing_team")
		slog.Warn("remote team lookup failed, treating as new team", "email", leaderEmail, "event", eventName, "err", err)
		return "", nil
	}
	if found {
		return teamID, nil
	}
	return "", nil
}

// MergeMembers recomputes the roster from the full membership and overwrites it
// on every local and remote row of the team. Last writer wins.
func (r *Resolver) MergeMembers(ctx context.Context, teamID string, members []domain.TeamMember) (domain.Roster, error) {
	roster := domain.NewRoster(members)
	if teamID == domain.NoTeam {
		return roster, nil
	}
	if err := r.store.UpdateRoster(ctx, teamID, roster); err != nil {
		return roster, fmt.Errorf("update roster: %v: %w", err, domain.ErrPersistence)
	}
	if r.remote != nil {
		if err := r.remote.UpdateTeamMembers(ctx, teamID, roster); err != nil {
			r.metrics.IncSyncFailure("update_team_members")
			slog.Warn("remote roster update failed", "team_id", teamID, "err", err)
		}
	}
	return roster, nil
}
