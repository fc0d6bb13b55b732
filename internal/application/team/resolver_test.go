package team

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockTeamStore struct{ mock.Mock }

func (m *mockTeamStore) FindTeam(ctx context.Context, leaderEmail, eventKey string) (string, error) {
	args := m.Called(ctx, leaderEmail, eventKey)
	return args.String(0), args.Error(1)
}
func (m *mockTeamStore) UpdateRoster(ctx context.Context, teamID string, roster domain.Roster) error {
	return m.Called(ctx, teamID, roster).Error(0)
}

type mockRemote struct{ mock.Mock }

func (m *mockRemote) CheckExistingTeam(ctx context.Context, email, eventName string) (string, bool, error) {
	args := m.Called(ctx, email, eventName)
	return args.String(0), args.Bool(1), args.Error(2)
}
func (m *mockRemote) UpdateTeamMembers(ctx context.Context, teamID string, roster domain.Roster) error {
	return m.Called(ctx, teamID, roster).Error(0)
}

func newResolver(st *mockTeamStore, remote RemoteTeams) *Resolver {
	return NewResolver(ResolverDeps{Store: st, Remote: remote, Clock: time.Now})
}

// --- ResolveTeam ---

func TestResolveTeam_IndividualIsNoTeam(t *testing.T) {
	st := &mockTeamStore{}
	got, err := newResolver(st, nil).ResolveTeam(context.Background(), "a@x.com", "Hackathon", domain.ParticipationIndividual)
	require.NoError(t, err)
	assert.Equal(t, domain.NoTeam, got)
	st.AssertNotCalled(t, "FindTeam", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveTeam_UnknownParticipation(t *testing.T) {
	_, err := newResolver(&mockTeamStore{}, nil).ResolveTeam(context.Background(), "a@x.com", "Hackathon", "duo")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveTeam_SamePairSameID_DifferentEventDifferentID(t *testing.T) {
	st := &mockTeamStore{}
	st.On("FindTeam", mock.Anything, mock.Anything, mock.Anything).Return("", domain.ErrNotFound)
	r := newResolver(st, nil)
	ctx := context.Background()

	first, err := r.ResolveTeam(ctx, "a@x.com", "Hackathon", domain.ParticipationTeam)
	require.NoError(t, err)
	second, err := r.ResolveTeam(ctx, "A@x.com", "Hackathon", domain.ParticipationTeam)
	require.NoError(t, err)
	other, err := r.ResolveTeam(ctx, "a@x.com", "Robo Race", domain.ParticipationTeam)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, "TEAM-"))
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestResolveTeam_JoinsLocalTeam(t *testing.T) {
	st := &mockTeamStore{}
	st.On("FindTeam", mock.Anything, "a@x.com", "Hackathon").Return("TEAM-LOCAL-1", nil)
	remote := &mockRemote{}

	got, err := newResolver(st, remote).ResolveTeam(context.Background(), "a@x.com", "Hackathon", domain.ParticipationTeam)
	require.NoError(t, err)
	assert.Equal(t, "TEAM-LOCAL-1", got)
	remote.AssertNotCalled(t, "CheckExistingTeam", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveTeam_JoinsRemoteTeam(t *testing.T) {
	st := &mockTeamStore{}
	st.On("FindTeam", mock.Anything, mock.Anything, mock.Anything).Return("", domain.ErrNotFound)
	remote := &mockRemote{}
	remote.On("CheckExistingTeam", mock.Anything, "a@x.com", "Hackathon").Return("TEAM-REMOTE-1", true, nil)

	got, err := newResolver(st, remote).ResolveTeam(context.Background(), "a@x.com", "Hackathon", domain.ParticipationTeam)
	require.NoError(t, err)
	assert.Equal(t, "TEAM-REMOTE-1", got)
}

func TestResolveTeam_RemoteFailureMintsNew(t *testing.T) {
	st := &mockTeamStore{}
	st.On("FindTeam", mock.Anything, mock.Anything, mock.Anything).Return("", domain.ErrNotFound)
	remote := &mockRemote{}
	remote.On("CheckExistingTeam", mock.Anything, mock.Anything, mock.Anything).Return("", false, errors.New("timeout"))

	got, err := newResolver(st, remote).ResolveTeam(context.Background(), "a@x.com", "Hackathon", domain.ParticipationTeam)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "TEAM-"))
}

func TestResolveTeam_StoreFailure(t *testing.T) {
	st := &mockTeamStore{}
	st.On("FindTeam", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("io"))

	_, err := newResolver(st, nil).ResolveTeam(context.Background(), "a@x.com", "Hackathon", domain.ParticipationTeam)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

// --- MergeMembers ---

func TestMergeMembers_RecomputesRoster(t *testing.T) {
	st := &mockTeamStore{}
	remote := &mockRemote{}
	members := []domain.TeamMember{
		{Name: "Asha", Email: "a@x.com", Phone: "1"},
		{Name: "Ravi", Email: "r@x.com", Phone: "2"},
	}
	want := domain.Roster{Size: 2, Names: "Asha, Ravi", Emails: "a@x.com, r@x.com", Phones: "1, 2"}
	st.On("UpdateRoster", mock.Anything, "TEAM-1", want).Return(nil)
	remote.On("UpdateTeamMembers", mock.Anything, "TEAM-1", want).Return(errors.New("sheets down"))

	got, err := newResolver(st, remote).MergeMembers(context.Background(), "TEAM-1", members)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	st.AssertExpectations(t)
	remote.AssertExpectations(t)
}

func TestMergeMembers_NoTeamIsNoop(t *testing.T) {
	st := &mockTeamStore{}
	_, err := newResolver(st, nil).MergeMembers(context.Background(), domain.NoTeam, nil)
	require.NoError(t, err)
	st.AssertNotCalled(t, "UpdateRoster", mock.Anything, mock.Anything, mock.Anything)
}
