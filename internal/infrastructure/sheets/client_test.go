package sheetsinfra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/sheets/v4"
)

// fakeValues is an in-memory spreadsheet keyed by sheet name.
type fakeValues struct {
	mu       sync.Mutex
	tables   map[string][][]interface{}
	probeErr error
	failAll  error
	batches  int
}

func newFakeValues() *fakeValues {
	return &fakeValues{tables: map[string][][]interface{}{}}
}

func sheetOf(rng string) string { return strings.SplitN(rng, "!", 2)[0] }

func (f *fakeValues) Probe(context.Context) error { return f.probeErr }

func (f *fakeValues) Read(_ context.Context, rng string) ([][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	return append([][]interface{}(nil), f.tables[sheetOf(rng)]...), nil
}

func (f *fakeValues) Append(_ context.Context, rng string, rows [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.tables[sheetOf(rng)] = append(f.tables[sheetOf(rng)], rows...)
	return nil
}

// BatchUpdate understands single-row ranges like "Registrations!M3:P3".
func (f *fakeValues) BatchUpdate(_ context.Context, data []*sheets.ValueRange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.batches++
	for _, vr := range data {
		sheet := sheetOf(vr.Range)
		cells := strings.SplitN(vr.Range, "!", 2)[1]
		start := strings.SplitN(cells, ":", 2)[0]
		col := int(start[0] - 'A')
		var rowNum int
		if _, err := fmt.Sscanf(start[1:], "%d", &rowNum); err != nil {
			return err
		}
		row := f.tables[sheet][rowNum-1]
		for i, v := range vr.Values[0] {
			row[col+i] = v
		}
	}
	return nil
}

func registration(regID, teamID, email, events string) *domain.Registration {
	return &domain.Registration{
		RegistrationID:    regID,
		TeamID:            teamID,
		EventKey:          events,
		StudentDetails:    domain.StudentDetails{Name: "Asha", Email: email, Phone: "9876543210"},
		ParticipationType: domain.ParticipationTeam,
		TeamMembers:       []domain.TeamMember{{Name: "Ravi", Email: "ravi@x.com", Phone: "9000000000"}},
		RegisteredAt:      time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Status:            domain.RegistrationStatusPending,
	}
}

func TestNewClient_ProbeFailureFailsFast(t *testing.T) {
	f := newFakeValues()
	f.probeErr = errors.New("403")
	c := newClient(context.Background(), f)
	assert.False(t, c.Ready())

	err := c.AppendRegistration(context.Background(), registration("r1", "TEAM-1", "a@x.com", "Hackathon"))
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, _, err = c.CheckExistingTeam(context.Background(), "a@x.com", "Hackathon")
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestNilClientIsNotReady(t *testing.T) {
	var c *Client
	assert.False(t, c.Ready())
}

func TestNewClient_WritesHeadersOnEmptySheets(t *testing.T) {
	f := newFakeValues()
	c := newClient(context.Background(), f)
	require.True(t, c.Ready())
	assert.Equal(t, "Team ID", f.tables[RegistrationsSheet][0][0])
	assert.Equal(t, "Transaction ID", f.tables[TransactionsSheet][0][0])
	assert.Len(t, f.tables[RegistrationsSheet][0], 23)
	assert.Len(t, f.tables[TransactionsSheet][0], 13)
}

func TestAppendAndQueryByTeam(t *testing.T) {
	ctx := context.Background()
	f := newFakeValues()
	c := newClient(ctx, f)
	require.NoError(t, c.AppendRegistration(ctx, registration("r1", "TEAM-1", "a@x.com", "Hackathon")))
	require.NoError(t, c.AppendRegistration(ctx, registration("r2", "TEAM-2", "b@x.com", "Robo Race")))
	require.NoError(t, c.AppendRegistration(ctx, registration("r3", "TEAM-1", "c@x.com", "Hackathon")))

	rows, err := c.GetRegistrationsByTeamID(ctx, "TEAM-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, 4, rows[1].Number)

	teamID, found, err := c.CheckExistingTeam(ctx, "A@X.COM", "Hackathon")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "TEAM-1", teamID)

	_, found, err = c.CheckExistingTeam(ctx, "a@x.com", "Robo Race")
	require.NoError(t, err)
	assert.False(t, found)

	ok, err := c.HasRegistration(ctx, "r2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateTeamMembers_PatchesEveryMatchingRow(t *testing.T) {
	ctx := context.Background()
	f := newFakeValues()
	c := newClient(ctx, f)
	require.NoError(t, c.AppendRegistration(ctx, registration("r1", "TEAM-1", "a@x.com", "Hackathon")))
	require.NoError(t, c.AppendRegistration(ctx, registration("r2", "TEAM-2", "b@x.com", "Hackathon")))
	require.NoError(t, c.AppendRegistration(ctx, registration("r3", "TEAM-1", "c@x.com", "Hackathon")))

	roster := domain.Roster{Size: 3, Names: "A, B, C", Emails: "a, b, c", Phones: "1, 2, 3"}
	require.NoError(t, c.UpdateTeamMembers(ctx, "TEAM-1", roster))

	regs := f.tables[RegistrationsSheet]
	for _, n := range []int{1, 3} {
		assert.Equal(t, "3", regs[n][colRegTeamSize])
		assert.Equal(t, "A, B, C", regs[n][colRegMemberNames])
		assert.Equal(t, "1, 2, 3", regs[n][colRegMemberPhones])
	}
	assert.Equal(t, "2", regs[2][colRegTeamSize])
}

func TestUpdateTeamMembers_NoMatchIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFakeValues()
	c := newClient(ctx, f)
	require.NoError(t, c.UpdateTeamMembers(ctx, "TEAM-X", domain.Roster{Size: 1}))
	assert.Equal(t, 0, f.batches)
}

func TestRemoteErrorsWrapExternalService(t *testing.T) {
	ctx := context.Background()
	f := newFakeValues()
	c := newClient(ctx, f)
	f.failAll = errors.New("quota exceeded")
	err := c.AppendTransaction(ctx, &domain.Transaction{TransactionID: "t1"})
	assert.ErrorIs(t, err, domain.ErrExternalService)
	_, err = c.HasRegistration(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestTransactionRow_TeamIDInColumnB(t *testing.T) {
	team, reg := "TEAM-1", "r1"
	row := transactionRow(&domain.Transaction{
		TransactionID:    "t1",
		TeamID:           &team,
		RegistrationID:   &reg,
		Amount:           500,
		VerificationData: domain.UPIVerification{UPITransactionID: "123456789012"},
	})
	require.Len(t, row, 13)
	assert.Equal(t, "TEAM-1", row[1])
	assert.Equal(t, "500.00", row[colTxAmount])
	assert.Equal(t, "123456789012", row[12])
}
