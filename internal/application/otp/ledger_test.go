package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- helpers ---

func newLedger(clock *fakeClock, mailer Mailer) *Ledger {
	return NewLedger(LedgerDeps{Mailer: mailer, Clock: clock.Now})
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
}

// --- tests ---

func TestIssue_SetsTenMinuteExpiry(t *testing.T) {
	clock := newClock()
	l := newLedger(clock, nil)
	issued, err := l.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Len(t, issued.Code, 6)
	assert.Equal(t, clock.Now().Add(10*time.Minute), issued.ExpiresAt)
	assert.False(t, issued.Delivered)
}

func TestIssue_InvalidEmail(t *testing.T) {
	l := newLedger(newClock(), nil)
	_, err := l.Issue(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIssue_MailFailureKeepsCodeValid(t *testing.T) {
	m := &mockMailer{}
	m.On("SendEmail", "a@x.com", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	l := newLedger(newClock(), m)

	issued, err := l.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, issued.Delivered)
	assert.True(t, l.Verify("a@x.com", issued.Code))
	m.AssertExpectations(t)
}

func TestIssue_Delivered(t *testing.T) {
	m := &mockMailer{}
	m.On("SendEmail", "a@x.com", "Your verification code", mock.Anything).Return(nil)
	l := newLedger(newClock(), m)

	issued, err := l.Issue(context.Background(), "A@X.com ")
	require.NoError(t, err)
	assert.True(t, issued.Delivered)
	m.AssertExpectations(t)
}

func TestVerify_ReissueInvalidatesPreviousCode(t *testing.T) {
	l := newLedger(newClock(), nil)
	first, err := l.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	second, err := l.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	if first.Code == second.Code {
		t.Skip("codes collided; nothing to distinguish")
	}
	assert.False(t, l.Verify("a@x.com", first.Code))
	assert.True(t, l.Verify("a@x.com", second.Code))
}

func TestVerify_SingleUse(t *testing.T) {
	l := newLedger(newClock(), nil)
	issued, err := l.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, l.Verify("a@x.com", issued.Code))
	assert.False(t, l.Verify("a@x.com", issued.Code))
}

func TestVerify_ExpiredAfterElevenMinutes(t *testing.T) {
	clock := newClock()
	l := newLedger(clock, nil)
	issued, err := l.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	clock.Advance(11 * time.Minute)
	assert.False(t, l.Verify("a@x.com", issued.Code))
}

func TestVerify_WrongCodeAndUnknownEmail(t *testing.T) {
	l := newLedger(newClock(), nil)
	issued, err := l.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	wrong := "000000"
	if issued.Code == wrong {
		wrong = "111111"
	}
	assert.False(t, l.Verify("a@x.com", wrong))
	assert.False(t, l.Verify("b@x.com", issued.Code))
	// a failed attempt does not burn the code
	assert.True(t, l.Verify("a@x.com", issued.Code))
}

func TestVerified_Window(t *testing.T) {
	clock := newClock()
	l := newLedger(clock, nil)
	issued, err := l.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, l.Verified("a@x.com"))
	require.True(t, l.Verify("a@x.com", issued.Code))
	assert.True(t, l.Verified("a@x.com"))
	clock.Advance(31 * time.Minute)
	assert.False(t, l.Verified("a@x.com"))
}

func TestSweep(t *testing.T) {
	clock := newClock()
	l := newLedger(clock, nil)
	_, err := l.Issue(context.Background(), "stale@x.com")
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)
	_, err = l.Issue(context.Background(), "fresh@x.com")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, l.Sweep())
	l.mu.Lock()
	_, stillThere := l.records["fresh@x.com"]
	l.mu.Unlock()
	assert.True(t, stillThere)
}
