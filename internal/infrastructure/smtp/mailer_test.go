package smtp

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-event-registration/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@x.com", "a@x.com", "Your code", "line1\nline2", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, strings.HasPrefix(msg, "From: noreply@x.com\r\nTo: a@x.com\r\nSubject: Your code\r\n"))
	assert.Contains(t, msg, "Date: Sun, 01 Feb 2026 10:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline1\r\nline2"))
}

func TestSendEmail(t *testing.T) {
	m := NewMailer(&config.Config{SMTPHost: "smtp.x.com", SMTPPort: "587", SMTPFrom: "noreply@x.com", SMTPUsername: "u", SMTPPassword: "p"}).(*mailer)
	var gotAddr string
	var gotAuth smtp.Auth
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth = addr, a
		assert.Equal(t, []string{"a@x.com"}, to)
		return nil
	}
	require.NoError(t, m.SendEmail("a@x.com", "s", "b"))
	assert.Equal(t, "smtp.x.com:587", gotAddr)
	assert.NotNil(t, gotAuth)

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("535 auth failed") }
	assert.ErrorContains(t, m.SendEmail("a@x.com", "s", "b"), "535")
}
