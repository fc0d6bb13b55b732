package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OTP_TTL", "")
	t.Setenv("STORE_BACKEND", "")
	cfg := Load()
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SMS_ENABLED", "true")
	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.SMSEnabled)
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("SHEETS_TIMEOUT", "soon")
	assert.Equal(t, 10*time.Second, Load().SheetsTimeout)
}

func TestSwitches(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.MailConfigured())
	assert.False(t, cfg.SheetsConfigured())

	cfg.SMTPUsername, cfg.SMTPPassword = "u", "p"
	cfg.GoogleSheetID, cfg.GoogleServiceAccountJSON = "sheet", "{}"
	assert.True(t, cfg.MailConfigured())
	assert.True(t, cfg.SheetsConfigured())
}
