package id

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTeamID_Format(t *testing.T) {
	got, err := NewTeamID(time.UnixMilli(1700000000000))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^TEAM-LOYW3V28-[0-9A-Z]{5}$`), got)
}

func TestNewTeamID_Distinct(t *testing.T) {
	now := time.Now()
	a, err := NewTeamID(now)
	require.NoError(t, err)
	b, err := NewTeamID(now)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNew_IsULID(t *testing.T) {
	assert.Len(t, New(), 26)
}
