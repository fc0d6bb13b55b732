package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericCode_Format(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := NumericCode(6)
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestBase36(t *testing.T) {
	s, err := Base36(5)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-Z]{5}$`), s)
}
