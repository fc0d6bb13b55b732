package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewProviderFromKeys(key, &key.PublicKey, 10*time.Minute)
}

func TestSignVerification_RoundTrip(t *testing.T) {
	p := newTestProvider(t)
	tok, exp, err := p.SignVerification("a@x.com", "sess-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), exp, 5*time.Second)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestVerify_Expired(t *testing.T) {
	p := newTestProvider(t)
	tok, _, err := p.SignVerification("a@x.com", "sess-1")
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_OtherKey(t *testing.T) {
	tok, _, err := newTestProvider(t).SignVerification("a@x.com", "sess-1")
	require.NoError(t, err)
	_, err = newTestProvider(t).Verify(tok)
	assert.Error(t, err)
}

func TestVerify_Garbage(t *testing.T) {
	_, err := newTestProvider(t).Verify("not-a-token")
	assert.Error(t, err)
}
