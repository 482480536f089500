package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(TokenConfig{Secret: "k", Detector: "garage"})

	token, expiresAt, err := m.GenerateToken()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "garage", claims.Detector)
	assert.Equal(t, "doorwatch", claims.Issuer)
	assert.Equal(t, "garage", claims.Subject)
}

func TestTokenManager_RejectsForeignAndExpired(t *testing.T) {
	m := NewTokenManager(TokenConfig{Secret: "k", Expiry: time.Minute})
	other := NewTokenManager(TokenConfig{Secret: "other"})

	token, _, err := other.GenerateToken()
	require.NoError(t, err)
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err = m.GenerateToken()
	require.NoError(t, err)
	m.now = time.Now
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_CachesUntilNearExpiry(t *testing.T) {
	m := NewTokenManager(TokenConfig{Secret: "k", Expiry: time.Hour})
	t0 := time.Now()
	m.now = func() time.Time { return t0 }

	first, err := m.Token()
	require.NoError(t, err)
	again, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	m.now = func() time.Time { return t0.Add(59*time.Minute + 30*time.Second) }
	renewed, err := m.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, renewed)
}

func TestTokenManager_Credentials(t *testing.T) {
	m := NewTokenManager(TokenConfig{Secret: "k"})

	md, err := m.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	token, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"authorization": "Bearer " + token}, md)
	assert.False(t, m.RequireTransportSecurity())

	h, err := m.Header()
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+token, h.Get("Authorization"))
}

func TestTokenManager_SecretFromEnvironment(t *testing.T) {
	t.Setenv("DOORWATCH_JWT_SECRET", "from-env")
	m := NewTokenManager(TokenConfig{})
	explicit := NewTokenManager(TokenConfig{Secret: "from-env"})

	token, _, err := m.GenerateToken()
	require.NoError(t, err)
	claims, err := explicit.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "doorwatch", claims.Detector)
}

func TestTokenManager_RandomSecret(t *testing.T) {
	t.Setenv("DOORWATCH_JWT_SECRET", "")
	a := NewTokenManager(TokenConfig{})
	b := NewTokenManager(TokenConfig{})

	token, _, err := a.GenerateToken()
	require.NoError(t, err)
	_, err = b.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
