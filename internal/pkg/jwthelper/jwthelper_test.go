package jwthelper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = []byte("test-signing-key")

func TestRoundTrip(t *testing.T) {
	raw, err := GenerateToken(key, "jane.doe", "steward", time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := ParseToken(key, raw)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", claims.Subject)
	assert.Equal(t, "steward", claims.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := GenerateToken(key, "jane.doe", "steward", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(key, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := GenerateToken([]byte("other"), "jane.doe", "steward", time.Hour, time.Now())
	require.NoError(t, err)
	_, err = ParseToken(key, other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := GenerateToken(key, "", "steward", time.Hour, time.Now())
	require.NoError(t, err)
	_, err = ParseToken(key, anonymous)
	assert.ErrorIs(t, err, ErrMissingSubject)
}
