package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUtil() *JWTUtil {
	return NewJWTUtil(&JWTConfig{
		AccessSecret:     "access",
		AccessExpiresIn:  time.Minute,
		RefreshSecret:    "refresh",
		RefreshExpiresIn: time.Hour,
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	j := newUtil()
	token, err := j.GenerateAccessToken(42, "a@b.com", "CUSTOMER")
	require.NoError(t, err)

	claims, err := j.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, "CUSTOMER", claims.Role)
}

func TestRefreshTokenNotAcceptedAsAccess(t *testing.T) {
	j := newUtil()
	refresh, err := j.GenerateRefreshToken(1, "a@b.com", "ADMIN")
	require.NoError(t, err)

	_, err = j.ValidateAccessToken(refresh)
	assert.Error(t, err)

	claims, err := j.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestExpiredToken(t *testing.T) {
	j := NewJWTUtil(&JWTConfig{AccessSecret: "s", AccessExpiresIn: -time.Minute})
	token, err := j.GenerateAccessToken(1, "a@b.com", "ADMIN")
	require.NoError(t, err)

	_, err = j.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestNilConfig(t *testing.T) {
	j := NewJWTUtil(nil)
	_, err := j.GenerateAccessToken(1, "a", "b")
	assert.Error(t, err)
}
