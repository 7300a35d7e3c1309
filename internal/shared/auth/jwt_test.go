package auth

import (
	"testing"

	"brillprime/internal/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "s3cret", ExpiryMinutes: 5})

	tok, err := svc.GenerateToken("driver-1", "d@example.com", "driver")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", claims.UserID)
	assert.Equal(t, RoleDriver, claims.Role)

	id, role, err := svc.ExtractUserID(tok)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", id)
	assert.Equal(t, RoleDriver, role)
}

func TestValidateRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "a", ExpiryMinutes: 5})
	other := NewJWTService(config.JWTConfig{Secret: "b", ExpiryMinutes: 5})
	expired := NewJWTService(config.JWTConfig{Secret: "a", ExpiryMinutes: -1})

	tok, err := other.GenerateToken("u", "", RoleConsumer)
	require.NoError(t, err)
	_, err = svc.ValidateToken(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	tok, err = expired.GenerateToken("u", "", RoleConsumer)
	require.NoError(t, err)
	_, err = svc.ValidateToken(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("merchant"))
	assert.False(t, ValidRole("PASSENGER"))
}
