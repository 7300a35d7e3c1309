package authctx

import (
	"context"
	"testing"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenContextIdentity(t *testing.T) {
	jwtSvc := auth.NewJWTService(config.JWTConfig{Secret: "test-secret", ExpiryMinutes: 5})
	tok, err := jwtSvc.GenerateToken("driver-1", "d@example.com", auth.RoleDriver)
	require.NoError(t, err)

	c := NewTokenContext(jwtSvc, tok)
	userID, got, ok := c.Identity(context.Background())
	require.True(t, ok)
	assert.Equal(t, "driver-1", userID)
	assert.Equal(t, tok, got)

	c.SetToken("garbage")
	_, _, ok = c.Identity(context.Background())
	assert.False(t, ok)

	c.SetToken("")
	_, _, ok = c.Identity(context.Background())
	assert.False(t, ok)
}
