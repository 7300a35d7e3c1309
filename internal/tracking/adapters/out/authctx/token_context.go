// Package authctx supplies the tracker with the signed-in identity.
package authctx

import (
	"context"
	"sync"

	"brillprime/internal/shared/auth"
)

type Validator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// TokenContext holds the tracker's bearer token. The identity is re-derived on
// every call, so an expired or cleared token immediately reads as signed out.
type TokenContext struct {
	validator Validator

	mu    sync.RWMutex
	token string
}

func NewTokenContext(v Validator, token string) *TokenContext {
	return &TokenContext{validator: v, token: token}
}

// SetToken swaps the token; "" signs out.
func (c *TokenContext) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *TokenContext) Identity(context.Context) (userID, token string, ok bool) {
	c.mu.RLock()
	token = c.token
	c.mu.RUnlock()
	if token == "" {
		return "", "", false
	}

	claims, err := c.validator.ValidateToken(token)
	if err != nil {
		return "", "", false
	}
	return claims.UserID, token, true
}
