package out

import "context"

// AuthContext yields the signed-in identity. ok is false when there is no token.
type AuthContext interface {
	Identity(ctx context.Context) (userID, token string, ok bool)
}
