package auth

import "context"

var _ Checker = (*LoginChecker)(nil)

type Checker interface {
	// UserForToken resolves a session token to the owning user id.
	// ok is false for unknown or expired tokens.
	UserForToken(ctx context.Context, token string) (userID int, ok bool, err error)
}
