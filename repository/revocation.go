package repository

import (
	"context"
	"time"
)

// RevocationRepository remembers revoked token IDs until the tokens would have expired anyway.
type RevocationRepository interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
