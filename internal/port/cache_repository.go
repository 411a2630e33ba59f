package port

import "context"

type IdempotencyRepository interface {
	// Claim sets key if absent, returns false if it already exists
	Claim(ctx context.Context, key string) (bool, error)

	// Release deletes key so the request can be retried
	Release(ctx context.Context, key string) error
}
