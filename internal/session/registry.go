// Package session holds the shared per-token state that signature checks
// alone cannot express: the revocation registry (explicitly logged-out
// tokens) and the membership tracker (the bounded set of tokens currently
// recognized for an account). Both live in Redis keyed by token digest.
package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moviesaw/auth-service/internal/utils"
)

// DefaultRetention keeps a revocation record for a week past the token's own
// expiry. The record and the expiry are independent checks, so the entry must
// outlive the token rather than be dropped the moment the token would expire
// anyway.
const DefaultRetention = 7 * 24 * time.Hour

const revokedKeyPrefix = "revoked:"

// Registry records explicitly invalidated tokens until well past their
// natural expiry. Lookups are O(1); garbage collection is Redis key expiry,
// never required for correctness.
type Registry struct {
	rdb       *redis.Client
	retention time.Duration
}

// NewRegistry builds a Registry. A non-positive retention falls back to
// DefaultRetention.
func NewRegistry(rdb *redis.Client, retention time.Duration) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Registry{rdb: rdb, retention: retention}
}

// Revoke records a token as invalidated, keeping the entry until the token's
// expiry plus the retention window. A second revocation of the same token
// overwrites an identical record and is therefore a no-op, not an error.
func (r *Registry) Revoke(ctx context.Context, token string, exp time.Time) error {
	ttl := time.Until(exp) + r.retention
	if ttl < r.retention {
		// Token already past expiry; keep the record for the retention
		// window regardless.
		ttl = r.retention
	}
	return r.rdb.Set(ctx, revokedKeyPrefix+utils.HashToken(token), 1, ttl).Err()
}

// IsRevoked reports whether the exact token string has been revoked.
func (r *Registry) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+utils.HashToken(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
