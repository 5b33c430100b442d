package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moviesaw/auth-service/internal/utils"
)

// DefaultSessionCap bounds how many tokens are simultaneously recognized per
// account when no cap is configured.
const DefaultSessionCap = 2

// DefaultSessionTTL matches the default token lifetime. A non-positive ttl
// would make the PEXPIRE in the admit script drop the list immediately.
const DefaultSessionTTL = 7 * 24 * time.Hour

// admitScript appends the new token digest and trims the oldest entries
// beyond the cap in one atomic step, so two logins racing on the same
// account can never leave more than cap members behind. Trimmed tokens are
// simply forgotten here; they are not written to the revocation registry.
var admitScript = redis.NewScript(`
	redis.call('RPUSH', KEYS[1], ARGV[1])
	local cap = tonumber(ARGV[2])
	local n = redis.call('LLEN', KEYS[1])
	while n > cap do
		redis.call('LPOP', KEYS[1])
		n = n - 1
	end
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
	return n
`)

// Tracker maintains the ordered, oldest-first list of valid session tokens
// per account, enforcing the device cap with FIFO eviction.
type Tracker struct {
	rdb *redis.Client
	cap int
	ttl time.Duration
}

// NewTracker builds a Tracker. The ttl should match the token lifetime; the
// membership list refreshes its expiry on every admit and is only an
// additional check on top of token expiry, so a slightly stale list is
// harmless.
func NewTracker(rdb *redis.Client, cap int, ttl time.Duration) *Tracker {
	if cap < 1 {
		cap = DefaultSessionCap
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Tracker{rdb: rdb, cap: cap, ttl: ttl}
}

// Cap returns the configured membership cap.
func (t *Tracker) Cap() int { return t.cap }

func sessionKey(accountID uint64) string {
	return fmt.Sprintf("sessions:%d", accountID)
}

// Admit registers a freshly issued token as one of the account's current
// sessions, evicting the oldest member when the cap is exceeded.
func (t *Tracker) Admit(ctx context.Context, accountID uint64, token string) error {
	return admitScript.Run(ctx, t.rdb,
		[]string{sessionKey(accountID)},
		utils.HashToken(token), t.cap, t.ttl.Milliseconds(),
	).Err()
}

// IsMember reports whether the token is currently one of the account's
// recognized sessions. A token evicted by a newer login fails here even
// though its signature and expiry still check out.
func (t *Tracker) IsMember(ctx context.Context, accountID uint64, token string) (bool, error) {
	members, err := t.rdb.LRange(ctx, sessionKey(accountID), 0, -1).Result()
	if err != nil {
		return false, err
	}
	digest := utils.HashToken(token)
	for _, m := range members {
		if m == digest {
			return true, nil
		}
	}
	return false, nil
}

// Remove drops a token from the membership list on explicit logout. Removing
// a token that is not present is a no-op.
func (t *Tracker) Remove(ctx context.Context, accountID uint64, token string) error {
	return t.rdb.LRem(ctx, sessionKey(accountID), 0, utils.HashToken(token)).Err()
}

// Clear forgets every session of an account, used when the account itself is
// deleted.
func (t *Tracker) Clear(ctx context.Context, accountID uint64) error {
	return t.rdb.Del(ctx, sessionKey(accountID)).Err()
}
