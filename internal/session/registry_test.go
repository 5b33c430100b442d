package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/moviesaw/auth-service/internal/utils"
)

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRevokeThenIsRevoked(t *testing.T) {
	_, rdb := testRedis(t)
	reg := NewRegistry(rdb, time.Hour)
	ctx := context.Background()

	token := "some.bearer.token"
	if revoked, err := reg.IsRevoked(ctx, token); err != nil || revoked {
		t.Fatalf("fresh token: revoked=%v err=%v", revoked, err)
	}
	if err := reg.Revoke(ctx, token, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, err := reg.IsRevoked(ctx, token); err != nil || !revoked {
		t.Fatalf("after revoke: revoked=%v err=%v", revoked, err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	_, rdb := testRedis(t)
	reg := NewRegistry(rdb, time.Hour)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour)
	if err := reg.Revoke(ctx, "tok", exp); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := reg.Revoke(ctx, "tok", exp); err != nil {
		t.Fatalf("second revoke must be a no-op, got %v", err)
	}
	if revoked, _ := reg.IsRevoked(ctx, "tok"); !revoked {
		t.Fatal("token no longer revoked after duplicate revoke")
	}
}

func TestRevocationOutlivesTokenExpiry(t *testing.T) {
	mr, rdb := testRedis(t)
	retention := 24 * time.Hour
	reg := NewRegistry(rdb, retention)
	ctx := context.Background()

	// Token expires in one hour; the record must stick around for
	// expiry + retention, not just until the token would die anyway.
	exp := time.Now().Add(time.Hour)
	if err := reg.Revoke(ctx, "tok", exp); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ttl := mr.TTL(revokedKeyPrefix + utils.HashToken("tok"))
	if ttl < retention {
		t.Fatalf("record ttl %v shorter than retention %v", ttl, retention)
	}
}

func TestRevokeAlreadyExpiredTokenKeepsRetention(t *testing.T) {
	mr, rdb := testRedis(t)
	retention := time.Hour
	reg := NewRegistry(rdb, retention)
	ctx := context.Background()

	if err := reg.Revoke(ctx, "tok", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ttl := mr.TTL(revokedKeyPrefix + utils.HashToken("tok"))
	if ttl <= 0 || ttl > retention {
		t.Fatalf("ttl %v, want within (0, %v]", ttl, retention)
	}
	if revoked, _ := reg.IsRevoked(ctx, "tok"); !revoked {
		t.Fatal("expired token still needs its revocation record")
	}
}
