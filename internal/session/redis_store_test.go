package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"audiobookd/pkg/domain"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStoreCreateGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := Identity{UserID: 7, Role: domain.RoleUser, Username: "dana"}
	token, err := s.Create(ctx, id)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	got, ok, err := s.Get(ctx, token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !ok {
		t.Fatalf("expected session to resolve")
	}
	if got != id {
		t.Fatalf("identity = %+v, want %+v", got, id)
	}

	if err := s.Delete(ctx, token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.Get(ctx, token); err != nil || ok {
		t.Fatalf("expected miss after delete, ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreGetMissingToken(t *testing.T) {
	s, _ := newTestStore(t)
	if _, ok, err := s.Get(context.Background(), "never-issued"); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreCorruptEntryIsAMiss(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Set("bad-token", "not json at all")
	if _, ok, err := s.Get(context.Background(), "bad-token"); err != nil || ok {
		t.Fatalf("corrupt entry should be a miss, ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreRejectsUnknownRole(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Set("odd-role", `{"user_id":1,"role_level":5,"username":"x"}`)
	if _, ok, err := s.Get(context.Background(), "odd-role"); err != nil || ok {
		t.Fatalf("out-of-range role should be a miss, ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreRefreshExtendsTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	token, err := s.Create(ctx, Identity{UserID: 1, Role: domain.RoleAdmin, Username: "root"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	mr.FastForward(50 * time.Minute)
	if err := s.Refresh(ctx, token); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	mr.FastForward(50 * time.Minute)

	// 100 minutes after creation the session would have expired without
	// the refresh.
	if _, ok, err := s.Get(ctx, token); err != nil || !ok {
		t.Fatalf("expected refreshed session to survive, ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreSessionExpiresWithoutRefresh(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	token, err := s.Create(ctx, Identity{UserID: 2, Role: domain.RoleUser, Username: "idle"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if _, ok, err := s.Get(ctx, token); err != nil || ok {
		t.Fatalf("expected expired session to miss, ok=%v err=%v", ok, err)
	}
}

func TestResolveOutcomes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if out := Resolve(ctx, s, "", false); out.State != StateNoToken {
		t.Fatalf("absent token: state = %v, want no_token", out.State)
	}
	if out := Resolve(ctx, s, "unknown", true); out.State != StateCacheMiss {
		t.Fatalf("unknown token: state = %v, want cache_miss", out.State)
	}

	id := Identity{UserID: 9, Role: domain.RoleUser, Username: "reader"}
	token, err := s.Create(ctx, id)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	out := Resolve(ctx, s, token, true)
	if out.State != StateResolved {
		t.Fatalf("stored token: state = %v, want resolved", out.State)
	}
	if out.Identity != id {
		t.Fatalf("identity = %+v, want %+v", out.Identity, id)
	}
}

func TestResolveCollapsesCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, time.Hour)
	mr.Close()

	if out := Resolve(context.Background(), s, "any", true); out.State != StateCacheMiss {
		t.Fatalf("unreachable cache: state = %v, want cache_miss", out.State)
	}
}
