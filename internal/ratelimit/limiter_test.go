package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedisLimiter(rdb, Config{Max: 3, Window: time.Minute, Prefix: "auth"})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "login:10.0.0.1")
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d: expected allowed, got %+v %v", i, d, err)
		}
	}
	d, err := l.Allow(ctx, "login:10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed || d.Count != 4 || d.RetryAt.IsZero() {
		t.Fatalf("expected rejection with retry time, got %+v", d)
	}
	if ttl := mr.TTL("auth:login:10.0.0.1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	other, _ := l.Allow(ctx, "login:10.0.0.2")
	if !other.Allowed {
		t.Fatalf("keys must be independent")
	}

	mr.FastForward(time.Minute + time.Second)
	d, _ = l.Allow(ctx, "login:10.0.0.1")
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", d)
	}
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedisLimiter(rdb, Config{Max: 1})
	mr.Close()
	if _, err := l.Allow(context.Background(), "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(Config{Max: 2, Window: 10 * time.Second}, func() time.Time { return now })
	ctx := context.Background()

	l.Allow(ctx, "a")
	l.Allow(ctx, "a")
	d, _ := l.Allow(ctx, "a")
	if d.Allowed || !d.RetryAt.Equal(now.Add(10*time.Second)) {
		t.Fatalf("expected rejection until window end, got %+v", d)
	}
	now = now.Add(10 * time.Second)
	d, _ = l.Allow(ctx, "a")
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("expected new window, got %+v", d)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, ErrUnavailable
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	l := NewMemoryLimiter(Config{Max: 1, Window: time.Minute}, nil)
	h := Middleware(l, "login", ClientIPs{}, nil)(ok)

	call := func(remote, fwd string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		if fwd != "" {
			req.Header.Set("X-Forwarded-For", fwd)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := call("10.0.0.1:5000", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec := call("10.0.0.1:5001", "")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d %v", rec.Code, rec.Header())
	}
	for _, fwd := range []string{"203.0.113.9", "198.51.100.7, 10.0.0.1", "garbage"} {
		if rec := call("10.0.0.1:5002", fwd); rec.Code != http.StatusTooManyRequests {
			t.Fatalf("spoofed X-Forwarded-For %q must not reset the budget: %d", fwd, rec.Code)
		}
	}

	open := Middleware(failingLimiter{}, "login", ClientIPs{}, nil)(ok)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("backend failure must fail open, got %d", rec.Code)
	}
}

func TestMiddlewareBehindTrustedProxy(t *testing.T) {
	trusted, err := ParsePrefixes("10.0.0.0/8")
	if err != nil {
		t.Fatalf("ParsePrefixes: %v", err)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(NewMemoryLimiter(Config{Max: 1, Window: time.Minute}, nil), "login", ClientIPs{Trusted: trusted}, nil)(ok)

	call := func(fwd string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := call("203.0.113.9"); code != http.StatusNoContent {
		t.Fatalf("first client: %d", code)
	}
	if code := call("198.51.100.7"); code != http.StatusNoContent {
		t.Fatalf("second client behind the proxy must have its own budget: %d", code)
	}
	if code := call("203.0.113.200, 203.0.113.9"); code != http.StatusTooManyRequests {
		t.Fatalf("client-supplied leftmost hop must be ignored: %d", code)
	}
}

func TestClientIPs(t *testing.T) {
	trusted, err := ParsePrefixes(" 10.0.0.0/8, 192.0.2.1 ,")
	if err != nil {
		t.Fatalf("ParsePrefixes: %v", err)
	}
	ips := ClientIPs{Trusted: trusted}
	for _, tc := range []struct {
		name, remote, fwd, want string
		ips                     ClientIPs
	}{
		{"no proxies", "203.0.113.5:1234", "198.51.100.1", "203.0.113.5", ClientIPs{}},
		{"untrusted peer", "203.0.113.5:1234", "198.51.100.1", "203.0.113.5", ips},
		{"trusted peer", "192.0.2.1:80", "198.51.100.1", "198.51.100.1", ips},
		{"proxy chain", "10.1.1.1:80", "198.51.100.9, 198.51.100.1, 10.2.2.2", "198.51.100.1", ips},
		{"all trusted", "10.1.1.1:80", "10.3.3.3", "10.3.3.3", ips},
		{"bad hop", "10.1.1.1:80", "nonsense", "10.1.1.1", ips},
		{"mapped v4", "[::ffff:203.0.113.5]:1234", "", "203.0.113.5", ClientIPs{}},
		{"no port", "203.0.113.5", "", "203.0.113.5", ClientIPs{}},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remote
		if tc.fwd != "" {
			req.Header.Set("X-Forwarded-For", tc.fwd)
		}
		if got := tc.ips.Of(req); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}

	if _, err := ParsePrefixes("10.0.0.0/99"); err == nil {
		t.Fatalf("expected invalid prefix to be rejected")
	}
	if _, err := ParsePrefixes("proxy.local"); err == nil {
		t.Fatalf("expected hostname to be rejected")
	}
}
