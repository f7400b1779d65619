package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func loginAttempt(h echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/session", nil)
	req.RemoteAddr = ip + ":4000"
	rec := httptest.NewRecorder()
	err := h(e.NewContext(req, rec))
	return rec, err
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestRateLimit_BurstThenReject(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	h := rateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3}, clock.now)(okHandler)

	for i := 0; i < 3; i++ {
		if _, err := loginAttempt(h, "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}
	rec, err := loginAttempt(h, "10.0.0.1")
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_Refills(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	h := rateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, clock.now)(okHandler)

	loginAttempt(h, "10.0.0.1")
	if _, err := loginAttempt(h, "10.0.0.1"); err == nil {
		t.Fatal("expected second attempt to be limited")
	}
	clock.t = clock.t.Add(time.Second)
	if _, err := loginAttempt(h, "10.0.0.1"); err != nil {
		t.Fatalf("expected refill after one second, got %v", err)
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	h := rateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, clock.now)(okHandler)

	loginAttempt(h, "10.0.0.1")
	if _, err := loginAttempt(h, "10.0.0.2"); err != nil {
		t.Fatalf("other IP should not be limited: %v", err)
	}
}

func TestLoginRateLimit_RetryAfter(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	h := rateLimit(LoginRateLimit, clock.now)(okHandler)

	for i := 0; i < LoginRateLimit.BurstSize; i++ {
		loginAttempt(h, "10.0.0.9")
	}
	rec, _ := loginAttempt(h, "10.0.0.9")
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retry < 12 || retry > 13 {
		t.Errorf("expected Retry-After of about 12s, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestTokenBucket_ZeroRate(t *testing.T) {
	now := time.Now()
	b := newTokenBucket(0, 1, now)
	if ok, _ := b.take(now); !ok {
		t.Fatal("expected first token")
	}
	ok, retry := b.take(now)
	if ok || retry != 1 {
		t.Errorf("expected rejection with retry 1, got ok=%v retry=%d", ok, retry)
	}
}
