package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		path  string
		cache string
	}{
		{"/api/v1/board", "no-store"},
		{"/files/p1/xray.png", "private, max-age=300"},
	}
	for _, tt := range tests {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), rec)

		if err := SecurityHeaders()(okHandler)(c); err != nil {
			t.Fatalf("%s: unexpected error %v", tt.path, err)
		}
		h := rec.Header()
		if h.Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing nosniff", tt.path)
		}
		if h.Get("X-Frame-Options") != "DENY" {
			t.Errorf("%s: missing frame deny", tt.path)
		}
		if h.Get("Cache-Control") != tt.cache {
			t.Errorf("%s: Cache-Control = %q, want %q", tt.path, h.Get("Cache-Control"), tt.cache)
		}
	}
}

func TestSecurityHeaders_PropagatesHandlerError(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	want := errors.New("boom")

	err := SecurityHeaders()(func(echo.Context) error { return want })(c)
	if !errors.Is(err, want) {
		t.Errorf("expected handler error, got %v", err)
	}
}
