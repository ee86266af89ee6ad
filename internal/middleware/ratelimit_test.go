package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"hls-stream-proxy/internal/config"
)

func newRateLimitedEcho(rps float64) *echo.Echo {
	e := echo.New()
	e.Use(RateLimit(config.RateLimitConfig{Enabled: true, RequestsPerSecond: rps}))
	e.GET("/proxy", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestRateLimit_Enabled(t *testing.T) {
	// 1 request per second, burst of 1: the second request should be rejected.
	e := newRateLimitedEcho(1)

	req := httptest.NewRequest(http.MethodGet, "/proxy", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	got429 := false
	for i := 0; i < 10; i++ {
		req = httptest.NewRequest(http.MethodGet, "/proxy", http.NoBody)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			if rec.Body.String() != "Too many requests" {
				t.Errorf("body = %q, want %q", rec.Body.String(), "Too many requests")
			}
			break
		}
	}
	if !got429 {
		t.Error("expected at least one 429 response after burst, got none")
	}
}

func TestRateLimit_FractionalRate(t *testing.T) {
	// Below one request per second the bucket still admits the first request.
	e := newRateLimitedEcho(0.5)

	req := httptest.NewRequest(http.MethodGet, "/proxy", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimit_SkipsProbesAndPreflight(t *testing.T) {
	e := newRateLimitedEcho(1)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("/healthz: status = %d, want %d", rec.Code, http.StatusOK)
		}
	}

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodOptions, "/proxy", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatal("OPTIONS request was rate limited")
		}
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	e := newRateLimitedEcho(1)

	for _, ip := range []string{"10.0.0.1:1234", "10.0.0.2:1234"} {
		req := httptest.NewRequest(http.MethodGet, "/proxy", http.NoBody)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("client %s: status = %d, want %d", ip, rec.Code, http.StatusOK)
		}
	}
}
