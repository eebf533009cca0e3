package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimitReturnsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(walletAddressKey, "0xabc")
		c.Next()
	})
	r.POST("/api/v1/proposals/:id/analyze",
		RateLimit("MANUAL_ANALYZE", RateLimitRule{RequestsPerMinute: 60, Burst: 1}, limiter),
		func(c *gin.Context) { c.JSON(http.StatusAccepted, gin.H{"ok": true}) },
	)

	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, httptest.NewRequest(http.MethodPost, "/api/v1/proposals/p-1/analyze", nil))
	if resp1.Code != http.StatusAccepted {
		t.Fatalf("expected first request 202, got %d", resp1.Code)
	}

	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, httptest.NewRequest(http.MethodPost, "/api/v1/proposals/p-1/analyze", nil))
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if got := resp2.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After 1, got %q", got)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "rate_limited" {
		t.Fatalf("expected error=rate_limited")
	}
	if _, ok := payload["retryAfterMs"]; !ok {
		t.Fatalf("expected retryAfterMs in response")
	}

	now = now.Add(2 * time.Second)
	resp3 := httptest.NewRecorder()
	r.ServeHTTP(resp3, httptest.NewRequest(http.MethodPost, "/api/v1/proposals/p-1/analyze", nil))
	if resp3.Code != http.StatusAccepted {
		t.Fatalf("expected refill after 2s, got %d", resp3.Code)
	}
}

func TestRateLimitKeysByPrincipal(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{RequestsPerMinute: 1, Burst: 1}

	if ok, _ := limiter.Allow("0xa|G", rule); !ok {
		t.Fatalf("first call for a should pass")
	}
	if ok, _ := limiter.Allow("0xb|G", rule); !ok {
		t.Fatalf("b has its own bucket")
	}
	if ok, wait := limiter.Allow("0xa|G", rule); ok || wait <= 0 {
		t.Fatalf("second call for a should be limited, got ok=%v wait=%s", ok, wait)
	}
	if ok, _ := limiter.Allow("0xa|G", RateLimitRule{}); !ok {
		t.Fatalf("zero rule disables limiting")
	}
}
