package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFromContext(c)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-7")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Body.String() != "req-7" || resp.Header().Get("X-Request-Id") != "req-7" {
		t.Fatalf("expected propagated id, got body=%q header=%q", resp.Body.String(), resp.Header().Get("X-Request-Id"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("a", 500))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if _, err := uuid.Parse(resp.Body.String()); err != nil {
		t.Fatalf("expected minted uuid for oversized id, got %q", resp.Body.String())
	}
}
