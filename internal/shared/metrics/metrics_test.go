package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(jobsEnqueued.WithLabelValues("high"))
	IncJobEnqueued("high")
	if got := testutil.ToFloat64(jobsEnqueued.WithLabelValues("high")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}

	stalledBefore := testutil.ToFloat64(jobsStalled.WithLabelValues("normal"))
	IncJobStalled("normal")
	if got := testutil.ToFloat64(jobsStalled.WithLabelValues("normal")); got != stalledBefore+1 {
		t.Fatalf("expected stalled %v, got %v", stalledBefore+1, got)
	}

	successBefore := testutil.ToFloat64(votes.WithLabelValues("success"))
	failureBefore := testutil.ToFloat64(votes.WithLabelValues("failure"))
	AddVotes(2, 0)
	if got := testutil.ToFloat64(votes.WithLabelValues("success")); got != successBefore+2 {
		t.Fatalf("expected success %v, got %v", successBefore+2, got)
	}
	if got := testutil.ToFloat64(votes.WithLabelValues("failure")); got != failureBefore {
		t.Fatalf("failure counter moved: %v", got)
	}
}

func TestHandlerRendersPrometheusText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncBatchFallback()

	r := gin.New()
	r.GET("/metrics", Handler())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "guarddog_voting_batch_fallbacks_total") {
		t.Fatalf("expected batch fallback metric in output")
	}
}
