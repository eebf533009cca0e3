package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/queue"
)

type fakeCache struct {
	status queue.Status
	result json.RawMessage
}

func (f fakeCache) GetJobStatus(ctx context.Context, proposalID string) (queue.Status, error) {
	if f.status == "" {
		return "", queue.ErrNotFound
	}
	return f.status, nil
}

func (f fakeCache) GetResult(ctx context.Context, proposalID string) (json.RawMessage, error) {
	if f.result == nil {
		return nil, queue.ErrNotFound
	}
	return f.result, nil
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestStatusRoute(t *testing.T) {
	resp := serve(NewHandler(NewMemoryRepo(), fakeCache{}), "/api/v1/proposals/p-1/analysis/status")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without cache entry, got %d", resp.Code)
	}
	resp = serve(NewHandler(NewMemoryRepo(), fakeCache{status: queue.StatusProcessing}), "/api/v1/proposals/p-1/analysis/status")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["status"] != "processing" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestResultRouteFallsBackToDatabase(t *testing.T) {
	repo := NewMemoryRepo()
	path := "/api/v1/proposals/p-1/analysis/result"

	if resp := serve(NewHandler(repo, fakeCache{}), path); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any result, got %d", resp.Code)
	}

	if resp := serve(NewHandler(repo, fakeCache{result: json.RawMessage(`{"compositeScore":7}`)}), path); resp.Code != http.StatusOK || resp.Body.String() != `{"compositeScore":7}` {
		t.Fatalf("expected cached payload, got %d %s", resp.Code, resp.Body.String())
	}

	started := time.Now().UTC().Add(-2 * time.Second)
	if err := repo.Create(testContext(t), Analysis{ID: "a-1", ProposalID: "p-1", JobID: "j-1", Status: StatusProcessing, StartedAt: &started}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateResult(testContext(t), "a-1", Outcome{CompositeScore: 55, RiskLevel: "MEDIUM", Recommendation: "REVIEW"}, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateResult: %v", err)
	}
	resp := serve(NewHandler(repo, fakeCache{}), path)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from database, got %d", resp.Code)
	}
	var res Result
	if err := json.Unmarshal(resp.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.AnalysisID != "a-1" || res.CompositeScore != 55 || res.ProcessingTimeMs < 2000 {
		t.Fatalf("unexpected result %+v", res)
	}
}
