package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/queue"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

type fakeQueue struct {
	health queue.Health
	err    error
}

func (f fakeQueue) GetQueueHealth(ctx context.Context) (queue.Health, error) { return f.health, f.err }

type fakeListener bool

func (f fakeListener) IsListening() bool { return bool(f) }

func TestStatusAllHealthy(t *testing.T) {
	svc := NewService(fakePinger{}, fakePinger{}, fakeQueue{health: queue.Health{"high": {Waiting: 2}}}, fakeListener(true))

	rep := svc.Status(context.Background())
	if !rep.OK {
		t.Fatalf("expected ok, got %+v", rep)
	}
	if rep.Queue["high"].Waiting != 2 {
		t.Fatalf("expected queue counts, got %+v", rep.Queue)
	}
	if !rep.Listening {
		t.Fatalf("expected listening")
	}
}

func TestStatusDisabledDependenciesStayHealthy(t *testing.T) {
	rep := NewService(nil, nil, nil, nil).Status(context.Background())
	if !rep.OK {
		t.Fatalf("disabled deps should not fail health: %+v", rep)
	}
	for _, name := range []string{"database", "redis", "queue", "listener"} {
		if rep.Checks[name] != "disabled" {
			t.Fatalf("expected %s disabled, got %q", name, rep.Checks[name])
		}
	}
}

func TestHandlerReturns503OnFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(fakePinger{err: errors.New("down")}, nil, fakeQueue{err: errors.New("redis")}, fakeListener(false))
	r := gin.New()
	r.GET("/health", svc.Handler)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	var rep Report
	if err := json.Unmarshal(resp.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Checks["database"] != "error" || rep.Checks["queue"] != "error" || rep.Checks["listener"] != "stopped" {
		t.Fatalf("unexpected checks %+v", rep.Checks)
	}
}
