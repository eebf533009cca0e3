package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"guarddog-backend/internal/shared/config"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                 "dev",
		LocalStoreDir:       t.TempDir(),
		ObjectStoreType:     "local",
		QueueTransport:      "redis",
		IntelligenceURL:     "http://localhost:8000",
		IntelligenceTimeout: time.Second,
		AutoApproveBelow:    20,
		AutoRejectFrom:      80,
		ReviewSafeScore:     50,
		CompletionDedupTTL:  time.Hour,
	}
}

func TestBuildDevFallsBackToInMemory(t *testing.T) {
	app, err := Build(context.Background(), devConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(app.Close)

	if app.DB != nil {
		t.Fatalf("expected no database in dev without DATABASE_URL")
	}
	if app.Redis == nil || app.Producer == nil || app.Consumer == nil {
		t.Fatalf("expected queue wiring over embedded redis")
	}
	if app.Orchestrator.Contract != nil {
		t.Fatalf("expected voting disabled without rpc config")
	}
	if !app.EmbeddedRedis {
		t.Fatalf("expected embedded redis to be flagged")
	}
	if app.Scanner.Jobs == nil || app.Scanner.Completions == nil {
		t.Fatalf("expected scanner to reconcile against the queue and listener")
	}
	if pool := app.NewWorkerPool(); pool.Source == nil || pool.Processor == nil || pool.Concurrency != 1 {
		t.Fatalf("unexpected worker pool %+v", pool)
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	// Listener is not started by Build, so health reports it stopped.
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before listener start, got %d", resp.Code)
	}

	if err := app.Listener.Start(context.Background()); err != nil {
		t.Fatalf("listener start: %v", err)
	}
	t.Cleanup(func() { _ = app.Listener.Stop() })
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 once listening, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildRejectsIncompleteSQSConfig(t *testing.T) {
	cfg := devConfig(t)
	cfg.QueueTransport = "sqs"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for sqs without queue urls")
	}
}

func TestBuildWithRedisURLSharesQueue(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := devConfig(t)
	cfg.RedisURL = "redis://" + srv.Addr()

	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(app.Close)
	if app.EmbeddedRedis {
		t.Fatalf("external redis must not be flagged as embedded")
	}
}
