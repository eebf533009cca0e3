package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/queue"
	"guarddog-backend/internal/shared/server/respond"
)

const defaultCheckTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB and by the redis ping adapter.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueReporter exposes per-lane job counts.
type QueueReporter interface {
	GetQueueHealth(ctx context.Context) (queue.Health, error)
}

// ListenerState reports whether the result listener is subscribed.
type ListenerState interface {
	IsListening() bool
}

// Service aggregates dependency checks. Nil dependencies are reported as disabled.
type Service struct {
	DB       Pinger
	Redis    Pinger
	Queue    QueueReporter
	Listener ListenerState
	Timeout  time.Duration
}

// Report is the health payload.
type Report struct {
	OK        bool              `json:"ok"`
	Checks    map[string]string `json:"checks"`
	Queue     queue.Health      `json:"queue,omitempty"`
	Listening bool              `json:"listening"`
}

// NewService constructs a health service.
func NewService(db, redis Pinger, q QueueReporter, l ListenerState) *Service {
	return &Service{DB: db, Redis: redis, Queue: q, Listener: l}
}

// Status runs every check. OK is false when any configured dependency fails.
func (s *Service) Status(ctx context.Context) Report {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rep := Report{OK: true, Checks: map[string]string{}}
	rep.Checks["database"] = ping(ctx, s.DB, &rep)
	rep.Checks["redis"] = ping(ctx, s.Redis, &rep)

	switch {
	case s.Queue == nil:
		rep.Checks["queue"] = "disabled"
	default:
		h, err := s.Queue.GetQueueHealth(ctx)
		if err != nil {
			rep.Checks["queue"] = "error"
			rep.OK = false
		} else {
			rep.Checks["queue"] = "ok"
			rep.Queue = h
		}
	}

	if s.Listener != nil {
		rep.Listening = s.Listener.IsListening()
		if rep.Listening {
			rep.Checks["listener"] = "ok"
		} else {
			rep.Checks["listener"] = "stopped"
			rep.OK = false
		}
	} else {
		rep.Checks["listener"] = "disabled"
	}
	return rep
}

func ping(ctx context.Context, p Pinger, rep *Report) string {
	if p == nil {
		return "disabled"
	}
	if err := p.PingContext(ctx); err != nil {
		rep.OK = false
		return "error"
	}
	return "ok"
}

// Handler serves GET /health; 503 when a check fails.
func (s *Service) Handler(c *gin.Context) {
	rep := s.Status(c.Request.Context())
	status := http.StatusOK
	if !rep.OK {
		status = http.StatusServiceUnavailable
	}
	respond.JSON(c, status, rep)
}
