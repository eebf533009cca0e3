package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/queue"
	"guarddog-backend/internal/shared/server/respond"
)

// StatusReader reads the ephemeral job projections.
type StatusReader interface {
	GetJobStatus(ctx context.Context, proposalID string) (queue.Status, error)
	GetResult(ctx context.Context, proposalID string) (json.RawMessage, error)
}

// Handler exposes analysis progress and results.
type Handler struct {
	Repo  Repo
	Cache StatusReader
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo, cache StatusReader) *Handler {
	return &Handler{Repo: repo, Cache: cache}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/proposals/:id/analysis/status", h.status)
	rg.GET("/proposals/:id/analysis/result", h.result)
}

func (h *Handler) status(c *gin.Context) {
	proposalID := c.Param("id")
	if h.Cache == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "no analysis status for proposal", nil)
		return
	}
	status, err := h.Cache.GetJobStatus(c.Request.Context(), proposalID)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound), errors.Is(err, queue.ErrQueueNotConfigured):
			respond.Error(c, http.StatusNotFound, "not_found", "no analysis status for proposal", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read analysis status", nil)
		}
		return
	}
	respond.OK(c, gin.H{
		"proposalId": proposalID,
		"status":     status,
	})
}

func (h *Handler) result(c *gin.Context) {
	proposalID := c.Param("id")
	ctx := c.Request.Context()

	if h.Cache != nil {
		raw, err := h.Cache.GetResult(ctx, proposalID)
		if err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
			return
		}
		if !errors.Is(err, queue.ErrNotFound) && !errors.Is(err, queue.ErrQueueNotConfigured) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read analysis result", nil)
			return
		}
	}

	a, err := h.Repo.GetLatestCompleted(ctx, proposalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis result not ready", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		return
	}
	respond.OK(c, resultFromAnalysis(a))
}

func resultFromAnalysis(a Analysis) Result {
	r := Result{
		AnalysisID:     a.ID,
		ProposalID:     a.ProposalID,
		JobID:          a.JobID,
		AgentBreakdown: a.AgentBreakdown,
	}
	if a.CompositeScore != nil {
		r.CompositeScore = *a.CompositeScore
	}
	if a.RiskLevel != nil {
		r.RiskLevel = *a.RiskLevel
	}
	if a.Recommendation != nil {
		r.Recommendation = *a.Recommendation
	}
	if a.CompletedAt != nil {
		r.CompletedAt = *a.CompletedAt
		if a.StartedAt != nil {
			r.ProcessingTimeMs = a.CompletedAt.Sub(*a.StartedAt).Milliseconds()
		}
	}
	return r
}
