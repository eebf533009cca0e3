package proposals

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/queue"
	"guarddog-backend/internal/shared/server/respond"
	"guarddog-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the proposals service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches proposal routes. Mutating routes run behind protect.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, protect ...gin.HandlerFunc) {
	rg.GET("/proposals/:id", h.getProposal)
	rg.POST("/proposals", chain(protect, h.createProposal)...)
	rg.POST("/proposals/:id/analyze", chain(protect, h.requestAnalysis)...)
	rg.POST("/simulate", h.simulate)
}

func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	return append(append(out, mw...), h)
}

func (h *Handler) getProposal(c *gin.Context) {
	p, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "proposal not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch proposal", nil)
		return
	}
	respond.OK(c, p)
}

func (h *Handler) createProposal(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	p, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", "daoGovernor, chainId and title or description are required", nil)
		case errors.Is(err, ErrAlreadyExists):
			respond.Error(c, http.StatusConflict, "conflict", "proposal already exists", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create proposal", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, p)
}

func (h *Handler) requestAnalysis(c *gin.Context) {
	proposalID := c.Param("id")
	c.Set("proposalId", proposalID)

	job, err := h.Svc.RequestAnalysis(c.Request.Context(), proposalID, queue.PriorityHigh, "manual")
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "proposal not found", nil)
		case errors.Is(err, queue.ErrQueueNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "analysis queue not configured", nil)
		default:
			telemetry.Error("proposals.analyze.enqueue_failed", map[string]any{
				"proposal_id": proposalID,
				"error":       err,
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"proposalId": proposalID,
		"jobId":      job.ID,
		"lane":       job.Lane,
		"state":      job.StateName,
	})
}

type simulateRequest struct {
	DraftText string `json:"draftText"`
}

func (h *Handler) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	resp, err := h.Svc.Simulate(c.Request.Context(), req.DraftText)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "draftText is required", nil)
			return
		}
		respond.Error(c, http.StatusBadGateway, "intelligence_unavailable", "simulation failed", nil)
		return
	}
	respond.OK(c, resp)
}
