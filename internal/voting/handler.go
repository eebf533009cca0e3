package voting

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/shared/server/respond"
)

// Handler exposes the vote audit trail.
type Handler struct {
	Audit AuditRepo
}

// NewHandler constructs a Handler.
func NewHandler(audit AuditRepo) *Handler {
	return &Handler{Audit: audit}
}

// RegisterRoutes attaches read-only vote routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/proposals/:id/votes/stats", h.stats)
	rg.GET("/proposals/:id/votes/:address", h.hasVoted)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Audit.StatsForProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load vote stats", nil)
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) hasVoted(c *gin.Context) {
	address := strings.TrimSpace(c.Param("address"))
	if address == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "address is required", nil)
		return
	}
	proposalID := c.Param("id")
	voted, err := h.Audit.HasVoted(c.Request.Context(), address, proposalID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to check vote", nil)
		return
	}
	respond.OK(c, gin.H{
		"proposalId": proposalID,
		"address":    address,
		"hasVoted":   voted,
	})
}
