package delegations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/shared/server/middleware"
	"guarddog-backend/internal/shared/server/respond"
)

// Handler exposes the caller's own delegation settings.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches delegation routes. Every route runs behind protect.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, protect ...gin.HandlerFunc) {
	g := rg.Group("/delegations", protect...)
	g.GET("/:governor/:chainId", h.get)
	g.PUT("/:governor/:chainId", h.upsert)
	g.DELETE("/:governor/:chainId", h.revoke)
}

func (h *Handler) key(c *gin.Context) (Key, bool) {
	address := middleware.AddressFromContext(c)
	if address == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return Key{}, false
	}
	chainID, err := strconv.ParseInt(c.Param("chainId"), 10, 64)
	if err != nil || chainID <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "chainId must be a positive integer", nil)
		return Key{}, false
	}
	return Key{DelegatorAddress: address, DAOGovernor: c.Param("governor"), ChainID: chainID}, true
}

func (h *Handler) get(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	d, err := h.Repo.GetByKey(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "delegation not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch delegation", nil)
		return
	}
	respond.OK(c, d)
}

type upsertRequest struct {
	RiskThreshold    *float64 `json:"riskThreshold"`
	RequiresApproval bool     `json:"requiresApproval"`
}

func (h *Handler) upsert(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RiskThreshold == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "riskThreshold is required", nil)
		return
	}
	d, err := h.Repo.Upsert(c.Request.Context(), Delegation{
		DelegatorAddress: key.DelegatorAddress,
		DAOGovernor:      key.DAOGovernor,
		ChainID:          key.ChainID,
		RiskThreshold:    *req.RiskThreshold,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidThreshold) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save delegation", nil)
		return
	}
	respond.OK(c, d)
}

func (h *Handler) revoke(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	if err := h.Repo.Revoke(c.Request.Context(), key); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "delegation not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to revoke delegation", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
