package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/shared/auth"
	"guarddog-backend/internal/shared/server/middleware"
	"guarddog-backend/internal/shared/server/respond"
)

const devTokenTTL = 12 * time.Hour

// registerMeRoutes attaches the /me endpoint behind auth.
func registerMeRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/me", authMW, meHandler)
}

func meHandler(c *gin.Context) {
	address := middleware.AddressFromContext(c)
	if address == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	respond.OK(c, gin.H{"address": address})
}

type devTokenRequest struct {
	Address string `json:"address"`
}

// registerDevRoutes issues session tokens without a wallet signature. Dev-like environments only.
func registerDevRoutes(rg *gin.RouterGroup, verifier *auth.Verifier) {
	rg.POST("/token", func(c *gin.Context) {
		var req devTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil || !common.IsHexAddress(strings.TrimSpace(req.Address)) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "address must be a hex wallet address", nil)
			return
		}
		token, err := verifier.Sign(req.Address, devTokenTTL)
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to sign token", nil)
			return
		}
		respond.OK(c, gin.H{"token": token, "expiresIn": int(devTokenTTL.Seconds())})
	})
}
