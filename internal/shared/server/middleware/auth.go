package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/shared/auth"
	"guarddog-backend/internal/shared/server/respond"
)

const walletAddressKey = "walletAddress"

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth requires a valid bearer token and stores the wallet address in context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" || verifier == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(walletAddressKey, claims.Address())
		c.Next()
	}
}

// AddressFromContext fetches the wallet address set by the auth middleware.
func AddressFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(walletAddressKey)
	if addr, ok := val.(string); ok {
		return addr
	}
	return ""
}
