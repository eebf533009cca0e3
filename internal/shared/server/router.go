package server

import (
	"github.com/gin-gonic/gin"

	"guarddog-backend/internal/analyses"
	"guarddog-backend/internal/delegations"
	"guarddog-backend/internal/proposals"
	"guarddog-backend/internal/services/health"
	"guarddog-backend/internal/shared/auth"
	"guarddog-backend/internal/shared/config"
	"guarddog-backend/internal/shared/metrics"
	"guarddog-backend/internal/shared/server/middleware"
	"guarddog-backend/internal/voting"
)

const manualAnalyzeGroup = "MANUAL_ANALYZE"

// RouterDeps carries the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config            config.Config
	Verifier          *auth.Verifier
	Limiter           *middleware.RateLimiter
	Health            *health.Service
	ProposalHandler   *proposals.Handler
	DelegationHandler *delegations.Handler
	AnalysisHandler   *analyses.Handler
	VotingHandler     *voting.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !deps.Config.IsDevLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil, nil, nil, nil)
	}
	api.GET("/health", healthSvc.Handler)

	var verifier middleware.TokenVerifier
	if deps.Verifier != nil {
		verifier = deps.Verifier
	}
	authMW := middleware.Auth(verifier)
	registerMeRoutes(api, authMW)

	if deps.ProposalHandler != nil {
		limiter := deps.Limiter
		if limiter == nil {
			limiter = middleware.NewRateLimiter(nil)
		}
		rule := middleware.RateLimitRule{
			RequestsPerMinute: deps.Config.ManualAnalyzeRPM,
			Burst:             deps.Config.ManualAnalyzeBurst,
		}
		deps.ProposalHandler.RegisterRoutes(api, authMW, middleware.RateLimit(manualAnalyzeGroup, rule, limiter))
	}
	if deps.DelegationHandler != nil {
		deps.DelegationHandler.RegisterRoutes(api, authMW)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.VotingHandler != nil {
		deps.VotingHandler.RegisterRoutes(api)
	}
	if deps.Config.IsDevLike() && deps.Verifier != nil {
		registerDevRoutes(api.Group("/dev"), deps.Verifier)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
