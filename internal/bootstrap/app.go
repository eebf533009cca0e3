package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"guarddog-backend/internal/analyses"
	"guarddog-backend/internal/delegations"
	"guarddog-backend/internal/events"
	"guarddog-backend/internal/intelligence"
	"guarddog-backend/internal/listener"
	"guarddog-backend/internal/proposals"
	"guarddog-backend/internal/queue"
	"guarddog-backend/internal/services/health"
	"guarddog-backend/internal/shared/auth"
	"guarddog-backend/internal/shared/config"
	"guarddog-backend/internal/shared/server"
	"guarddog-backend/internal/shared/server/middleware"
	"guarddog-backend/internal/shared/storage/db"
	"guarddog-backend/internal/shared/storage/object"
	localstore "guarddog-backend/internal/shared/storage/object/local"
	s3store "guarddog-backend/internal/shared/storage/object/s3"
	"guarddog-backend/internal/voting"
	"guarddog-backend/internal/workerproc"
)

const workerShutdownTimeout = 30 * time.Second

// App holds shared dependencies for the api and worker binaries.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	Store  object.ObjectStore
	Bus    events.Bus

	// EmbeddedRedis is set when redis runs inside this process, so no other
	// process can see its queue.
	EmbeddedRedis bool

	Producer *queue.Producer
	Consumer *queue.Consumer

	ProposalsRepo   proposals.Repo
	DelegationsRepo delegations.Repo
	AnalysesRepo    analyses.Repo
	AuditRepo       voting.AuditRepo

	ProposalsService *proposals.Service
	AnalysesService  *analyses.Service
	Orchestrator     *voting.Orchestrator
	Listener         *listener.Listener
	Scanner          *proposals.Scanner
	Health           *health.Service

	closers []func() error
}

// Build wires every dependency from cfg. Dev-like environments fall back to
// in-memory repositories and an embedded redis when nothing is configured.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	if err := app.buildRedis(cfg); err != nil {
		app.Close()
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	lanes, err := buildLanes(ctx, cfg, app.Redis)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Bus = events.NewRedisBus(app.Redis)
	jobStore := queue.NewStore(app.Redis)
	app.Producer = queue.NewProducer(jobStore, lanes, app.Bus)
	app.Consumer = queue.NewConsumer(jobStore, lanes)

	if err := app.buildServices(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("bootstrap: close: %v", err)
		}
	}
	a.closers = nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func (a *App) buildRedis(cfg config.Config) error {
	url := strings.TrimSpace(cfg.RedisURL)
	if url == "" {
		if !cfg.IsDevLike() {
			return fmt.Errorf("REDIS_URL is required")
		}
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		log.Printf("bootstrap: REDIS_URL empty; using embedded redis at %s (queue is private to this process)", mr.Addr())
		a.EmbeddedRedis = true
		a.closers = append(a.closers, func() error { mr.Close(); return nil })
		url = "redis://" + mr.Addr()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	a.Redis = redis.NewClient(opts)
	a.closers = append(a.closers, a.Redis.Close)
	return nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLanes(ctx context.Context, cfg config.Config, client *redis.Client) (queue.LaneTransport, error) {
	switch cfg.QueueTransport {
	case "sqs":
		if cfg.SQSHighQueueURL == "" || cfg.SQSNormalQueueURL == "" {
			return nil, fmt.Errorf("QUEUE_TRANSPORT=sqs requires SQS_HIGH_QUEUE_URL and SQS_NORMAL_QUEUE_URL")
		}
		return queue.NewSQSLanes(ctx, cfg.AWSRegion, cfg.SQSHighQueueURL, cfg.SQSNormalQueueURL)
	default:
		return queue.NewRedisLanes(client), nil
	}
}

func buildContract(ctx context.Context, cfg config.Config) voting.Contract {
	if cfg.RPCURL == "" || cfg.VotingContractAddress == "" || cfg.VoterPrivateKey == "" {
		log.Printf("bootstrap: voting contract not configured; auto-voting disabled")
		return nil
	}
	c, err := voting.DialEthContract(ctx, voting.EthConfig{
		RPCURL:          cfg.RPCURL,
		ContractAddress: cfg.VotingContractAddress,
		PrivateKey:      cfg.VoterPrivateKey,
		ChainID:         cfg.ChainID,
	})
	if err != nil {
		log.Printf("bootstrap: voting contract unavailable; auto-voting disabled: %v", err)
		return nil
	}
	return c
}

func (a *App) buildServices(ctx context.Context) error {
	cfg := a.Config
	if a.DB != nil {
		a.ProposalsRepo = &proposals.PGRepo{DB: a.DB}
		a.DelegationsRepo = &delegations.PGRepo{DB: a.DB}
		a.AnalysesRepo = &analyses.PGRepo{DB: a.DB}
		a.AuditRepo = &voting.PGAuditRepo{DB: a.DB}
	} else {
		a.ProposalsRepo = proposals.NewMemoryRepo()
		a.DelegationsRepo = delegations.NewMemoryRepo()
		a.AnalysesRepo = analyses.NewMemoryRepo()
		a.AuditRepo = voting.NewMemoryAuditRepo()
	}

	intel, err := intelligence.NewClient(cfg.IntelligenceURL, cfg.IntelligenceTimeout)
	if err != nil {
		return fmt.Errorf("intelligence client: %w", err)
	}

	a.ProposalsService = &proposals.Service{Repo: a.ProposalsRepo, Queue: a.Producer, Simulator: intel}

	a.AnalysesService = &analyses.Service{
		Repo:      a.AnalysesRepo,
		Proposals: a.ProposalsRepo,
		Analyzer:  intelligence.NewRetrying(intel),
		Store:     a.Store,
		Cache:     a.Producer,
		Jobs:      a.Consumer,
		Bus:       a.Bus,
		Thresholds: intelligence.Thresholds{
			ApproveBelow: cfg.AutoApproveBelow,
			RejectFrom:   cfg.AutoRejectFrom,
		},
	}

	a.Orchestrator = voting.NewOrchestrator(a.DelegationsRepo, buildContract(ctx, cfg), a.AuditRepo, cfg.ReviewSafeScore)

	var guard listener.CompletionGuard = listener.NewRedisGuard(a.Redis, cfg.CompletionDedupTTL)
	a.Listener = listener.New(a.Bus, a.ProposalsRepo, a.AnalysesRepo, a.Orchestrator, guard)
	a.Scanner = &proposals.Scanner{
		Svc:         a.ProposalsService,
		Interval:    cfg.ScannerInterval,
		Jobs:        a.Producer,
		Completions: a.Listener,
		Visibility:  cfg.JobVisibilityTimeout,
	}

	var dbPinger health.Pinger
	if a.DB != nil {
		dbPinger = a.DB
	}
	a.Health = health.NewService(dbPinger, redisPinger{a.Redis}, a.Producer, a.Listener)

	verifier, err := auth.NewVerifier(cfg.JWTSecret, !cfg.IsDevLike())
	if err != nil {
		return err
	}
	a.Router = server.NewRouter(server.RouterDeps{
		Config:            cfg,
		Verifier:          verifier,
		Limiter:           middleware.NewRateLimiter(nil),
		Health:            a.Health,
		ProposalHandler:   proposals.NewHandler(a.ProposalsService),
		DelegationHandler: delegations.NewHandler(a.DelegationsRepo),
		AnalysisHandler:   analyses.NewHandler(a.AnalysesRepo, a.Producer),
		VotingHandler:     voting.NewHandler(a.AuditRepo),
	})
	return nil
}

// NewWorkerPool builds the analysis worker over the app's consumer.
func (a *App) NewWorkerPool() *workerproc.Pool {
	return &workerproc.Pool{
		Source:          a.Consumer,
		Processor:       a.AnalysesService,
		Concurrency:     max(1, a.Config.WorkerConcurrency),
		ShutdownTimeout: workerShutdownTimeout,
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
