package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string
	RedisURL        string

	QueueTransport    string
	SQSHighQueueURL   string
	SQSNormalQueueURL string
	AWSRegion         string

	ObjectStoreType string
	LocalStoreDir   string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	IntelligenceURL     string
	IntelligenceTimeout time.Duration

	RPCURL                string
	VotingContractAddress string
	VoterPrivateKey       string
	ChainID               int64

	ReviewSafeScore  float64
	AutoApproveBelow float64
	AutoRejectFrom   float64

	JWTSecret          string
	ManualAnalyzeRPM   float64
	ManualAnalyzeBurst int

	ScannerInterval      time.Duration
	JobVisibilityTimeout time.Duration
	WorkerConcurrency    int
	CompletionDedupTTL   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		Env:             env,
		DatabaseURL:     dbURL,
		RedisURL:        getEnv("REDIS_URL", ""),

		QueueTransport:    normalizeTransport(getEnv("QUEUE_TRANSPORT", "redis")),
		SQSHighQueueURL:   getEnv("SQS_HIGH_QUEUE_URL", ""),
		SQSNormalQueueURL: getEnv("SQS_NORMAL_QUEUE_URL", ""),
		AWSRegion:         getEnv("AWS_REGION", ""),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		IntelligenceURL:     getEnv("INTELLIGENCE_URL", "http://localhost:8000"),
		IntelligenceTimeout: getDuration("INTELLIGENCE_TIMEOUT", 90*time.Second),

		RPCURL:                getEnv("RPC_URL", ""),
		VotingContractAddress: getEnv("VOTING_CONTRACT_ADDRESS", ""),
		VoterPrivateKey:       getEnv("VOTER_PRIVATE_KEY", ""),
		ChainID:               int64(getInt("CHAIN_ID", 10143)),

		ReviewSafeScore:  getFloat("REVIEW_SAFE_SCORE", 50),
		AutoApproveBelow: getFloat("AUTO_APPROVE_BELOW", 20),
		AutoRejectFrom:   getFloat("AUTO_REJECT_FROM", 80),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		ManualAnalyzeRPM:   getFloat("MANUAL_ANALYZE_RPM", 6),
		ManualAnalyzeBurst: getInt("MANUAL_ANALYZE_BURST", 3),

		ScannerInterval:      getDuration("SCANNER_INTERVAL", time.Minute),
		JobVisibilityTimeout: getDuration("JOB_VISIBILITY_TIMEOUT", 15*time.Minute),
		WorkerConcurrency:    getInt("WORKER_CONCURRENCY", 4),
		CompletionDedupTTL:   getDuration("COMPLETION_DEDUP_TTL", time.Hour),
	}
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: %s invalid number %q, using %v", key, raw, def)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeTransport(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "redis"
	}
}
