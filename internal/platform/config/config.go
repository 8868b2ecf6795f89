package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	// EscrowAdmin seeds the escrow admin identity at construction; the
	// contract allows setting it exactly once, so it comes from deploy-time
	// config rather than an API call.
	EscrowAdmin string
	// FundingPolicy controls who may fund a retainer balance:
	// "retainor", "retainee", or "either".
	FundingPolicy string

	PostgresURL string
	Redis       RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	DirectoryCacheTTL time.Duration
}

// RedisConfig holds connection tuning for the optional directory cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TRUSTLINE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	policy := os.Getenv("FUNDING_POLICY")
	if policy == "" {
		policy = "either"
	}

	cacheTTL := 5 * time.Minute
	if raw := os.Getenv("DIRECTORY_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cacheTTL = d
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "trustline.audit"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		EscrowAdmin:   os.Getenv("ESCROW_ADMIN"),
		FundingPolicy: policy,
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:      brokers,
		AuditTopic:        auditTopic,
		DirectoryCacheTTL: cacheTTL,
	}
}
