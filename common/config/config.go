package config

import (
	"strings"
	"time"

	"github.com/chatbridge/chatbridge/common/env"
)

var (
	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)

	// ServerPort overrides the --port flag when running inside container or PaaS environments.
	ServerPort = strings.TrimSpace(env.String("PORT", ""))
	// GinMode allows forcing Gin into release mode (or other modes) without recompiling.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", ""))

	// AwsRegion selects the Bedrock region. Credentials come from the standard
	// AWS resolution chain; AwsAccessKey/AwsSecretKey force static credentials
	// when both are present.
	AwsRegion    = env.String("AWS_REGION", "us-east-1")
	AwsAccessKey = strings.TrimSpace(env.String("AWS_ACCESS_KEY", ""))
	AwsSecretKey = strings.TrimSpace(env.String("AWS_SECRET_KEY", ""))

	// DefaultModel is the short model name completions target unless the
	// request overrides it. Must resolve in the bedrock model registry.
	DefaultModel = env.String("BEDROCK_MODEL", "claude-3-5-sonnet-20241022")
	// DefaultTemperature is the sampling temperature applied when the request
	// carries none. Bedrock Claude accepts [0, 1].
	DefaultTemperature = env.Float64("TEMPERATURE", 0.7)
	// DefaultMaxToken caps the assistant reply length (output tokens).
	DefaultMaxToken = env.Int("MAX_TOKENS", 4096)
	// MaxContextTokens bounds the serialized prompt. Histories estimated above
	// this limit are rejected or truncated depending on ContextPolicy.
	MaxContextTokens = env.Int("MAX_CONTEXT_TOKENS", 200000)
	// ContextPolicy chooses what happens when a history exceeds
	// MaxContextTokens: "fail" rejects the request, "slide" drops the oldest
	// non-system turns until the prompt fits.
	ContextPolicy = env.String("CONTEXT_POLICY", "fail")
	// SystemPrompt is prepended to every conversation as the system turn when set.
	SystemPrompt = env.String("SYSTEM_PROMPT", "")

	// SessionTTL is how long an idle conversation buffer survives before the
	// session store discards it. Every successful exchange refreshes the TTL.
	SessionTTL = time.Minute * time.Duration(env.Int("SESSION_TTL_MINUTES", 120))
	// SessionSecret signs the session cookie. A random value is generated at
	// startup when unset, which invalidates cookies across restarts.
	SessionSecret = strings.TrimSpace(env.String("SESSION_SECRET", ""))
	// CookieMaxAgeHours controls how long session cookies stay valid.
	CookieMaxAgeHours = env.Int("COOKIE_MAXAGE_HOURS", 168)
	// EnableCookieSecure forces the browser to send session cookies only over HTTPS.
	EnableCookieSecure = env.Bool("ENABLE_COOKIE_SECURE", false)

	// RedisConnString switches the session store to Redis when set, for
	// multi-replica deployments. Conversations still expire with SessionTTL.
	RedisConnString = env.String("REDIS_CONN_STRING", "")

	// ContextBucket names the S3 bucket holding guidance documents. Empty
	// disables document-context augmentation entirely.
	ContextBucket = strings.TrimSpace(env.String("CONTEXT_BUCKET", ""))

	// EnablePrometheusMetrics exposes /metrics when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)

	// ShutdownTimeoutSec specifies the graceful shutdown timeout (seconds) for
	// the HTTP server and in-flight completions.
	ShutdownTimeoutSec = env.Int("SHUTDOWN_TIMEOUT", 30)
)
