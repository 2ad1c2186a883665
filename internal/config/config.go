package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// External services
	CustomersAPIURL string
	CreditsAPIURL   string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Response cache
	EligibilityCacheTTL time.Duration
	CreditCardCacheTTL  time.Duration

	// Observability
	OTLPEndpoint   string
	TracingEnabled bool

	// Persistence (PostgREST). When disabled the service runs on the
	// in-memory store (dev mode).
	PostgrestURL        string
	PostgrestAnonKey    string
	PostgrestServiceKey string
	UsePostgrest        bool

	// Account numbering
	NumberRetryBudget int

	// Balance operations
	OpIDsCap int

	// Commission policy defaults per account type
	Policy PolicyDefaults

	// Benefit gates
	RequireCcForVip  bool
	RequireCcForPyme bool

	// JWT / Auth
	AuthEnabled        bool
	JWTSecret          string
	JWTAccessTTL       time.Duration
	AuthUsername       string
	AuthPasswordBcrypt string
}

// PolicyDefaults carries the configured free-operation counts and commission
// fees applied to new accounts that do not set them explicitly.
type PolicyDefaults struct {
	SavingsFreeOps  int
	SavingsFee      decimal.Decimal
	CheckingFreeOps int
	CheckingFee     decimal.Decimal
	FixedFreeOps    int
	FixedFee        decimal.Decimal
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CustomersAPIURL: getEnv("CUSTOMERS_API_URL", "http://localhost:8086/api/v1"),
		CreditsAPIURL:   getEnv("CREDITS_API_URL", "http://localhost:8585/api/v1"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		EligibilityCacheTTL: getEnvDuration("ELIGIBILITY_CACHE_TTL", 10*time.Minute),
		CreditCardCacheTTL:  getEnvDuration("CREDIT_CARD_CACHE_TTL", 5*time.Minute),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnv("TRACING_ENABLED", "false") == "true",

		PostgrestURL:        getEnv("POSTGREST_URL", ""),
		PostgrestAnonKey:    getEnv("POSTGREST_ANON_KEY", ""),
		PostgrestServiceKey: getEnv("POSTGREST_SERVICE_ROLE_KEY", ""),
		UsePostgrest:        getEnv("USE_POSTGREST", "true") == "true",

		NumberRetryBudget: getEnvInt("NUMBER_RETRY_BUDGET", 3),
		OpIDsCap:          getEnvInt("OP_IDS_CAP", 200),

		Policy: PolicyDefaults{
			SavingsFreeOps:  getEnvInt("POLICY_SAVINGS_FREE_OPS", 5),
			SavingsFee:      getEnvDecimal("POLICY_SAVINGS_FEE", "1.50"),
			CheckingFreeOps: getEnvInt("POLICY_CHECKING_FREE_OPS", 10),
			CheckingFee:     getEnvDecimal("POLICY_CHECKING_FEE", "0.90"),
			FixedFreeOps:    getEnvInt("POLICY_FIXED_FREE_OPS", 0),
			FixedFee:        getEnvDecimal("POLICY_FIXED_FEE", "0.00"),
		},

		RequireCcForVip:  getEnv("BENEFIT_SAVINGS_VIP_REQUIRE_CC", "true") == "true",
		RequireCcForPyme: getEnv("BENEFIT_CHECKING_PYME_REQUIRE_CC", "true") == "true",

		AuthEnabled:        getEnv("AUTH_ENABLED", "false") == "true",
		JWTSecret:          getEnv("JWT_SECRET", "account-service-dev-secret-change-me"),
		JWTAccessTTL:       getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		AuthUsername:       getEnv("AUTH_USERNAME", "admin"),
		AuthPasswordBcrypt: getEnv("AUTH_PASSWORD_BCRYPT", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(fallback)
	return d
}
