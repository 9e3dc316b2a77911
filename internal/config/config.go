package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
// It is built once at process start and passed explicitly to the components
// that need it; nothing reads the environment after Load returns.
type Config struct {
	// Server
	Port        int
	LogLevel    string
	CORSOrigins []string

	// Identity provider (Decolecta)
	MockMode         bool
	LookupToken      string
	DNILookupURL     string
	RUCLookupURL     string
	LookupTimeout    time.Duration
	MockBookPath     string
	IdentityCacheTTL time.Duration

	// Redis (optional identity cache backend)
	RedisAddr     string
	RedisPassword string

	// Storage
	StoreBackend string // memory | postgres | supabase
	DatabaseURL  string
	DBMaxConns   int

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// HTTP client used by storage adapters
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Observability
	OTLPEndpoint string

	// Operator auth
	JWTSecret   string
	DevAuth     bool // DEV_AUTH=true trusts X-Operator, falls back to DevOperator
	DevOperator string
	Operators   string // memory seed: "login:Name,login2:Name 2"

	// Receipts
	BaseCurrency  string
	ReceiptPrefix string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		MockMode:         getEnvBool("MOCK_MODE", false),
		LookupToken:      strings.TrimSpace(os.Getenv("DECOLECTA_TOKEN")),
		DNILookupURL:     getEnv("DNI_LOOKUP_URL", "https://api.decolecta.com/v1/reniec/dni"),
		RUCLookupURL:     getEnv("RUC_LOOKUP_URL", "https://api.decolecta.com/v1/sunat/ruc"),
		LookupTimeout:    getEnvDuration("LOOKUP_TIMEOUT", 12*time.Second),
		MockBookPath:     getEnv("MOCK_BOOK_PATH", ""),
		IdentityCacheTTL: getEnvDuration("IDENTITY_CACHE_TTL", 0),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DBMaxConns:   getEnvInt("DB_MAX_CONNS", 10),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret:   getEnv("JWT_SECRET", "agent-default-dev-secret-change-me"),
		DevAuth:     getEnvBool("DEV_AUTH", false),
		DevOperator: getEnv("DEV_OPERATOR", "kiosk"),
		Operators:   getEnv("OPERATORS", "ManuelBL:Manuel Bermejo,VictorBL:Victor BL"),

		BaseCurrency:  getEnv("BASE_CURRENCY", "PEN"),
		ReceiptPrefix: getEnv("RECEIPT_PREFIX", "BL"),
	}
}

// OperatorSeed parses the OPERATORS list into login -> display name.
// Entries without a name use the login as name.
func (c *Config) OperatorSeed() map[string]string {
	seed := make(map[string]string)
	for _, item := range strings.Split(c.Operators, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		login, name, found := strings.Cut(item, ":")
		login = strings.TrimSpace(login)
		if login == "" {
			continue
		}
		name = strings.TrimSpace(name)
		if !found || name == "" {
			name = login
		}
		seed[login] = name
	}
	return seed
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

// getEnvBool accepts "1"/"true"/"yes" (the original deployment used MOCK_MODE=1).
func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
