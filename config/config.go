package config

import (
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"time"

	"storefront-cart/internal/domain"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	AllowedOrigin string
	// Remote Cart API
	RemoteAPIURL   string
	RemoteCartPath string
	RemoteTimeout  time.Duration
	RemoteRPS      float64
	RemoteBurst    int
	// Reconciliation
	UpdateCooldown time.Duration
	CacheCartTTL   time.Duration
	// Local Record Store
	LocalStore     string // memory | file | postgres
	LocalStoreDir  string
	LocalCartKey   string
	CredentialsKey string
	// Row namespace in the postgres record store, one per device or visitor
	RecordNamespace string
	// DB Config (postgres record store only)
	DBUrl             string
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnIdleTime time.Duration
	// Optional: verify bearer tokens locally
	JWTSecret string
	// Business Rules
	MaxCartQuantity int
}

func LoadConfig() *Config {
	// 1. Check if a specific config file is requested via env var
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		} else {
			log.Printf("Loaded configuration from %s", configFile)
		}
	} else {
		// 2. Default fallback: Try loading .env (standard local dev)
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading it, relying on system env vars")
		}
	}

	cfg := &Config{
		Port:          getEnv("PORT", "7420"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),

		RemoteAPIURL:   getEnv("REMOTE_API_URL", ""),
		RemoteCartPath: getEnv("REMOTE_CART_PATH", "/api/v1/cart"),
		RemoteTimeout:  getDurationEnv("REMOTE_TIMEOUT", 10*time.Second),
		RemoteRPS:      getFloatEnv("REMOTE_RPS", 10),
		RemoteBurst:    getIntEnv("REMOTE_BURST", 20),

		// Cooldown defaults: 30s degraded marker, 5m snapshot TTL
		UpdateCooldown: getDurationEnv("UPDATE_COOLDOWN", domain.DefaultUpdateCooldown),
		CacheCartTTL:   getDurationEnv("CACHE_CART_TTL", 5*time.Minute),

		LocalStore:     getEnv("LOCAL_STORE", "file"),
		LocalStoreDir:  getEnv("LOCAL_STORE_DIR", ".storefront"),
		LocalCartKey:   getEnv("LOCAL_CART_KEY", domain.DefaultCartKey),
		CredentialsKey: getEnv("CREDENTIALS_KEY", domain.DefaultCredentialsKey),

		RecordNamespace: getEnv("RECORD_NAMESPACE", "default"),

		DBUrl:             getEnv("DB_DSN", ""),
		DBMaxConns:        getInt32Env("DB_MAX_CONNS", 4),
		DBMinConns:        getInt32Env("DB_MIN_CONNS", 1),
		DBMaxConnIdleTime: getDurationEnv("DB_MAX_CONN_IDLE_TIME", time.Minute*15),

		JWTSecret: getEnv("JWT_SECRET", ""),

		// Business rules: 1000 max cart quantity
		MaxCartQuantity: getIntEnv("MAX_CART_QUANTITY", 1000),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.RemoteAPIURL == "" {
		return fmt.Errorf("REMOTE_API_URL environment variable is required")
	}
	if !slices.Contains(domain.LocalStores, c.LocalStore) {
		return fmt.Errorf("unknown LOCAL_STORE %q", c.LocalStore)
	}
	if c.LocalStore == domain.StorePostgres && c.DBUrl == "" {
		return fmt.Errorf("DB_DSN is required when LOCAL_STORE=postgres")
	}
	if c.UpdateCooldown < 0 {
		return fmt.Errorf("UPDATE_COOLDOWN must not be negative")
	}
	if c.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET not set, bearer tokens are decoded without signature verification.")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Invalid float for %s, using fallback", key)
	}
	return fallback
}
