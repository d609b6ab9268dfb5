package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// It is built once in main and passed by pointer to every component.
type Config struct {
	NodeEnv        string
	Port           string
	BaseURL        string
	JWTSecret      string
	TokenTTL       time.Duration
	CookieSecure   bool
	AllowedOrigins []string
	Database       DatabaseConfig
	Storage        StorageConfig
	Finalize       FinalizeConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Silent   bool
}

// StorageConfig selects and configures the object store
type StorageConfig struct {
	Driver           string // local, gcs
	LocalDir         string
	PublicBaseURL    string
	DocumentsBucket  string
	SignaturesBucket string
	CredentialsFile  string
}

// FinalizeConfig tunes upload limits and the compositor
type FinalizeConfig struct {
	FetchConcurrency int
	FetchTimeout     time.Duration
	MaxUploadBytes   int64
	VerificationQR   bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	fetchTimeout, err := time.ParseDuration(getEnv("IMAGE_FETCH_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_FETCH_TIMEOUT: %w", err)
	}

	port := getEnv("PORT", "6001")
	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:"+port), "/")

	return &Config{
		NodeEnv:      getEnv("NODE_ENV", "development"),
		Port:         port,
		BaseURL:      baseURL,
		JWTSecret:    jwtSecret,
		TokenTTL:     tokenTTL,
		CookieSecure: getEnv("COOKIE_SECURE", "true") == "true",
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS",
			"http://localhost:3000,https://e-sign-pdf-project-frontend.vercel.app")),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "eseal"),
			Silent:   getEnv("DB_SILENT", "false") == "true",
		},
		Storage: StorageConfig{
			Driver:           getEnv("STORAGE_DRIVER", "local"),
			LocalDir:         getEnv("STORAGE_DIR", "./uploads"),
			PublicBaseURL:    strings.TrimRight(getEnv("STORAGE_PUBLIC_URL", baseURL+"/files"), "/"),
			DocumentsBucket:  getEnv("DOCUMENTS_BUCKET", "documents"),
			SignaturesBucket: getEnv("SIGNATURES_BUCKET", "signatures"),
			CredentialsFile:  os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		Finalize: FinalizeConfig{
			FetchConcurrency: getEnvInt("IMAGE_FETCH_CONCURRENCY", 4),
			FetchTimeout:     fetchTimeout,
			MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 5*1024*1024)),
			VerificationQR:   getEnv("VERIFICATION_QR", "false") == "true",
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
