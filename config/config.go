package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	GitHub   GitHubConfig
	Local    LocalConfig
	Review   ReviewConfig
	Planner  PlannerConfig
	App      AppConfig
}

type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig enables the apply ledger when DSN is set
type DatabaseConfig struct {
	DSN string
}

type GitHubConfig struct {
	Token           string
	APIURL          string
	Branch          string
	WritesPerSecond float64
}

type LocalConfig struct {
	RepoRoot    string
	AuthorName  string
	AuthorEmail string
}

type ReviewConfig struct {
	SessionTTL       time.Duration
	StoreGrace       time.Duration
	AppliedRetention time.Duration
}

type PlannerConfig struct {
	DiffMaxBytes        int
	PrefetchConcurrency int
	LayoutFile          string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	LogFile     string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DB_DSN", ""),
		},
		GitHub: GitHubConfig{
			Token:           getEnv("GITHUB_TOKEN", ""),
			APIURL:          getEnv("GITHUB_API_URL", "https://api.github.com"),
			Branch:          getEnv("GITHUB_BRANCH", "main"),
			WritesPerSecond: getEnvAsFloat("GITHUB_WRITES_PER_SECOND", 1),
		},
		Local: LocalConfig{
			RepoRoot:    getEnv("LOCAL_REPO_ROOT", ""),
			AuthorName:  getEnv("GIT_AUTHOR_NAME", "content-writeback"),
			AuthorEmail: getEnv("GIT_AUTHOR_EMAIL", "writeback@localhost"),
		},
		Review: ReviewConfig{
			SessionTTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			StoreGrace:       getEnvAsDuration("SESSION_STORE_GRACE", time.Hour),
			AppliedRetention: getEnvAsDuration("APPLIED_SESSION_RETENTION", 7*24*time.Hour),
		},
		Planner: PlannerConfig{
			DiffMaxBytes:        getEnvAsInt("DIFF_MAX_BYTES", 20000),
			PrefetchConcurrency: getEnvAsInt("PREFETCH_CONCURRENCY", 4),
			LayoutFile:          getEnv("LAYOUT_FILE", ""),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFile:     getEnv("LOG_FILE", ""),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.Review.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Review.StoreGrace < 0 {
		return fmt.Errorf("SESSION_STORE_GRACE must not be negative")
	}
	if c.Planner.DiffMaxBytes <= 0 {
		return fmt.Errorf("DIFF_MAX_BYTES must be positive")
	}
	if c.Planner.PrefetchConcurrency <= 0 {
		return fmt.Errorf("PREFETCH_CONCURRENCY must be positive")
	}
	if c.GitHub.WritesPerSecond <= 0 {
		return fmt.Errorf("GITHUB_WRITES_PER_SECOND must be positive")
	}

	return nil
}

// LedgerEnabled reports whether applied sessions are recorded in Postgres
func (c *Config) LedgerEnabled() bool {
	return c.Database.DSN != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Int("default", defaultValue).Msg("invalid integer, using default")
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Float64("default", defaultValue).Msg("invalid number, using default")
		return defaultValue
	}

	return value
}

// getEnvAsDuration accepts Go duration strings ("90s", "24h") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}

	log.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration, using default")
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
