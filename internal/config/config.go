package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Config holds all configuration for the vidlens server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Download DownloadConfig
	AI       AIConfig
}

type ServerConfig struct {
	Port              int
	Env               string
	LogLevel          string
	APIKeyHashes      []string
	RateLimitPerMin   int
	AllowedPlatforms  []string
	MaxConcurrentJobs int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL           string
	ProbeCacheTTL time.Duration
}

type StorageConfig struct {
	UploadDir   string
	ResultsDir  string
	TempDir     string
	MaxFileSize int64
}

type DownloadConfig struct {
	YtDlpPath       string
	InstaloaderPath string
	Format          string
	Timeout         time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	UploadTimeout    time.Duration
	PollInterval     time.Duration
	MaxWait          time.Duration
	Gemini           GeminiConfig
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

var validProviders = map[string]bool{
	"gemini": true,
}

var validPlatforms = map[string]bool{
	"youtube":   true,
	"instagram": true,
	"tiktok":    true,
	"generic":   true,
}

const defaultMaxFileSize = 100 * humanize.MiByte

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := load()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStandalone is Load for the batch tool, which needs neither a database nor Redis.
func LoadStandalone() (*Config, error) {
	cfg := load()
	if err := cfg.validateAI(); err != nil {
		return nil, err
	}
	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              envInt("VIDLENS_PORT", 8000),
			Env:               envString("VIDLENS_ENV", "development"),
			LogLevel:          envString("LOG_LEVEL", "info"),
			APIKeyHashes:      envList("VIDLENS_API_KEY_HASHES", nil),
			RateLimitPerMin:   envInt("VIDLENS_RATE_LIMIT_PER_MIN", 60),
			AllowedPlatforms:  envList("VIDLENS_ALLOWED_PLATFORMS", []string{"instagram"}),
			MaxConcurrentJobs: envInt("VIDLENS_MAX_CONCURRENT_JOBS", 0),
		},
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", "sqlite://./data/vidlens.db"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:           os.Getenv("REDIS_URL"),
			ProbeCacheTTL: envDuration("PROBE_CACHE_TTL", 10*time.Minute),
		},
		Storage: StorageConfig{
			UploadDir:   envString("STORAGE_UPLOAD_DIR", "./data/videos"),
			ResultsDir:  envString("STORAGE_RESULTS_DIR", "./data/results"),
			TempDir:     envString("STORAGE_TEMP_DIR", "./data/temp"),
			MaxFileSize: envBytes("STORAGE_MAX_FILE_SIZE", defaultMaxFileSize),
		},
		Download: DownloadConfig{
			YtDlpPath:       envString("YTDLP_PATH", "yt-dlp"),
			InstaloaderPath: envString("INSTALOADER_PATH", "instaloader"),
			Format:          envString("YTDLP_FORMAT", "best[ext=mp4]/best"),
			Timeout:         envDuration("DOWNLOAD_TIMEOUT", 10*time.Minute),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "gemini"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 300*time.Second),
			UploadTimeout:    envDurationSecs("AI_UPLOAD_TIMEOUT_SECS", 300*time.Second),
			PollInterval:     envDuration("AI_POLL_INTERVAL", 3*time.Second),
			MaxWait:          envDuration("AI_MAX_WAIT", 120*time.Second),
			Gemini: GeminiConfig{
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-2.5-flash"),
				BaseURL: envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			},
		},
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !strings.HasPrefix(c.Database.URL, "postgres://") &&
		!strings.HasPrefix(c.Database.URL, "postgresql://") &&
		!strings.HasPrefix(c.Database.URL, "sqlite://") {
		return fmt.Errorf("DATABASE_URL must use postgres:// or sqlite://, got %q", c.Database.URL)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.Server.AllowedPlatforms) == 0 {
		return fmt.Errorf("VIDLENS_ALLOWED_PLATFORMS must name at least one platform")
	}
	for _, p := range c.Server.AllowedPlatforms {
		if !validPlatforms[p] {
			return fmt.Errorf("VIDLENS_ALLOWED_PLATFORMS must only contain youtube, instagram, tiktok, generic; got %q", p)
		}
	}
	if c.Server.MaxConcurrentJobs < 0 {
		return fmt.Errorf("VIDLENS_MAX_CONCURRENT_JOBS must be >= 0, got %d", c.Server.MaxConcurrentJobs)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validateAI()
}

func (c *Config) validateStorage() error {
	if c.Storage.UploadDir == "" || c.Storage.ResultsDir == "" || c.Storage.TempDir == "" {
		return fmt.Errorf("STORAGE_UPLOAD_DIR, STORAGE_RESULTS_DIR and STORAGE_TEMP_DIR must not be empty")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("STORAGE_MAX_FILE_SIZE must be positive")
	}
	return nil
}

func (c *Config) validateAI() error {
	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be gemini; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if !strings.HasPrefix(c.AI.Gemini.BaseURL, "http://") && !strings.HasPrefix(c.AI.Gemini.BaseURL, "https://") {
		return fmt.Errorf("GEMINI_BASE_URL must start with http:// or https://, got %q", c.AI.Gemini.BaseURL)
	}
	if c.AI.PollInterval <= 0 {
		return fmt.Errorf("AI_POLL_INTERVAL must be positive")
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envBytes accepts human sizes such as "100MB" or "1.5 GiB" as well as plain byte counts.
func envBytes(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return defaultVal
	}
	return int64(n)
}
