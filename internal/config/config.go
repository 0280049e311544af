// Package config loads Helix configuration from a YAML file and the
// environment, and wires up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Storage
	DataDir string `yaml:"data_dir"`

	// HTTP server
	Addr string `yaml:"addr"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// Embedding
	EmbedProvider string `yaml:"embed_provider"` // fingerprint, ollama, openai, voyage
	EmbedModel    string `yaml:"embed_model"`
	EmbedDim      int    `yaml:"embed_dim"`
	VoyageKey     string `yaml:"-"`

	// Analysis backend
	Backend       string `yaml:"backend"` // bedrock, ollama, openai, anthropic, placeholder
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallback_model"`
	ThinkingLevel string `yaml:"thinking_level"` // none, low, high
	OllamaHost    string `yaml:"ollama_host"`
	OpenAIKey     string `yaml:"-"`
	AnthropicKey  string `yaml:"-"`

	// Memory and ingestion
	MaxMemoryItems     int `yaml:"max_memory_items"`
	SessionExpiryHours int `yaml:"session_expiry_hours"`
	ChunkSize          int `yaml:"chunk_size"`
	IngestWorkers      int `yaml:"ingest_workers"`
}

// Load reads configuration: defaults, then an optional YAML file
// (HELIX_CONFIG or ./helix.yaml), then environment overrides. A .env file
// in the working directory is honored if present.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaults()
	loadFile(&cfg)
	applyEnv(&cfg)
	return cfg
}

func defaults() Config {
	return Config{
		DataDir:            "./data",
		Addr:               ":8000",
		LogFile:            "/tmp/helix.log",
		LogLevel:           slog.LevelInfo,
		EmbedProvider:      "fingerprint",
		EmbedModel:         "simple-hash-256",
		EmbedDim:           32,
		Backend:            "bedrock",
		Model:              "anthropic.claude-3-5-sonnet-20241022-v2:0",
		FallbackModel:      "anthropic.claude-3-haiku-20240307-v1:0",
		ThinkingLevel:      "high",
		OllamaHost:         "http://localhost:11434",
		MaxMemoryItems:     100,
		SessionExpiryHours: 24,
		ChunkSize:          2000,
		IngestWorkers:      4,
	}
}

func loadFile(cfg *Config) {
	path := getEnv("HELIX_CONFIG", "helix.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("ignoring unparseable config file", "file", path, "error", err)
	}
}

func applyEnv(cfg *Config) {
	cfg.DataDir = getEnv("HELIX_DATA_DIR", cfg.DataDir)
	cfg.Addr = getEnv("HELIX_ADDR", cfg.Addr)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.LogFile = getEnv("HELIX_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("HELIX_LOG_LEVEL", "INFO"))

	cfg.EmbedProvider = getEnv("HELIX_EMBED_PROVIDER", cfg.EmbedProvider)
	cfg.EmbedModel = getEnv("HELIX_EMBED_MODEL", cfg.EmbedModel)
	cfg.EmbedDim = getEnvInt("HELIX_EMBED_DIM", cfg.EmbedDim)
	cfg.VoyageKey = os.Getenv("VOYAGE_API_KEY")

	cfg.Backend = getEnv("HELIX_BACKEND", cfg.Backend)
	cfg.Model = getEnv("HELIX_MODEL", cfg.Model)
	cfg.FallbackModel = getEnv("HELIX_FALLBACK_MODEL", cfg.FallbackModel)
	cfg.ThinkingLevel = getEnv("HELIX_THINKING_LEVEL", cfg.ThinkingLevel)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")

	cfg.MaxMemoryItems = getEnvInt("MAX_MEMORY_ITEMS", cfg.MaxMemoryItems)
	cfg.SessionExpiryHours = getEnvInt("SESSION_EXPIRY_HOURS", cfg.SessionExpiryHours)
	cfg.ChunkSize = getEnvInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.IngestWorkers = getEnvInt("HELIX_INGEST_WORKERS", cfg.IngestWorkers)
}

// SessionExpiry returns the session expiry as a duration.
func (c Config) SessionExpiry() time.Duration {
	return time.Duration(c.SessionExpiryHours) * time.Hour
}

// CorpusFile is the path of the shared corpus collection.
func (c Config) CorpusFile() string {
	return filepath.Join(c.DataDir, "vectordb", "documents.json")
}

// MemoryDir is the directory holding one file per session.
func (c Config) MemoryDir() string {
	return filepath.Join(c.DataDir, "memory")
}

// ChartsDir is the directory rendered chart artifacts are written to.
func (c Config) ChartsDir() string {
	return filepath.Join(c.DataDir, "charts")
}

// EnsureDirs creates the data directories if they do not exist.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{filepath.Dir(c.CorpusFile()), c.MemoryDir(), c.ChartsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("ignoring non-numeric env value", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
