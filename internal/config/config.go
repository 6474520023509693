package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required")
	ErrMissingMasterKey   = errors.New("at least one master key is required")
	ErrInvalidTTL         = errors.New("PROCESSING_TTL must be positive")
)

type Config struct {
	HTTP   HTTPConfig
	AI     AIConfig
	DB     DBConfig
	Redis  RedisConfig
	Notes  NotesConfig
	Crypto CryptoConfig
	Log    LogConfig
}

type HTTPConfig struct {
	ListenAddr  string
	GinMode     string
	HealthPath  string
	MetricsPath string
}

type AIConfig struct {
	// GeminiKey is the ambient Gemini key. Keys stored per workspace take
	// precedence over it.
	GeminiKey     string
	GeminiBaseURL string
	OpenAIBaseURL string
	// ClientTimeout bounds a whole provider call; 0 leaves it unbounded.
	ClientTimeout time.Duration
}

type DBConfig struct {
	Driver        string
	DSN           string
	AutoMigrate   bool
	MigrationsDir string
}

// RedisConfig is optional; an empty Addr keeps the processing flags in
// process memory.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ProcessingTTL time.Duration
}

type NotesConfig struct {
	PromptsFile string
}

type CryptoConfig struct {
	CurrentKeyID string
	Keys         map[string][]byte
}

type LogConfig struct {
	Level string
}

// Load reads .env from the working directory, if present, and then the
// process environment. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			ListenAddr:  mustEnv("HTTP_LISTEN_ADDR", ":8080"),
			GinMode:     mustEnv("GIN_MODE", "release"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
		},
		AI: AIConfig{
			GeminiKey:     mustEnv("GEMINI_API_KEY", mustEnv("API_KEY", "")),
			GeminiBaseURL: mustEnv("GEMINI_BASE_URL", ""),
			OpenAIBaseURL: mustEnv("OPENAI_BASE_URL", ""),
			ClientTimeout: mustDuration("HTTP_TIMEOUT", 0),
		},
		DB: DBConfig{
			Driver:        strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:           mustEnv("DB_DSN", "regstudio.db"),
			AutoMigrate:   mustBool("AUTO_MIGRATE", true),
			MigrationsDir: mustEnv("MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:          mustEnv("REDIS_ADDR", ""),
			Password:      mustEnv("REDIS_PASSWORD", ""),
			DB:            mustInt("REDIS_DB", 0),
			ProcessingTTL: mustDuration("PROCESSING_TTL", 5*time.Minute),
		},
		Notes: NotesConfig{
			PromptsFile: mustEnv("PROMPTS_FILE", ""),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.DB.Driver != "sqlite" && cfg.DB.Driver != "postgres" && cfg.DB.Driver != "pgx" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.Redis.ProcessingTTL <= 0 {
		return nil, ErrInvalidTTL
	}

	cc, err := loadCryptoConfig()
	if err != nil {
		return nil, err
	}
	cfg.Crypto = cc

	return cfg, nil
}

// loadDotEnv loads variables from path. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func loadCryptoConfig() (CryptoConfig, error) {
	keysB64 := map[string]string{}

	if raw := mustEnv("MASTER_KEYS_JSON", ""); raw != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return CryptoConfig{}, fmt.Errorf("parse MASTER_KEYS_JSON: %w", err)
		}
		for id, val := range parsed {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(val) == "" {
				continue
			}
			keysB64[id] = val
		}
	}

	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k, v := parts[0], parts[1]
		if !strings.HasPrefix(k, "MASTER_KEY_") || !strings.HasSuffix(k, "_B64") {
			continue
		}
		if k == "MASTER_KEY_B64" {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, "MASTER_KEY_"), "_B64")
		if id == "" || v == "" {
			continue
		}
		keysB64[id] = v
	}

	current := mustEnv("MASTER_KEY_CURRENT_ID", "")
	if singleton := mustEnv("MASTER_KEY_B64", ""); singleton != "" {
		if current == "" {
			current = "default"
		}
		keysB64[current] = singleton
	}

	if len(keysB64) == 0 {
		return CryptoConfig{}, ErrMissingMasterKey
	}

	keys := make(map[string][]byte, len(keysB64))
	for id, b64 := range keysB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return CryptoConfig{}, fmt.Errorf("decode master key %q: %w", id, err)
		}
		if len(raw) != 32 {
			return CryptoConfig{}, fmt.Errorf("master key %q must be 32 bytes after base64 decode", id)
		}
		keys[id] = raw
	}

	if current == "" {
		for id := range keys {
			current = id
			break
		}
	}
	if _, ok := keys[current]; !ok {
		return CryptoConfig{}, fmt.Errorf("MASTER_KEY_CURRENT_ID=%q does not exist in provided keys", current)
	}

	return CryptoConfig{
		CurrentKeyID: current,
		Keys:         keys,
	}, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
