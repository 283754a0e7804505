package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the confscout backend.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings. JWTSecret is optional: when
// set, bearer tokens issued by the external auth layer are honored for
// session identity; without it every caller shares the anonymous identity.
type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	JWTSecret      string   `mapstructure:"jwt_secret"`
}

// CorpusConfig points at the read-only index snapshot produced by the
// offline ingestion pipeline. Path may name a .json or .json.zst file.
type CorpusConfig struct {
	Path string `mapstructure:"path"`
}

func (c CorpusConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("corpus.path required")
	}
	return nil
}

// EmbeddingConfig describes the query embedding endpoint. The model and
// dimension must match whatever the ingestion pipeline used; only the
// dimension is verifiable at runtime.
type EmbeddingConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func (e EmbeddingConfig) Validate() error {
	if strings.TrimSpace(e.BaseURL) == "" {
		return fmt.Errorf("embedding.base_url required")
	}
	if e.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be > 0")
	}
	return nil
}

// ProvidersConfig contains per-provider chat settings. API keys are
// server-side defaults; callers may override per request.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig configures the text-context chat adapter.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GeminiConfig configures the native-document chat adapter.
type GeminiConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
	// HandleTTL is used when the File API omits an expiry.
	HandleTTL time.Duration `mapstructure:"handle_ttl"`
}

// SessionConfig selects the Deep-Dive cache backend.
type SessionConfig struct {
	Backend string        `mapstructure:"backend"` // inmemory or redis
	TTL     time.Duration `mapstructure:"ttl"`
}

func (s SessionConfig) Validate() error {
	switch s.Backend {
	case "", "inmemory", "redis":
		return nil
	}
	return fmt.Errorf("session.backend must be inmemory or redis, got %q", s.Backend)
}

// StorageConfig contains optional external storage settings.
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if r.Host == "" && r.Port == "" {
		return nil
	}
	if r.Host == "" || r.Port == "" {
		return fmt.Errorf("storage.redis.host and storage.redis.port must be set together")
	}
	return nil
}

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file with CONFSCOUT_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.address", ":10002")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	viper.SetDefault("embedding.dimension", 384)
	viper.SetDefault("embedding.timeout", 15*time.Second)
	viper.SetDefault("providers.openai.model", "gpt-4o")
	viper.SetDefault("providers.openai.temperature", 0.2)
	viper.SetDefault("providers.openai.timeout", 60*time.Second)
	viper.SetDefault("providers.gemini.model", "gemini-1.5-flash")
	viper.SetDefault("providers.gemini.timeout", 60*time.Second)
	viper.SetDefault("providers.gemini.upload_timeout", 120*time.Second)
	viper.SetDefault("providers.gemini.handle_ttl", 48*time.Hour)
	viper.SetDefault("session.backend", "inmemory")
	viper.SetDefault("session.ttl", 48*time.Hour)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CONFSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Corpus.Validate(); err != nil {
		panic(err)
	}
	if err := config.Embedding.Validate(); err != nil {
		panic(err)
	}
	if err := config.Session.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}
