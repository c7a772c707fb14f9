package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// Store backends accepted by FINBOT_STORE.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Env is the process configuration.
type Env struct {
	Anthropic    AnthropicConfig
	Store        StoreConfig
	Redis        RedisConfig
	Conversation ConversationConfig
	Log          LogConfig

	// Tables is an optional YAML or JSON file overlaid on DefaultTables.
	Tables string `envconfig:"FINBOT_TABLES"`
	// Products is an optional JSON product catalog loaded into the search index.
	Products string `envconfig:"FINBOT_PRODUCTS"`
}

// AnthropicConfig configures the reasoning and extraction client.
type AnthropicConfig struct {
	APIKey     string `envconfig:"FINBOT_ANTHROPIC_API_KEY"`
	BaseURL    string `envconfig:"FINBOT_ANTHROPIC_BASE_URL"`
	Model      string `envconfig:"FINBOT_MODEL" default:"claude-sonnet-4-5"`
	MaxTokens  int    `envconfig:"FINBOT_MAX_TOKENS" default:"1024"`
	MaxRetries int    `envconfig:"FINBOT_MAX_RETRIES" default:"3"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	Kind       string `envconfig:"FINBOT_STORE" default:"memory"`
	SQLitePath string `envconfig:"FINBOT_SQLITE_PATH" default:"finbot.db"`
}

// RedisConfig configures the shared checkpoint store and session locks.
type RedisConfig struct {
	Addr         string        `envconfig:"FINBOT_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"FINBOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FINBOT_REDIS_DB" default:"0"`
	Prefix       string        `envconfig:"FINBOT_REDIS_PREFIX" default:"finbot:"`
	SessionTTL   time.Duration `envconfig:"FINBOT_SESSION_TTL" default:"168h"`
	DialTimeout  time.Duration `envconfig:"FINBOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FINBOT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"FINBOT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// ConversationConfig bounds a single conversation turn.
type ConversationConfig struct {
	HistorySize int           `envconfig:"FINBOT_HISTORY_SIZE" default:"10"`
	NodeTimeout time.Duration `envconfig:"FINBOT_NODE_TIMEOUT" default:"30s"`
	TurnTimeout time.Duration `envconfig:"FINBOT_TURN_TIMEOUT" default:"2m"`
	SearchTopK  int           `envconfig:"FINBOT_SEARCH_TOP_K" default:"3"`
}

// LogConfig selects the slog handler built by the CLI.
type LogConfig struct {
	Level  string `envconfig:"FINBOT_LOG_LEVEL" default:"info"`
	Format string `envconfig:"FINBOT_LOG_FORMAT" default:"text"`
}

// Load reads envFile (when it exists) into the environment and then
// processes the FINBOT_ variables. A missing envFile is not an error.
func Load(envFile string) (Env, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("process environment: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Env{}, err
	}
	return env, nil
}

// Validate reports every invalid setting at once.
func (e Env) Validate() error {
	var errs []error
	switch e.Store.Kind {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("FINBOT_STORE: unknown backend %q", e.Store.Kind))
	}
	if e.Conversation.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("FINBOT_HISTORY_SIZE: must be at least 1, got %d", e.Conversation.HistorySize))
	}
	if e.Conversation.NodeTimeout <= 0 {
		errs = append(errs, errors.New("FINBOT_NODE_TIMEOUT: must be positive"))
	}
	if e.Conversation.TurnTimeout <= 0 {
		errs = append(errs, errors.New("FINBOT_TURN_TIMEOUT: must be positive"))
	}
	if e.Conversation.SearchTopK < 1 {
		errs = append(errs, fmt.Errorf("FINBOT_SEARCH_TOP_K: must be at least 1, got %d", e.Conversation.SearchTopK))
	}
	if e.Anthropic.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("FINBOT_MAX_TOKENS: must be at least 1, got %d", e.Anthropic.MaxTokens))
	}
	return errors.Join(errs...)
}

// NewClient connects to Redis and verifies the connection with a PING.
func (r RedisConfig) NewClient(ctx context.Context) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", r.Addr, err)
	}
	return client, nil
}
