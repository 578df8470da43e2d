// Package config loads application configuration with viper.
//
// Configuration comes from a YAML file (configs/config.yaml by default)
// with environment-variable overrides prefixed EDBOT_ (dots become
// underscores, e.g. EDBOT_LLM_API_KEY overrides llm.api_key). Secrets —
// the LLM key, the payment provider token, the operator password hash —
// are expected to arrive through the environment in production.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sakif/editorial-bot/internal/model"
)

// Config is the root configuration, mirroring the YAML layout.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Operator OperatorConfig `mapstructure:"operator"`
	Tariffs  []model.Tariff `mapstructure:"tariffs"`
	Roles    []model.Role   `mapstructure:"roles"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SessionConfig selects where per-user conversational state lives.
// Backend is "memory" (default, lost on restart — users are re-prompted)
// or "redis" for surviving restarts.
type SessionConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LimitsConfig holds the analysis gate ceilings and the outbound reply
// chunk size.
type LimitsConfig struct {
	MaxTextChars  int `mapstructure:"max_text_chars"`
	MaxTokens     int `mapstructure:"max_tokens"`
	ReplyChunkLen int `mapstructure:"reply_chunk_len"`
}

type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PaymentConfig struct {
	Token          string        `mapstructure:"token"`
	ReceiverWallet string        `mapstructure:"receiver_wallet"`
	TokenNamespace string        `mapstructure:"token_namespace"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// OperatorConfig guards the ops endpoints. PasswordHash is a bcrypt hash;
// generate one with e.g. htpasswd -bnBC 12 "" <password>.
type OperatorConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	PasswordHash string        `mapstructure:"password_hash"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// Load reads configuration from the given path (or configs/config.yaml when
// empty), applies env overrides and defaults, and unmarshals the result.
// A missing config file is fine — defaults plus environment are enough to
// run against local services.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("EDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			// An explicitly requested file must exist.
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		// Default search path: a missing file is fine, anything else is not.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if len(cfg.Tariffs) == 0 {
		cfg.Tariffs = defaultTariffs()
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = defaultRoles()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "data/bot.db")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.db", 0)

	v.SetDefault("limits.max_text_chars", 200000)
	v.SetDefault("limits.max_tokens", 60000)
	v.SetDefault("limits.reply_chunk_len", 4096)

	v.SetDefault("llm.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", "2m")

	v.SetDefault("payment.token_namespace", "edbot")
	v.SetDefault("payment.sweep_interval", "5m")

	v.SetDefault("operator.token_ttl", "15m")
}

// TariffByKey looks up a tariff in the catalog. Returns false for unknown
// keys — callers treat that as a validation failure, not a server fault.
func (c *Config) TariffByKey(key string) (model.Tariff, bool) {
	for _, t := range c.Tariffs {
		if t.Key == key {
			return t, true
		}
	}
	return model.Tariff{}, false
}

// RoleByKey looks up an analysis role in the catalog.
func (c *Config) RoleByKey(key string) (model.Role, bool) {
	for _, r := range c.Roles {
		if r.Key == key {
			return r, true
		}
	}
	return model.Role{}, false
}

func defaultTariffs() []model.Tariff {
	return []model.Tariff{
		{Key: "one", Price: 99, Credits: 1, Label: "1 analysis — 99₽"},
		{Key: "three", Price: 249, Credits: 3, Label: "3 analyses — 249₽"},
		{Key: "ten", Price: 699, Credits: 10, Label: "10 analyses — 699₽"},
	}
}

func defaultRoles() []model.Role {
	return []model.Role{
		{
			Key:  "beta_reader",
			Name: "Beta reader",
			Prompt: "You are an experienced beta reader. Assess the text as a first " +
				"reader would: overall impression, pacing, clarity, places where " +
				"attention drifts, and unanswered questions the text raises. Be " +
				"specific and quote short fragments when pointing at problems.",
		},
		{
			Key:  "proofreader",
			Name: "Proofreader",
			Prompt: "You are a meticulous proofreader. Find spelling, punctuation " +
				"and grammar mistakes in the text. List each finding with the " +
				"original fragment, the correction and a one-line explanation.",
		},
		{
			Key:  "editor",
			Name: "Editor",
			Prompt: "You are a professional literary editor. Review style, word " +
				"choice, sentence rhythm and structure. Suggest concrete rewrites " +
				"for weak passages and explain what each change improves.",
		},
	}
}
