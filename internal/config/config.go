package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/router"
	"github.com/nulzo/prism-relay/internal/transport"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Log       LogConfig                 `mapstructure:"log"`
	Relay     RelayConfig               `mapstructure:"relay"`
	Engine    EngineConfig              `mapstructure:"engine"`
	Routing   RoutingConfig             `mapstructure:"routing"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Redis     RedisConfig               `mapstructure:"redis"`
	RateLimit RateLimitConfig           `mapstructure:"rate_limit"`
	Store     StoreConfig               `mapstructure:"store"`
	Tracing   TracingConfig             `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	Env             string        `mapstructure:"env"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CheckUpdates    bool          `mapstructure:"check_updates"`
	ReleaseURL      string        `mapstructure:"release_url" validate:"omitempty,url"`
	// DebugAddr serves expvar when set, e.g. "127.0.0.1:6060".
	DebugAddr string `mapstructure:"debug_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error fatal"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// RelayConfig points the client side at a deployed relay host. An empty BaseURL
// disables the relay tiers and every call goes direct.
type RelayConfig struct {
	BaseURL   string               `mapstructure:"base_url" validate:"omitempty,url"`
	Endpoints []transport.Endpoint `mapstructure:"endpoints" validate:"dive"`
	Timeout   time.Duration        `mapstructure:"timeout"`
}

type EngineConfig struct {
	AttemptTimeout    time.Duration `mapstructure:"attempt_timeout"`
	DefaultSystemRole string        `mapstructure:"default_system_role"`
}

type RoutingConfig struct {
	LongPromptThreshold int      `mapstructure:"long_prompt_threshold" validate:"gte=0"`
	StructureMarkers    []string `mapstructure:"structure_markers"`
}

// ProviderConfig overrides the built-in settings of one provider. APIKey may be a
// literal or "ENV:NAME" to read it from the environment.
type ProviderConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoadConfig reads configuration from file or environment variables.
// CONFIG_FILE names an explicit file; otherwise config.yaml is searched for.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	// Resolve API Keys
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	defaults := llm.Defaults()
	for _, id := range llm.Known {
		p := cfg.Providers[string(id)]
		p.APIKey = resolveCredential(v, p.APIKey, defaults[id].CredentialKey)
		cfg.Providers[string(id)] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.check_updates", false)
	v.SetDefault("server.release_url", "")
	v.SetDefault("server.debug_addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("relay.base_url", "")
	endpoints := make([]map[string]string, 0, len(transport.DefaultEndpoints))
	for _, e := range transport.DefaultEndpoints {
		endpoints = append(endpoints, map[string]string{"name": e.Name, "path": e.Path})
	}
	v.SetDefault("relay.endpoints", endpoints)
	v.SetDefault("relay.timeout", "60s")

	v.SetDefault("engine.attempt_timeout", "30s")
	v.SetDefault("engine.default_system_role", "You are a helpful AI assistant.")

	v.SetDefault("routing.long_prompt_threshold", router.DefaultLongPromptThreshold)
	v.SetDefault("routing.structure_markers", []string{"JSON", "structure"})

	// registering every provider key lets PROVIDERS_<ID>_MODEL style overrides apply
	for _, id := range llm.Known {
		prefix := "providers." + string(id) + "."
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"endpoint", "")
		v.SetDefault(prefix+"timeout", "0s")
	}

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.dsn", "file:relay.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "prism-relay")
}

// resolveCredential applies, in order: ENV: indirection, a literal value, the
// provider's credential variable, then its VITE_ prefixed variant.
func resolveCredential(v *viper.Viper, configured, envKey string) string {
	if name, ok := strings.CutPrefix(configured, "ENV:"); ok {
		// Check process environment first (explicit override)
		if val := os.Getenv(name); val != "" {
			return val
		}
		return v.GetString(name)
	}
	if configured != "" {
		return configured
	}
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return os.Getenv("VITE_" + envKey)
}

// Validate checks field constraints and rejects provider sections for unknown providers.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for key := range c.Providers {
		if _, err := llm.ParseProviderID(key); err != nil {
			return fmt.Errorf("invalid configuration: providers.%s: %w", key, err)
		}
	}
	return nil
}

// Catalog merges the configured overrides onto the built-in provider settings.
func (c *Config) Catalog() llm.Catalog {
	catalog := llm.Defaults()
	for id, base := range catalog {
		override := c.Providers[string(id)]
		if override.Model != "" {
			base.Model = override.Model
		}
		if override.Endpoint != "" {
			base.Endpoint = override.Endpoint
		}
		if override.Timeout > 0 {
			base.Timeout = override.Timeout
		}
		if base.Timeout <= 0 {
			base.Timeout = c.Engine.AttemptTimeout
		}
		base.APIKey = override.APIKey
		catalog[id] = base
	}
	return catalog
}

// Policy builds the routing policy from the routing section.
func (c *Config) Policy() router.Policy {
	policy := router.DefaultPolicy()
	if c.Routing.LongPromptThreshold > 0 {
		policy.LongPromptThreshold = c.Routing.LongPromptThreshold
	}
	if len(c.Routing.StructureMarkers) > 0 {
		policy.StructureMarkers = append([]string(nil), c.Routing.StructureMarkers...)
	}
	return policy
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
