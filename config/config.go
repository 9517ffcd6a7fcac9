package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"go.pilab.hu/deviceauth/client"
)

// StoreBackend selects the DeviceCodeStore implementation.
type StoreBackend string

const (
	StoreBackendMemory  StoreBackend = "memory"
	StoreBackendRedis   StoreBackend = "redis"
	StoreBackendMongoDB StoreBackend = "mongodb"
	StoreBackendBBolt   StoreBackend = "bbolt"
)

// Config holds all configuration for the device authorization server.
type Config struct {
	HTTPAddr  string `mapstructure:"http_addr"`
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
	AuditLog  bool   `mapstructure:"audit_log"`

	StoreBackend StoreBackend `mapstructure:"store_backend"`
	RedisAddr    string       `mapstructure:"redis_addr"`
	RedisPrefix  string       `mapstructure:"redis_prefix"`
	MongoURI     string       `mapstructure:"mongo_uri"`
	MongoDBName  string       `mapstructure:"mongo_db_name"`
	BBoltPath    string       `mapstructure:"bbolt_path"`

	DeviceCodeLifetime time.Duration `mapstructure:"device_code_lifetime"`
	DefaultInterval    int           `mapstructure:"default_interval"`
	VerificationPath   string        `mapstructure:"verification_path"`
	MaxCodeAttempts    int           `mapstructure:"max_code_attempts"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`

	OtelServiceName string `mapstructure:"otel_service_name"`

	// Clients seeds the in-memory client registry. Ignored by the mongodb backend,
	// which reads clients from its own collection.
	Clients []ClientConfig `mapstructure:"clients"`
}

// ClientConfig is a statically configured OAuth client.
type ClientConfig struct {
	ID              string   `mapstructure:"id"`
	SecretHash      string   `mapstructure:"secret_hash"`
	Name            string   `mapstructure:"name"`
	AllowedScopes   []string `mapstructure:"allowed_scopes"`
	VerificationURI string   `mapstructure:"verification_uri"`
	Interval        string   `mapstructure:"interval"`
}

// Client converts the entry to a registry client. Per-client overrides are kept
// as raw strings; the response builder decides whether they are usable.
func (c ClientConfig) Client() *client.Client {
	info := map[string]any{}
	if c.VerificationURI != "" {
		info[client.InfoDeviceVerificationURI] = c.VerificationURI
	}

	if c.Interval != "" {
		info[client.InfoDeviceInterval] = c.Interval
	}

	return &client.Client{
		ID:                    c.ID,
		SecretHash:            c.SecretHash,
		Name:                  c.Name,
		AllowedScopes:         c.AllowedScopes,
		AllowedGrantTypes:     []string{client.GrantTypeDeviceCode},
		AdditionalInformation: info,
	}
}

// RegistryClients returns the configured clients ready for client.NewMemoryStore.
func (c *Config) RegistryClients() []*client.Client {
	out := make([]*client.Client, 0, len(c.Clients))
	for _, cc := range c.Clients {
		out = append(out, cc.Client())
	}

	return out
}

// LoadConfig reads deviceauth.yaml, DEVICEAUTH_* environment variables and
// defaults. A non-empty path names the config file explicitly.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("deviceauth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/deviceauth/")
		v.AddConfigPath("$HOME/.deviceauth")
	}

	v.SetEnvPrefix("DEVICEAUTH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("http_addr", "0.0.0.0:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("audit_log", true)
	v.SetDefault("store_backend", string(StoreBackendMemory))
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_prefix", "deviceauth")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_db_name", "deviceauth")
	v.SetDefault("bbolt_path", "./data/deviceauth.db")
	v.SetDefault("device_code_lifetime", "600s")
	v.SetDefault("default_interval", 2)
	v.SetDefault("verification_path", "user_verify")
	v.SetDefault("max_code_attempts", 5)
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("otel_service_name", "deviceauth")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendMemory, StoreBackendRedis, StoreBackendMongoDB, StoreBackendBBolt:
	default:
		return fmt.Errorf("unknown store_backend %q", c.StoreBackend)
	}

	if c.DeviceCodeLifetime < time.Second {
		return fmt.Errorf("device_code_lifetime must be at least 1s, got %s", c.DeviceCodeLifetime)
	}

	if c.MaxCodeAttempts < 1 {
		return fmt.Errorf("max_code_attempts must be positive, got %d", c.MaxCodeAttempts)
	}

	for i, cl := range c.Clients {
		if cl.ID == "" {
			return fmt.Errorf("clients[%d]: id is required", i)
		}
	}

	return nil
}
