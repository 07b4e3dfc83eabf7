package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Agent     AgentConfig
	Embedding EmbeddingConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Server    ServerConfig
	Log       LogConfig
}

// AgentConfig identifies the namespace every memory operation is scoped to.
// It is immutable after Load; business logic never reads the environment.
type AgentConfig struct {
	ID       string
	UserName string
}

// Namespace returns the store-level namespace label for this agent.
func (c AgentConfig) Namespace() string {
	return "agent_" + c.ID
}

type EmbeddingConfig struct {
	URL        string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig controls the optional embedding cache. The cache is off unless
// Enabled is set.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig controls optional lifecycle event publishing. An empty URL
// disables events.
type NATSConfig struct {
	URL string
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Agent: AgentConfig{
			ID:       k.String("agent.id"),
			UserName: k.String("agent.user.name"),
		},
		Embedding: EmbeddingConfig{
			URL:        k.String("embedding.url"),
			Model:      k.String("embedding.model"),
			Dimensions: k.Int("embedding.dimensions"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Enabled:  k.Bool("redis.enabled"),
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("server.cors.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, o)
			}
		}
	}

	// Apply defaults
	if cfg.Agent.ID == "" {
		cfg.Agent.ID = "fork-main"
	}
	if cfg.Embedding.URL == "" {
		cfg.Embedding.URL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "membridge"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "membridge"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	embedTimeout := k.String("embedding.timeout")
	if embedTimeout == "" {
		embedTimeout = "30s"
	}
	cfg.Embedding.Timeout, err = time.ParseDuration(embedTimeout)
	if err != nil {
		return nil, fmt.Errorf("parsing embedding timeout: %w", err)
	}

	cacheTTL := k.String("redis.cache.ttl")
	if cacheTTL == "" {
		cacheTTL = "24h"
	}
	cfg.Redis.CacheTTL, err = time.ParseDuration(cacheTTL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis cache ttl: %w", err)
	}

	return cfg, nil
}
