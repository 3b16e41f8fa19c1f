package config

import (
	"errors"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal       = "local"
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port              string   `env:"PORT" env-default:"3000" env-description:"HTTP listen port"`
	Environment       string   `env:"ENVIRONMENT" env-default:"development" env-description:"local, development or production"`
	AllowedOrigins    []string `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000" env-description:"origins allowed to open the signaling socket"`
	AssetsDir         string   `env:"ASSETS_DIR" env-default:"client" env-description:"client bundle directory"`
	ModelsDir         string   `env:"MODELS_DIR" env-default:"client/models" env-description:"face-expression model directory served at /models"`
	OutboxSize        int      `env:"OUTBOX_SIZE" env-default:"256" env-description:"frames buffered per connection"`
	OperatorJWTSecret string   `env:"OPERATOR_JWT_SECRET" env-description:"enables the operator room listing when set"`
	SignalingURL      string   `env:"SIGNALING_URL" env-default:"ws://localhost:3000/ws" env-description:"signaling endpoint used by the terminal client"`
	Redis             RedisConfig
	ICE               ICEConfig
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-description:"enables the presence mirror when set"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for program entry points.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("cannot load config: " + err.Error())
	}
	return cfg
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	switch c.Environment {
	case EnvLocal, EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("ENVIRONMENT: unknown value %q", c.Environment)
	}
	if c.OutboxSize <= 0 {
		return fmt.Errorf("OUTBOX_SIZE must be positive, got %d", c.OutboxSize)
	}
	if _, err := c.ICE.Servers(); err != nil {
		return err
	}
	return nil
}
