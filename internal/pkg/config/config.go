package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

type Config struct {
	Server     Server        `yaml:"server"`
	Logger     logger.Config `yaml:"logger"`
	PostgresDB PostgresDB    `yaml:"db"`
	Auth       Auth          `yaml:"auth"`
	Cache      Cache         `yaml:"cache"`
	Tasks      Tasks         `yaml:"tasks"`
	Otel       Otel          `yaml:"otel"`
	Email      Email         `yaml:"email"`
	RateLimit  RateLimit     `yaml:"rateLimit"`
	Frontend   Frontend      `yaml:"frontend"`
	Flags      []string      `env:"FEATURE_FLAGS" yaml:"flags"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	CORSOrigins  []string      `yaml:"corsOrigins"`
}

type PostgresDB struct {
	URL     string `env:"DATABASE_URL" env-required:"true" yaml:"url"`
	Reload  bool   `yaml:"reload"`
	Version int    `yaml:"version"`
}

type Auth struct {
	Secret          string        `env:"SECRET" env-required:"true" yaml:"secret"`
	AccessTTL       time.Duration `yaml:"accessTTL"`
	RefreshTTL      time.Duration `yaml:"refreshTTL"`
	VerificationTTL time.Duration `yaml:"verificationTTL"`
	ResetTTL        time.Duration `yaml:"resetTTL"`
}

type Cache struct {
	URL string        `env:"CACHE_URL" yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

type Tasks struct {
	AlwaysEager bool          `env:"TASK_ALWAYS_EAGER" yaml:"alwaysEager"`
	BrokerURL   string        `env:"TASK_BROKER_URL" yaml:"brokerURL"`
	ResultTTL   time.Duration `env:"TASK_RESULT_TTL" yaml:"resultTTL"`
	Concurrency int           `yaml:"concurrency"`
}

type Otel struct {
	Enabled     bool   `env:"OTEL_ENABLED" yaml:"enabled"`
	ServiceName string `env:"OTEL_RESOURCE_SERVICE_NAME" yaml:"serviceName"`
	Environment string `env:"OTEL_RESOURCE_ENVIRONMENT" yaml:"environment"`
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"endpoint"`
	Insecure    bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" yaml:"insecure"`
	Headers     string `env:"OTEL_EXPORTER_OTLP_HEADERS" yaml:"headers"`
}

type Email struct {
	Sender string `env:"EMAIL_SENDER" yaml:"sender"`
	From   string `yaml:"from"`
	SMTP   SMTP   `yaml:"smtp"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `env:"SMTP_USERNAME" yaml:"username"`
	Password string `env:"SMTP_PASSWORD" yaml:"password"`
	SSL      bool   `yaml:"ssl"`
	StartTLS bool   `yaml:"startTLS"`
}

type RateLimit struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type Frontend struct {
	BaseURL string `yaml:"baseURL"`
}

func New(configPath string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return Config{}, fmt.Errorf("read config error: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Cache.URL == "" {
		c.Cache.URL = "memory://"
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Minute * 5
	}

	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = time.Minute * 5
	}

	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = time.Hour * 24
	}

	if c.Auth.VerificationTTL == 0 {
		c.Auth.VerificationTTL = time.Hour * 24
	}

	if c.Auth.ResetTTL == 0 {
		c.Auth.ResetTTL = time.Hour
	}

	if c.Tasks.Concurrency == 0 {
		c.Tasks.Concurrency = 10
	}

	if c.Tasks.ResultTTL == 0 {
		c.Tasks.ResultTTL = time.Hour * 24
	}

	if c.Otel.ServiceName == "" {
		c.Otel.ServiceName = "backend"
	}

	if c.Otel.Environment == "" {
		c.Otel.Environment = "development"
	}

	if c.Email.Sender == "" {
		c.Email.Sender = "local"
	}

	if c.Email.From == "" {
		c.Email.From = "from@example.com"
	}

	if c.Frontend.BaseURL == "" {
		c.Frontend.BaseURL = "http://localhost:3000"
	}
}
