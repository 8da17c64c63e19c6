// Package config loads service configuration from YAML files and
// environment variables. Environment variables take precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config is the full configuration tree for a service.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	Integrations IntegrationsConfig `mapstructure:"integrations"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name" envconfig:"SERVICE_NAME"`
	Environment string `mapstructure:"environment" envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	Version     string `mapstructure:"version" envconfig:"SERVICE_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Host            string        `mapstructure:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port            int           `mapstructure:"port" envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" envconfig:"HTTP_WRITE_TIMEOUT" default:"0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" envconfig:"DB_HOST" default:"localhost"`
	Port            int           `mapstructure:"port" envconfig:"DB_PORT" default:"5432"`
	User            string        `mapstructure:"user" envconfig:"DB_USER" default:"postgres"`
	Password        string        `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name            string        `mapstructure:"name" envconfig:"DB_NAME" default:"flowbase"`
	SSLMode         string        `mapstructure:"ssl_mode" envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

// DSN builds a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string        `mapstructure:"host" envconfig:"REDIS_HOST" default:"localhost"`
	Port     int           `mapstructure:"port" envconfig:"REDIS_PORT" default:"6379"`
	Password string        `mapstructure:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `mapstructure:"db" envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `mapstructure:"ttl" envconfig:"REDIS_TTL" default:"5m"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled" envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `mapstructure:"brokers" envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `mapstructure:"topic" envconfig:"KAFKA_TOPIC" default:"flowbase.executions"`
}

// EngineConfig bounds workflow traversal.
type EngineConfig struct {
	DefaultMaxIterations int           `mapstructure:"default_max_iterations" envconfig:"ENGINE_DEFAULT_MAX_ITERATIONS" default:"500"`
	MaxDepth             int           `mapstructure:"max_depth" envconfig:"ENGINE_MAX_DEPTH" default:"10"`
	NodeTimeout          time.Duration `mapstructure:"node_timeout" envconfig:"ENGINE_NODE_TIMEOUT" default:"5m"`
	StreamBufferSize     int           `mapstructure:"stream_buffer_size" envconfig:"ENGINE_STREAM_BUFFER_SIZE" default:"256"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format string `mapstructure:"format" envconfig:"LOG_FORMAT" default:"json"`
}

// IntegrationsConfig holds credentials for built-in node executors.
type IntegrationsConfig struct {
	OpenAIAPIKey string `mapstructure:"openai_api_key" envconfig:"OPENAI_API_KEY"`
}

type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" envconfig:"TELEMETRY_ENABLED" default:"false"`
	JaegerURL  string  `mapstructure:"jaeger_url" envconfig:"TELEMETRY_JAEGER_URL" default:"http://localhost:14268/api/traces"`
	SampleRate float64 `mapstructure:"sample_rate" envconfig:"TELEMETRY_SAMPLE_RATE" default:"1.0"`
}

// Load reads config/<serviceName>.yaml if present, then overlays
// environment variables.
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("/etc/flowbase")

	v.SetEnvPrefix("FLOWBASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.Service.Name == "" {
		cfg.Service.Name = serviceName
	}
	return cfg, nil
}
