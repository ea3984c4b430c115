// Package config loads service configuration from a YAML file and
// ATTEST_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Records    RecordsConfig    `mapstructure:"records"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	JWTSigningKey   string        `mapstructure:"jwt_signing_key" validate:"required,min=16"`
	JWTIssuer       string        `mapstructure:"jwt_issuer" validate:"required"`
	JWTAudience     string        `mapstructure:"jwt_audience" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// TriggerConfig is an alert trigger; a "re:" prefix makes Pattern a regular expression.
type TriggerConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Pattern  string `mapstructure:"pattern" validate:"required"`
	Severity string `mapstructure:"severity" validate:"omitempty,oneof=info low medium high critical"`
}

type RecordsConfig struct {
	CategoryCap int             `mapstructure:"category_cap" validate:"gt=0"`
	MirrorQueue int             `mapstructure:"mirror_queue" validate:"gt=0"`
	Triggers    []TriggerConfig `mapstructure:"triggers" validate:"dive"`
}

type AuditConfig struct {
	BufferCap int `mapstructure:"buffer_cap" validate:"gt=1"`
}

// RetentionConfig overrides the built-in retention windows, in days.
type RetentionConfig struct {
	CleanupInterval time.Duration  `mapstructure:"cleanup_interval" validate:"gt=0"`
	LevelDays       map[string]int `mapstructure:"level_days"`
	CategoryDays    map[string]int `mapstructure:"category_days"`
	FingerprintKey  string         `mapstructure:"fingerprint_key"`
}

type ComplianceConfig struct {
	CatalogFile     string             `mapstructure:"catalog_file"`
	BuiltinProbes   bool               `mapstructure:"builtin_probes"`
	ProbeTimeout    time.Duration      `mapstructure:"probe_timeout" validate:"gt=0"`
	EvidenceWindow  time.Duration      `mapstructure:"evidence_window" validate:"gt=0"`
	MonitorInterval time.Duration      `mapstructure:"monitor_interval" validate:"gt=0"`
	SummaryInterval time.Duration      `mapstructure:"summary_interval" validate:"gt=0"`
	AutomatedWeight float64            `mapstructure:"automated_weight" validate:"gte=0,lte=1"`
	CategoryWeights map[string]float64 `mapstructure:"category_weights" validate:"dive,gte=0,lte=1"`
}

// PostgresConfig enables the durable record mirror when URL is set.
type PostgresConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RestoreWindow   time.Duration `mapstructure:"restore_window"`
}

// RedisConfig enables the Redis notification sink when URL is set.
type RedisConfig struct {
	URL           string        `mapstructure:"url"`
	PoolSize      int           `mapstructure:"pool_size"`
	MinIdleConns  int           `mapstructure:"min_idle_conns"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
}

// KafkaConfig enables the Kafka notification sink when Brokers is set.
type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic" validate:"required_with=Brokers"`
	Partitions        int32    `mapstructure:"partitions"`
	ReplicationFactor int16    `mapstructure:"replication_factor"`
}

// ArchiveConfig enables S3 archiving before retention purge when Bucket is set.
type ArchiveConfig struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region" validate:"required_with=Bucket"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	// Use a default for development - should be overridden in production
	v.SetDefault("server.jwt_signing_key", "dev-secret-key-change-in-production")
	v.SetDefault("server.jwt_issuer", "attest")
	v.SetDefault("server.jwt_audience", "attest-admin")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("records.category_cap", 10000)
	v.SetDefault("records.mirror_queue", 1024)
	v.SetDefault("records.triggers", []TriggerConfig{})

	v.SetDefault("audit.buffer_cap", 50000)

	v.SetDefault("retention.cleanup_interval", "24h")
	v.SetDefault("retention.level_days", map[string]int{})
	v.SetDefault("retention.category_days", map[string]int{})
	v.SetDefault("retention.fingerprint_key", "")

	v.SetDefault("compliance.catalog_file", "")
	v.SetDefault("compliance.builtin_probes", true)
	v.SetDefault("compliance.probe_timeout", "5s")
	v.SetDefault("compliance.evidence_window", "720h")
	v.SetDefault("compliance.monitor_interval", "1h")
	v.SetDefault("compliance.summary_interval", "24h")
	v.SetDefault("compliance.automated_weight", 0.5)
	v.SetDefault("compliance.category_weights", map[string]float64{})

	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", "30m")
	v.SetDefault("postgres.restore_window", "720h")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.channel_prefix", "attest:notifications")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "attest.notifications")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication_factor", 1)

	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "attest/archive")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.use_path_style", false)
}

// Load reads configuration. An empty path looks for config.yaml in ./configs
// and the working directory; a missing file is not an error.
// Environment variables override file values, e.g. ATTEST_SERVER_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ATTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
