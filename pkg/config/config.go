// Package config loads NimbusStore configuration from a YAML file, the
// environment, and defaults, in that order of precedence (environment
// overrides file, file overrides defaults).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the static configuration of the NimbusStore server.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metadata configures the metadata engine.
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// ChunkStore selects and configures the chunk store backend.
	ChunkStore ChunkStoreConfig `mapstructure:"chunkstore" yaml:"chunkstore"`

	// Gateway configures the S3 HTTP gateway.
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig controls tracing and profiling.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetadataConfig configures the metadata engine.
type MetadataConfig struct {
	// DataDir is where the Badger KV store lives.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// InodeRangeEnd bounds the single partition's inode range [1, end).
	InodeRangeEnd uint64 `mapstructure:"inode_range_end" yaml:"inode_range_end"`

	// SyncWrites forces commits to stable storage. Default true.
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// ChunkStoreConfig selects the chunk store backend.
type ChunkStoreConfig struct {
	// Type is one of "filesystem", "s3", "memory".
	Type string `mapstructure:"type" yaml:"type"`

	Filesystem FilesystemChunkConfig `mapstructure:"filesystem" yaml:"filesystem"`
	S3         S3ChunkConfig         `mapstructure:"s3" yaml:"s3"`
}

// FilesystemChunkConfig configures the filesystem chunk store.
type FilesystemChunkConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// S3ChunkConfig configures the S3 chunk store.
type S3ChunkConfig struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey      string `mapstructure:"secret_key" yaml:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// GatewayConfig configures the S3 HTTP gateway.
type GatewayConfig struct {
	Host          string `mapstructure:"host" yaml:"host"`
	Port          int    `mapstructure:"port" yaml:"port"`
	Owner         string `mapstructure:"owner" yaml:"owner"`
	Region        string `mapstructure:"region" yaml:"region"`
	DefaultBucket string `mapstructure:"default_bucket" yaml:"default_bucket"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Metadata: MetadataConfig{
			DataDir:       defaultDataDir(),
			InodeRangeEnd: 1 << 40,
			SyncWrites:    true,
		},
		ChunkStore: ChunkStoreConfig{
			Type: "filesystem",
			Filesystem: FilesystemChunkConfig{
				Path: filepath.Join(defaultDataDir(), "chunks"),
			},
			S3: S3ChunkConfig{
				Region:    "us-east-1",
				KeyPrefix: "chunks/",
			},
		},
		Gateway: GatewayConfig{
			Host:          "0.0.0.0",
			Port:          9000,
			Owner:         "nimbus",
			Region:        "us-east-1",
			DefaultBucket: "default",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "nimbus")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/nimbus"
	}
	return filepath.Join(home, ".local", "share", "nimbus")
}

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "nimbus", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/nimbus/config.yaml"
	}
	return filepath.Join(home, ".config", "nimbus", "config.yaml")
}

// Load reads the configuration. A missing file is not an error: defaults
// plus environment apply. Environment variables use the NIMBUS_ prefix with
// underscores for nesting (NIMBUS_GATEWAY_PORT, NIMBUS_LOGGING_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("NIMBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config %q: %w", path, err)
			}
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every field of the default config so viper knows
// the full key set for env binding.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)

	v.SetDefault("telemetry.enabled", def.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", def.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", def.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", def.Telemetry.SampleRate)
	v.SetDefault("telemetry.profiling.enabled", def.Telemetry.Profiling.Enabled)
	v.SetDefault("telemetry.profiling.endpoint", def.Telemetry.Profiling.Endpoint)

	v.SetDefault("metadata.data_dir", def.Metadata.DataDir)
	v.SetDefault("metadata.inode_range_end", def.Metadata.InodeRangeEnd)
	v.SetDefault("metadata.sync_writes", def.Metadata.SyncWrites)

	v.SetDefault("chunkstore.type", def.ChunkStore.Type)
	v.SetDefault("chunkstore.filesystem.path", def.ChunkStore.Filesystem.Path)
	v.SetDefault("chunkstore.s3.bucket", def.ChunkStore.S3.Bucket)
	v.SetDefault("chunkstore.s3.region", def.ChunkStore.S3.Region)
	v.SetDefault("chunkstore.s3.endpoint", def.ChunkStore.S3.Endpoint)
	v.SetDefault("chunkstore.s3.key_prefix", def.ChunkStore.S3.KeyPrefix)
	v.SetDefault("chunkstore.s3.force_path_style", def.ChunkStore.S3.ForcePathStyle)

	v.SetDefault("gateway.host", def.Gateway.Host)
	v.SetDefault("gateway.port", def.Gateway.Port)
	v.SetDefault("gateway.owner", def.Gateway.Owner)
	v.SetDefault("gateway.region", def.Gateway.Region)
	v.SetDefault("gateway.default_bucket", def.Gateway.DefaultBucket)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.host", def.Metrics.Host)
	v.SetDefault("metrics.port", def.Metrics.Port)

	v.SetDefault("shutdown_timeout", def.ShutdownTimeout)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.ChunkStore.Type {
	case "filesystem", "s3", "memory":
	default:
		return fmt.Errorf("invalid chunkstore type %q (want filesystem, s3, or memory)", c.ChunkStore.Type)
	}

	if c.ChunkStore.Type == "s3" && c.ChunkStore.S3.Bucket == "" {
		return fmt.Errorf("chunkstore.s3.bucket is required for the s3 chunk store")
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port %d", c.Gateway.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port %d", c.Metrics.Port)
	}
	if c.Metadata.InodeRangeEnd < 2 {
		return fmt.Errorf("metadata.inode_range_end must leave room above the root inode")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

// WriteSample writes the default configuration as YAML at path, creating
// parent directories. It refuses to overwrite unless force is set.
func WriteSample(path string, force bool) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %q already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
