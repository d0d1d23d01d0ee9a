package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Defaults applied when the config file and environment leave a knob unset.
const (
	DefaultTTL                  = 5 * time.Minute
	DefaultCompressionThreshold = 1024
	DefaultL1MaxEntries         = 10000
	DefaultL1TTL                = time.Minute
)

type Config struct {
	BackingStoreURL      string `mapstructure:"backing_store_url"`
	KeyPrefix            string `mapstructure:"key_prefix"`
	DefaultTTL           string `mapstructure:"default_ttl"`           // Go duration string like "5m", "1h", etc.
	CompressionThreshold int    `mapstructure:"compression_threshold"` // bytes; payloads above this are compressed
	CompressionCodec     string `mapstructure:"compression_codec"`     // "gzip", "zstd" or "brotli"
	L1                   struct {
		MaxEntries int    `mapstructure:"max_entries"` // Maximum number of entries in the LRU cache
		TTL        string `mapstructure:"ttl"`         // Go duration string like "1m", "30s", etc.
	} `mapstructure:"l1"`
	LogLevel string `mapstructure:"log_level"`
	Metrics  struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
}

var (
	globalConfig *Config
	logger       zerolog.Logger
)

func init() {
	// Initialize zerolog with console writer for human-readable output
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stdout,
		NoColor: false,
	}).With().Timestamp().Logger()

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	// Parse and set log level from config
	level := zerolog.InfoLevel // default
	if config.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", config.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	// Set the global log level
	zerolog.SetGlobalLevel(level)

	// Update logger with the configured level
	logger = logger.Level(level)

	globalConfig = config
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variable support
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Add specific environment variable for log level
	_ = viper.BindEnv("log_level", "LOG_LEVEL")

	// Set defaults
	viper.SetDefault("backing_store_url", "redis://localhost:6379/0")
	viper.SetDefault("key_prefix", "tiercache:")
	viper.SetDefault("default_ttl", DefaultTTL.String())
	viper.SetDefault("compression_threshold", DefaultCompressionThreshold)
	viper.SetDefault("compression_codec", "gzip")
	viper.SetDefault("l1.max_entries", DefaultL1MaxEntries)
	viper.SetDefault("l1.ttl", DefaultL1TTL.String())
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.port", 9090)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func GetConfig() *Config {
	return globalConfig
}

func GetLogger() zerolog.Logger {
	return logger
}

// ParseTTL converts a config duration string to a time.Duration, falling back
// to def when the string is empty or malformed.
func ParseTTL(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
