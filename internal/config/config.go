package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Token string `mapstructure:"token"`
}

type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type S3Config struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
}

type SyncConfig struct {
	TypingQuietSeconds int   `mapstructure:"typing_quiet_seconds"`
	TypingDecaySeconds int   `mapstructure:"typing_decay_seconds"`
	RetryDelaySeconds  int   `mapstructure:"retry_delay_seconds"`
	MaxFileSizeBytes   int64 `mapstructure:"max_file_size_bytes"`
	PreviewWidthPixels int   `mapstructure:"preview_width_pixels"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	API   APIConfig   `mapstructure:"api"`
	Redis RedisConfig `mapstructure:"redis"`
	S3    S3Config    `mapstructure:"s3"`
	Sync  SyncConfig  `mapstructure:"sync"`

	// derived
	APITimeout  time.Duration
	TypingQuiet time.Duration
	TypingDecay time.Duration
	RetryDelay  time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("BAIL")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = 15
	}
	if c.Sync.TypingQuietSeconds == 0 {
		c.Sync.TypingQuietSeconds = 3
	}
	if c.Sync.TypingDecaySeconds == 0 {
		c.Sync.TypingDecaySeconds = 3
	}
	if c.Sync.RetryDelaySeconds == 0 {
		c.Sync.RetryDelaySeconds = 3
	}
	if c.Sync.MaxFileSizeBytes == 0 {
		c.Sync.MaxFileSizeBytes = 10 << 20
	}
	if c.Sync.PreviewWidthPixels == 0 {
		c.Sync.PreviewWidthPixels = 320
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "bail"
	}

	c.APITimeout = time.Duration(c.API.TimeoutSeconds) * time.Second
	c.TypingQuiet = time.Duration(c.Sync.TypingQuietSeconds) * time.Second
	c.TypingDecay = time.Duration(c.Sync.TypingDecaySeconds) * time.Second
	c.RetryDelay = time.Duration(c.Sync.RetryDelaySeconds) * time.Second
	return &c, nil
}
