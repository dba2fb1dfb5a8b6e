// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxConcurrentTasks = 4
	DefaultVideoNoteSize      = 480
	DefaultMaxVideoDuration   = 60
	DefaultMaxFileSize        = 20 * 1024 * 1024
	DefaultTempDir            = "/tmp/bot_files"
	DefaultTempMaxAge         = 6 * time.Hour
	DefaultTempSweepInterval  = 30 * time.Minute
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Workers  int     `yaml:"workers"` // polling workers
	Language string  `yaml:"language"`
	AdminIDs []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ConversionConfig struct {
	MaxConcurrentTasks int    `yaml:"max_concurrent_tasks"`
	VideoNoteSize      int    `yaml:"video_note_size"`
	MaxVideoDuration   int    `yaml:"max_video_duration"` // seconds
	MaxFileSize        int64  `yaml:"max_file_size"`      // bytes
	TempDir            string `yaml:"temp_dir"`
	FFmpegPath         string `yaml:"ffmpeg_path"`
	FFprobePath        string `yaml:"ffprobe_path"`
	// Zero means wait forever.
	GateWaitTimeout time.Duration `yaml:"gate_wait_timeout"`
	ToolTimeout     time.Duration `yaml:"tool_timeout"`
	// Leftover scratch files older than TempMaxAge are swept every TempSweepInterval.
	TempMaxAge        time.Duration `yaml:"temp_max_age"`
	TempSweepInterval time.Duration `yaml:"temp_sweep_interval"`
}

type StateConfig struct {
	Backend string `yaml:"backend"` // memory | redis | postgres
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // 0 keeps modes until reset
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables the admin server
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Log        LogConfig        `yaml:"log"`
	Conversion ConversionConfig `yaml:"conversion"`
	State      StateConfig      `yaml:"state"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	HTTP       HTTPConfig       `yaml:"http"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file is allowed), loads
// .env if present and then applies environment overrides and defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "ru"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	c := &cfg.Conversion
	if c.MaxConcurrentTasks == 0 {
		c.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if c.VideoNoteSize == 0 {
		c.VideoNoteSize = DefaultVideoNoteSize
	}
	if c.MaxVideoDuration == 0 {
		c.MaxVideoDuration = DefaultMaxVideoDuration
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.TempDir == "" {
		c.TempDir = DefaultTempDir
	}
	if c.TempMaxAge <= 0 {
		c.TempMaxAge = DefaultTempMaxAge
	}
	if c.TempSweepInterval <= 0 {
		c.TempSweepInterval = DefaultTempSweepInterval
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = "memory"
	}
	cfg.State.Backend = strings.ToLower(strings.TrimSpace(cfg.State.Backend))
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 20
	}
}

// Validate checks the minimal invariants the process needs to start.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required")
	}
	conv := c.Conversion
	if conv.MaxConcurrentTasks < 1 {
		return errors.New("conversion.max_concurrent_tasks must be positive")
	}
	if conv.VideoNoteSize < 1 {
		return errors.New("conversion.video_note_size must be positive")
	}
	if conv.MaxVideoDuration < 1 {
		return errors.New("conversion.max_video_duration must be positive")
	}
	if conv.MaxFileSize < 1 {
		return errors.New("conversion.max_file_size must be positive")
	}
	if conv.GateWaitTimeout < 0 || conv.ToolTimeout < 0 {
		return errors.New("conversion timeouts must not be negative")
	}
	switch c.State.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for state.backend=redis")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for state.backend=postgres")
		}
	default:
		return fmt.Errorf("unknown state.backend %q", c.State.Backend)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("BOT_TOKEN", &cfg.Bot.Token)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("TEMP_DIR", &cfg.Conversion.TempDir)
	str("STATE_BACKEND", &cfg.State.Backend)
	str("REDIS_URL", &cfg.Redis.URL)
	str("DATABASE_URL", &cfg.Database.URL)

	if err := num("MAX_CONCURRENT_TASKS", &cfg.Conversion.MaxConcurrentTasks); err != nil {
		return err
	}
	if err := num("VIDEO_NOTE_SIZE", &cfg.Conversion.VideoNoteSize); err != nil {
		return err
	}
	if err := num("MAX_VIDEO_DURATION", &cfg.Conversion.MaxVideoDuration); err != nil {
		return err
	}
	if err := num("HTTP_PORT", &cfg.HTTP.Port); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("MAX_FILE_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("env MAX_FILE_SIZE: %w", err)
		}
		cfg.Conversion.MaxFileSize = n
	}
	return nil
}
