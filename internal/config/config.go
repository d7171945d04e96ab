// Package config holds the daemon configuration. Values come from the YAML
// file through viper, then TTSQUEUE_* environment variables override them.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/streamcore/ttsqueue/internal/audio"
	"github.com/streamcore/ttsqueue/internal/cache"
	"github.com/streamcore/ttsqueue/internal/chat"
	"github.com/streamcore/ttsqueue/internal/playback"
	"github.com/streamcore/ttsqueue/internal/settings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TTSQUEUE_"

// Config is the full daemon configuration.
type Config struct {
	Debug   bool   `yaml:"debug" env:"DEBUG"`
	LogFile string `yaml:"log_file" env:"LOGFILE"`
	// DataDir holds tts_config.json and the audio cache.
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`

	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Playback PlaybackConfig `yaml:"playback" envPrefix:"PLAYBACK_"`
	Chat     ChatConfig     `yaml:"chat" envPrefix:"CHAT_"`
	Render   RenderConfig   `yaml:"render" envPrefix:"RENDER_"`
	Cache    CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
}

// ServerConfig configures the panel API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// RedisConfig configures the collaborator transport. An empty Addr runs
// without a backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// PlaybackConfig configures the controller and the audio device.
type PlaybackConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	AdvanceDelay  time.Duration `yaml:"advance_delay" env:"ADVANCE_DELAY"`
	NotifyTimeout time.Duration `yaml:"notify_timeout" env:"NOTIFY_TIMEOUT"`
	QueueCapacity int           `yaml:"queue_capacity" env:"QUEUE_CAPACITY"`
	SampleRate    int           `yaml:"sample_rate" env:"SAMPLE_RATE"`
	BufferSize    int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
	WatchSettings bool          `yaml:"watch_settings" env:"WATCH_SETTINGS"`
}

// ChatConfig configures the chat command gate.
type ChatConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Command      string        `yaml:"command" env:"COMMAND"`
	Permission   string        `yaml:"permission" env:"PERMISSION"`
	BannedWords  []string      `yaml:"banned_words" env:"BANNED_WORDS" envSeparator:","`
	Template     string        `yaml:"template" env:"TEMPLATE"`
	UserCooldown time.Duration `yaml:"user_cooldown" env:"USER_COOLDOWN"`
}

// RenderConfig configures the render worker's synthesis.
type RenderConfig struct {
	Language          string `yaml:"language" env:"LANGUAGE"`
	RequestsPerMinute int    `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	GTTSPath          string `yaml:"gtts_path" env:"GTTS_PATH"`
	FFmpegPath        string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
}

// CacheConfig sizes the synthesized-audio cache.
type CacheConfig struct {
	Dir           string        `yaml:"dir" env:"DIR"`
	MemoryEntries int           `yaml:"memory_entries" env:"MEMORY_ENTRIES"`
	MemoryMB      int           `yaml:"memory_mb" env:"MEMORY_MB"`
	DiskMB        int           `yaml:"disk_mb" env:"DISK_MB"`
	Compression   int           `yaml:"compression" env:"COMPRESSION"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	pb := playback.DefaultConfig()
	out := audio.DefaultOutputConfig()
	ch := chat.DefaultConfig()
	cc := cache.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8765",
			ShutdownTimeout: 5 * time.Second,
		},
		Playback: PlaybackConfig{
			Enabled:       pb.Enabled,
			AdvanceDelay:  pb.AdvanceDelay,
			NotifyTimeout: pb.NotifyTimeout,
			SampleRate:    out.SampleRate,
			BufferSize:    out.BufferSize,
			WatchSettings: true,
		},
		Chat: ChatConfig{
			Enabled:    ch.Enabled,
			Command:    ch.Command,
			Permission: string(ch.Permission),
			Template:   ch.Template,
		},
		Render: RenderConfig{
			Language:          "es",
			RequestsPerMinute: 50,
			GTTSPath:          "gtts-cli",
			FFmpegPath:        "ffmpeg",
		},
		Cache: CacheConfig{
			MemoryEntries: cc.MemoryEntries,
			MemoryMB:      int(cc.MemoryCapacity >> 20),
			DiskMB:        int(cc.DiskCapacity >> 20),
			Compression:   cc.CompressionLevel,
			TTL:           cc.TTL,
		},
	}
}

// Load reads v over the defaults, applies environment overrides and
// validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return cfg, fmt.Errorf("decode configuration: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Playback.AdvanceDelay < 0 {
		errs = append(errs, fmt.Errorf("playback.advance_delay must not be negative, got %s", c.Playback.AdvanceDelay))
	}
	if c.Playback.NotifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("playback.notify_timeout must be positive, got %s", c.Playback.NotifyTimeout))
	}
	if c.Playback.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("playback.queue_capacity must not be negative, got %d", c.Playback.QueueCapacity))
	}
	if c.Playback.SampleRate < 8000 || c.Playback.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("playback.sample_rate must be between 8000 and 192000, got %d", c.Playback.SampleRate))
	}
	if _, err := chat.ParsePermission(c.Chat.Permission); err != nil {
		errs = append(errs, fmt.Errorf("chat.permission: %w", err))
	}
	if c.Chat.UserCooldown < 0 {
		errs = append(errs, fmt.Errorf("chat.user_cooldown must not be negative, got %s", c.Chat.UserCooldown))
	}
	if l := len(c.Render.Language); l < 2 || l > 5 {
		errs = append(errs, fmt.Errorf("render.language must be 2-5 characters, got %q", c.Render.Language))
	}
	if c.Render.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("render.requests_per_minute must be positive, got %d", c.Render.RequestsPerMinute))
	}
	if c.Cache.Compression < 0 || c.Cache.Compression > 22 {
		errs = append(errs, fmt.Errorf("cache.compression must be between 0 and 22, got %d", c.Cache.Compression))
	}
	return errors.Join(errs...)
}

// PlaybackController returns the controller settings.
func (c *Config) PlaybackController() playback.Config {
	return playback.Config{
		AdvanceDelay:  c.Playback.AdvanceDelay,
		NotifyTimeout: c.Playback.NotifyTimeout,
		Enabled:       c.Playback.Enabled,
	}
}

// Output returns the audio device settings.
func (c *Config) Output() audio.OutputConfig {
	out := audio.DefaultOutputConfig()
	out.SampleRate = c.Playback.SampleRate
	if c.Playback.BufferSize > 0 {
		out.BufferSize = c.Playback.BufferSize
	}
	return out
}

// ChatGate returns the chat processor configuration.
func (c *Config) ChatGate() chat.Config {
	perm, _ := chat.ParsePermission(c.Chat.Permission)
	return chat.Config{
		Enabled:      c.Chat.Enabled,
		Command:      strings.TrimSpace(c.Chat.Command),
		Permission:   perm,
		BannedWords:  c.Chat.BannedWords,
		Template:     c.Chat.Template,
		UserCooldown: c.Chat.UserCooldown,
	}
}

// AudioCache returns the cache configuration rooted under DataDir unless a
// directory is set explicitly.
func (c *Config) AudioCache() cache.Config {
	dir := c.Cache.Dir
	if dir == "" {
		dir = filepath.Join(c.DataDir, "cache")
	}
	cc := cache.DefaultConfig()
	cc.DiskPath = dir
	cc.MemoryEntries = c.Cache.MemoryEntries
	cc.MemoryCapacity = int64(c.Cache.MemoryMB) << 20
	cc.DiskCapacity = int64(c.Cache.DiskMB) << 20
	cc.CompressionLevel = c.Cache.Compression
	cc.TTL = c.Cache.TTL
	return cc
}

// SettingsFile returns the path of the shared settings document.
func (c *Config) SettingsFile() string {
	return filepath.Join(c.DataDir, settings.DefaultFileName)
}
