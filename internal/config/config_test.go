package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/streamcore/ttsqueue/internal/chat"
)

func viperFrom(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("read yaml: %v", err)
	}
	return v
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Playback.AdvanceDelay != 200*time.Millisecond || !cfg.Playback.Enabled {
		t.Errorf("unexpected playback defaults %+v", cfg.Playback)
	}
	if cfg.Chat.Command != "!decir" || cfg.Chat.Permission != "all" {
		t.Errorf("unexpected chat defaults %+v", cfg.Chat)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	v := viperFrom(t, `
debug: true
data_dir: /var/lib/ttsqueue
server:
  addr: ":9000"
redis:
  addr: "localhost:6379"
  db: 2
playback:
  advance_delay: 500ms
  queue_capacity: 50
chat:
  permission: subscribers
  banned_words: ["spam", "scam"]
  user_cooldown: 1m
cache:
  disk_mb: 64
`)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Debug || cfg.Server.Addr != ":9000" || cfg.Redis.DB != 2 {
		t.Errorf("top-level values not loaded: %+v", cfg)
	}
	if cfg.Playback.AdvanceDelay != 500*time.Millisecond || cfg.Playback.QueueCapacity != 50 {
		t.Errorf("playback not loaded: %+v", cfg.Playback)
	}
	if cfg.Playback.NotifyTimeout != 5*time.Second {
		t.Errorf("unset keys must keep defaults, notify_timeout = %s", cfg.Playback.NotifyTimeout)
	}

	gate := cfg.ChatGate()
	if gate.Permission != chat.PermissionSubscriber || len(gate.BannedWords) != 2 || gate.UserCooldown != time.Minute {
		t.Errorf("chat gate %+v", gate)
	}
	if got := cfg.AudioCache(); got.DiskPath != filepath.Join("/var/lib/ttsqueue", "cache") || got.DiskCapacity != 64<<20 {
		t.Errorf("cache config %+v", got)
	}
	if got := cfg.SettingsFile(); got != filepath.Join("/var/lib/ttsqueue", "tts_config.json") {
		t.Errorf("settings file %q", got)
	}
}

func TestLoad_EnvironmentWins(t *testing.T) {
	t.Setenv("TTSQUEUE_SERVER_ADDR", "0.0.0.0:1234")
	t.Setenv("TTSQUEUE_PLAYBACK_ENABLED", "false")
	t.Setenv("TTSQUEUE_CHAT_BANNED_WORDS", "uno,dos,tres")
	t.Setenv("TTSQUEUE_RENDER_LANGUAGE", "en")

	cfg, err := Load(viperFrom(t, "server:\n  addr: \":9000\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:1234" {
		t.Errorf("env should override the file, got %q", cfg.Server.Addr)
	}
	if cfg.Playback.Enabled {
		t.Error("env should disable playback")
	}
	if len(cfg.Chat.BannedWords) != 3 || cfg.Render.Language != "en" {
		t.Errorf("env lists not parsed: %+v %+v", cfg.Chat, cfg.Render)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative delay", func(c *Config) { c.Playback.AdvanceDelay = -time.Second }, "advance_delay"},
		{"zero timeout", func(c *Config) { c.Playback.NotifyTimeout = 0 }, "notify_timeout"},
		{"bad sample rate", func(c *Config) { c.Playback.SampleRate = 100 }, "sample_rate"},
		{"bad permission", func(c *Config) { c.Chat.Permission = "vip" }, "chat.permission"},
		{"bad language", func(c *Config) { c.Render.Language = "x" }, "render.language"},
		{"bad compression", func(c *Config) { c.Cache.Compression = 30 }, "cache.compression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected an error mentioning %q, got %v", tt.field, err)
			}
		})
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	if _, err := Load(viperFrom(t, "chat:\n  permission: nobody\n")); err == nil {
		t.Error("expected Load to reject an unknown permission")
	}
}
