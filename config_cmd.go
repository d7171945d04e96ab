package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# log at debug level
debug: false
# write logs here instead of stderr
# log_file: "/tmp/ttsqueue.log"
# holds tts_config.json and the audio cache (default: user data dir)
# data_dir: ""

# control panel API and event stream
server:
  addr: "127.0.0.1:8765"
  shutdown_timeout: 5s

# remote renderer and inbound channels; leave addr empty to run standalone
redis:
  addr: ""
  password: ""
  db: 0

playback:
  # start with playback enabled (tts_config.json overrides this)
  enabled: true
  # pause between the end of one message and the start of the next
  advance_delay: 200ms
  # bound on each call to the remote renderer
  notify_timeout: 5s
  # maximum queued messages, 0 for no limit
  queue_capacity: 0
  sample_rate: 44100
  buffer_size: 4096
  # reload tts_config.json when another tool edits it
  watch_settings: true

# chat command gate
chat:
  enabled: true
  command: "!decir"
  # all, subscriber, moderator or streamer
  permission: "all"
  banned_words: []
  # first %s is the sender, second the text
  template: "%s dice %s"
  user_cooldown: 0s

# speech synthesis for "ttsqueue render"
render:
  language: "es"
  requests_per_minute: 50
  gtts_path: "gtts-cli"
  ffmpeg_path: "ffmpeg"

# synthesized audio cache
cache:
  # dir: ""
  memory_entries: 256
  memory_mb: 64
  disk_mb: 512
  compression: 3
  ttl: 168h
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the ttsqueue config file",
	Long:    paragraph(fmt.Sprintf("\n%s the ttsqueue config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("ttsqueue config\nttsqueue config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// editing must work even when the current file does not validate
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("ttsqueue", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
