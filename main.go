// Package main provides the entry point for the ttsqueue daemon and its tools.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamcore/ttsqueue/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool

	// cfg is resolved once flags are parsed.
	cfg       config.Config
	logCloser = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "ttsqueue",
		Short: "Queue and play chat text-to-speech notifications",
		Long: paragraph(
			fmt.Sprintf("\nQueue chat and donation messages and %s, one at a time.", keyword("speak them")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return prepare(cmd)
		},
	}
)

// prepare reads the explicit config file, if any, then resolves the
// configuration and sets up logging.
func prepare(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if loaded.DataDir == "" {
		loaded.DataDir = defaultDataDir()
	}
	cfg = loaded

	closer, err := setupLog(cfg)
	if err != nil {
		return err
	}
	logCloser = closer
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = logCloser()
		os.Exit(1)
	}
	_ = logCloser()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(serveCmd, renderCmd, statusCmd, configCmd, manCmd)
}

func configDirs() []string {
	scope := gap.NewScope(gap.User, "ttsqueue")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "ttsqueue")}, dirs...)
	}

	if c := os.Getenv("TTSQUEUE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs
}

func defaultDataDir() string {
	scope := gap.NewScope(gap.User, "ttsqueue")
	dirs, err := scope.DataDirs()
	if err != nil || len(dirs) == 0 {
		return "."
	}
	return dirs[0]
}

func tryLoadConfigFromDefaultPlaces() {
	dirs := configDirs()
	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("ttsqueue")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		configFile = used
		return
	}

	configFile = filepath.Join(dirs[0], "ttsqueue.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
