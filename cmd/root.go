package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chatat/pkg/config"
	"chatat/pkg/logger"
	"chatat/pkg/twitch"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "chatat",
	Short:         "Twitch chat client and bot",
	Long:          "chatat connects to Twitch chat, runs chat macros and either shows an interactive client or runs headless.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to chatat.json (defaults to $CHATAT_CONFIG, ./chatat.json, ./config/chatat.json)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chatat:", err)
		os.Exit(1)
	}
}

// app is what every subcommand needs before it can connect.
type app struct {
	cfg      *config.Config
	auth     twitch.Auth
	log      *slog.Logger
	closeLog func() error
}

// bootstrap loads configuration, credentials and the logger. Channel names
// given on the command line replace the configured ones. adjustLogging, when
// set, rewrites the logging section before the logger is built.
func bootstrap(component string, channels []string, adjustLogging func(config.LoggingConfig) config.LoggingConfig) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(channels) > 0 {
		cfg.Channels = channelsFromArgs(channels)
	}

	auth, err := config.LoadAuth(cfg)
	if err != nil {
		return nil, err
	}

	logging := cfg.Logging
	if adjustLogging != nil {
		logging = adjustLogging(logging)
	}
	appLogger, closeLog, err := logger.New(logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return &app{
		cfg:      cfg,
		auth:     auth,
		log:      slog.Default().With("component", component),
		closeLog: closeLog,
	}, nil
}

func channelsFromArgs(args []string) []string {
	names := make([]string, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if name := twitch.NormalizeName(part); name != "" {
				names = append(names, name)
			}
		}
	}

	return names
}

// tuiLogging keeps log output off the terminal the UI draws on.
func tuiLogging(cfg config.LoggingConfig) config.LoggingConfig {
	if strings.TrimSpace(cfg.File) == "" {
		cfg.File = filepath.Join(os.TempDir(), "chatat.log")
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}

	return cfg
}
