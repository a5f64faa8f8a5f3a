package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/config"
	"github.com/credvault/credvault/internal/session"
	"github.com/credvault/credvault/internal/storage"
)

var (
	cfg        *config.Config
	localStore *storage.LocalStorage
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "credvault",
	Short: "A local encrypted credential vault",
	Long: `credvault keeps usernames and passwords in a single encrypted file.
The master password is asked for on every command and never stored; the
vault key is derived from it with a memory-hard KDF and held in locked
memory only for the lifetime of the command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	localStore = storage.NewLocalStorage(cfg.VaultPath)

	return rootCmd.Execute()
}

// setupLogging sends engine logs to stderr at the configured level.
func setupLogging() error {
	level, err := cfg.Level()
	if logLevel != "" {
		level, err = zerolog.ParseLevel(logLevel)
	}
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if level == zerolog.Disabled {
		storage.DisableLog()
		session.DisableLog()
		return nil
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	storage.UseLogger(logger)
	session.UseLogger(logger)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides log_level in the config file")
}
