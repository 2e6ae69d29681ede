package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/apk-deploy/internal/config"
	"github.com/oshokin/apk-deploy/internal/domain/deploy"
	"github.com/oshokin/apk-deploy/internal/logger"
	"github.com/oshokin/apk-deploy/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string
	// settings is loaded before any subcommand runs.
	settings *config.Config

	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd represents the base command.
	rootCmd = &cobra.Command{
		Use:   "apk-deploy",
		Short: "Install APK files on one or many Android devices at once.",
		Long: `Install an APK on every listed device in parallel, or bind-mount it over an
already installed app on rooted devices.

Every device is handled independently: a failure on one device never stops the
others. The command exits with a non-zero status when at least one device failed.

Settings are read from the configuration file and can be overridden with
APK_DEPLOY_* environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
	}
)

// Execute runs the apk-deploy CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		if errors.Is(err, deploy.ErrDeploymentFailed) {
			os.Exit(deploy.AtLeastOneFailed.ExitCode())
		}

		os.Exit(1)
	}
}

// loadSettings reads the configuration, applies environment overrides and sets the log level.
func loadSettings(_ *cobra.Command, _ []string) error {
	path, err := config.ExpandPath(configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err = config.ApplyEnv(cfg); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}

	levelName := cfg.LogLevel
	if logLevel != "" {
		levelName = logLevel
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, levelName)
	}

	logger.SetLevel(level)

	settings = cfg

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(installCmd, uninstallCmd, devicesCmd, configCmd)
}
