package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/apk-deploy/internal/config"
)

var (
	// overwrite replaces an existing configuration file.
	overwrite bool

	errConfigExists = errors.New("configuration file already exists")

	// configCmd groups configuration helpers.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file.",
	}

	// configInitCmd writes the effective settings to the configuration file.
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to the configuration file.",
		Long: `Write the effective settings (defaults, the existing file and APK_DEPLOY_*
overrides merged together) to the file given by --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.ExpandPath(configPath)
			if err != nil {
				return err
			}

			if _, err = os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("%w: %s (use --force to replace it)", errConfigExists, path)
			}

			if err = config.Save(path, settings); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", path)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	configInitCmd.Flags().BoolVarP(&overwrite, "force", "f", false, "replace an existing file")

	configCmd.AddCommand(configInitCmd)
}
