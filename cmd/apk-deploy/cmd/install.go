package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/apk-deploy/internal/config"
	"github.com/oshokin/apk-deploy/internal/service/deployer"
)

// mountFlag selects the mount strategy.
const mountFlag = "mount"

var (
	errEmptyMountPackage = errors.New("--mount needs a package name")

	// apkPath is the APK file to install.
	apkPath string
	// mountPackage selects the mount strategy over this installed package.
	mountPackage string

	// installCmd installs or mounts an APK on the given devices.
	installCmd = &cobra.Command{
		Use:   "install [serial...]",
		Short: "Install an APK on the given devices.",
		Long: `Install the APK on every listed device at the same time.

Without serials the only connected device is used. With --mount the APK is
bind-mounted over the already installed package instead; this needs root and
a boot script directory such as Magisk's service.d.`,
		Example: `  apk-deploy install -a app.apk
  apk-deploy install -a app.apk emulator-5554 R58M1234ABC
  apk-deploy install -a youtube.apk -m com.google.android.youtube R58M1234ABC`,
		RunE: func(cmd *cobra.Command, args []string) error {
			packageName, err := mountOverride(cmd.Flags())
			if err != nil {
				return err
			}

			path, err := config.ExpandPath(apkPath)
			if err != nil {
				return err
			}

			return deployer.Install(cmd.Context(), &deployer.InstallOptions{
				Config:       settings,
				ArtifactPath: path,
				Serials:      args,
				PackageName:  packageName,
				Summary:      cmd.OutOrStdout(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	installCmd.Flags().StringVarP(&apkPath, "apk", "a", "", "path to the APK file")
	installCmd.Flags().StringVarP(&mountPackage, mountFlag, "m", "", "mount the APK over this installed package instead of installing it")

	if err := installCmd.MarkFlagRequired("apk"); err != nil {
		panic(err)
	}
}

// mountOverride returns the --mount package. Passing --mount with an empty value is an error,
// not a silent switch back to a direct install.
func mountOverride(flags *pflag.FlagSet) (string, error) {
	if !flags.Changed(mountFlag) {
		return "", nil
	}

	packageName, err := flags.GetString(mountFlag)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(packageName) == "" {
		return "", errEmptyMountPackage
	}

	return packageName, nil
}
