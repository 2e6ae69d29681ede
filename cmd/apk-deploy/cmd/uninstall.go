package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/apk-deploy/internal/service/deployer"
)

var (
	// uninstallPackage is the package to remove.
	uninstallPackage string
	// unmount removes only a previous mount.
	unmount bool

	// uninstallCmd removes a package or its mount from the given devices.
	uninstallCmd = &cobra.Command{
		Use:   "uninstall [serial...]",
		Short: "Uninstall a package from the given devices.",
		Long: `Uninstall the package from every listed device at the same time.

With --unmount only a mount created by "install --mount" is removed, together
with its boot script; the installed app stays.`,
		Example: `  apk-deploy uninstall -p com.example.app
  apk-deploy uninstall -p com.google.android.youtube -u R58M1234ABC`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deployer.Uninstall(cmd.Context(), &deployer.UninstallOptions{
				Config:      settings,
				Serials:     args,
				PackageName: uninstallPackage,
				Unmount:     unmount,
				Summary:     cmd.OutOrStdout(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	uninstallCmd.Flags().StringVarP(&uninstallPackage, "package", "p", "", "package name to uninstall")
	uninstallCmd.Flags().BoolVarP(&unmount, "unmount", "u", false, "remove a mount instead of uninstalling")

	if err := uninstallCmd.MarkFlagRequired("package"); err != nil {
		panic(err)
	}
}
