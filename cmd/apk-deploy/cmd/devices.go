package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/apk-deploy/internal/service/deployer"
)

// devicesCmd lists the devices adb can see.
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return deployer.Devices(cmd.Context(), &deployer.DevicesOptions{
			Config: settings,
			Out:    cmd.OutOrStdout(),
		})
	},
}
