package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/oshokin/apk-deploy/internal/device/adb"
	"github.com/oshokin/apk-deploy/internal/domain/deploy"
)

const (
	labelOK   = "OK"
	labelFail = "FAIL"

	outcomeLineFmt = "%-4s  %-24s  %s\n"
	totalsFmt      = "%d succeeded, %d failed\n"
	deviceLineFmt  = "%-24s  %s\n"
	noDevicesLine  = "No devices attached"
)

// Outcomes writes one line per outcome followed by the totals.
func Outcomes(out io.Writer, outcomes []deploy.Outcome) error {
	for _, o := range outcomes {
		status := color.GreenString(labelOK)
		if !o.Succeeded() {
			status = color.RedString(labelFail)
		}

		if _, err := fmt.Fprintf(out, outcomeLineFmt, status, o.Target, o.Detail); err != nil {
			return err
		}
	}

	succeeded, failed := deploy.Count(outcomes)

	totals := color.GreenString(totalsFmt, succeeded, failed)
	if failed > 0 {
		totals = color.RedString(totalsFmt, succeeded, failed)
	}

	_, err := fmt.Fprint(out, totals)

	return err
}

// Devices writes the serial and state of every device.
func Devices(out io.Writer, devices []adb.Device) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, color.YellowString(noDevicesLine))

		return err
	}

	for _, d := range devices {
		state := color.New(color.FgGreen).Sprint(d.State)
		if !d.Ready() {
			state = color.New(color.FgYellow).Sprint(d.State)
		}

		if _, err := fmt.Fprintf(out, deviceLineFmt, d.Serial, state); err != nil {
			return err
		}
	}

	return nil
}
