package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oshokin/apk-deploy/internal/artifact"
	"github.com/oshokin/apk-deploy/internal/config"
	"github.com/oshokin/apk-deploy/internal/device/adb"
	"github.com/oshokin/apk-deploy/internal/domain/deploy"
	"github.com/oshokin/apk-deploy/internal/installer"
	"github.com/oshokin/apk-deploy/internal/logger"
	"github.com/oshokin/apk-deploy/internal/report"
)

// InstallOptions controls an install run.
type InstallOptions struct {
	// Config provides the adb path and mount locations. Nil means defaults.
	Config *config.Config
	// ArtifactPath is the APK to deploy.
	ArtifactPath string
	// Serials lists the target devices. Empty means the default device.
	Serials []string
	// PackageName mounts the APK over this installed app instead of installing it.
	PackageName string
	// Summary receives the per-device summary after the run. Nil disables it.
	Summary io.Writer
}

// UninstallOptions controls an uninstall run.
type UninstallOptions struct {
	// Config provides the adb path and mount locations. Nil means defaults.
	Config *config.Config
	// Serials lists the target devices. Empty means the default device.
	Serials []string
	// PackageName is the app to remove.
	PackageName string
	// Unmount removes a previous mount instead of uninstalling the app.
	Unmount bool
	// Summary receives the per-device summary after the run. Nil disables it.
	Summary io.Writer
}

// DevicesOptions controls device listing.
type DevicesOptions struct {
	// Config provides the adb path. Nil means defaults.
	Config *config.Config
	// Out receives the device table.
	Out io.Writer
}

// ErrEmptySerial is returned when a device serial is blank.
// A blank serial would otherwise be taken for the default device.
var ErrEmptySerial = errors.New("device serial must not be empty")

// deviceLister is the part of adb.Bridge used to list devices.
type deviceLister interface {
	Devices(ctx context.Context) ([]adb.Device, error)
}

// Install checks the artifact and deploys it to every requested device.
// It returns deploy.ErrDeploymentFailed when at least one device failed.
func Install(ctx context.Context, opts *InstallOptions) error {
	ctx = logger.WithName(ctx, "install")
	cfg := configOrDefault(opts.Config)

	if err := validateSerials(opts.Serials); err != nil {
		return err
	}

	if opts.PackageName != "" {
		if err := installer.ValidatePackageName(opts.PackageName); err != nil {
			return err
		}
	}

	info, err := artifact.Inspect(opts.ArtifactPath)
	if err != nil {
		return fmt.Errorf("check artifact: %w", err)
	}

	bridge := newBridge(ctx, cfg)

	return deployArtifact(ctx, opts, info, installer.NewADBFactory(bridge, cfg.Mount))
}

// Uninstall removes a package, or only its mount, from every requested device.
// It returns deploy.ErrDeploymentFailed when at least one device failed.
func Uninstall(ctx context.Context, opts *UninstallOptions) error {
	ctx = logger.WithName(ctx, "uninstall")
	cfg := configOrDefault(opts.Config)

	if err := validateSerials(opts.Serials); err != nil {
		return err
	}

	if err := installer.ValidatePackageName(opts.PackageName); err != nil {
		return err
	}

	bridge := newBridge(ctx, cfg)

	return removePackage(ctx, opts, installer.NewADBFactory(bridge, cfg.Mount))
}

// Devices prints the devices adb can see.
func Devices(ctx context.Context, opts *DevicesOptions) error {
	ctx = logger.WithName(ctx, "devices")

	return listDevices(ctx, newBridge(ctx, configOrDefault(opts.Config)), opts.Out)
}

func deployArtifact(ctx context.Context, opts *InstallOptions, info *artifact.Info, factory installer.Factory) error {
	targets := ResolveTargets(opts.Serials)

	logger.InfoKV(ctx, "Deploying APK",
		"path", info.Path,
		"size", info.Size,
		"sha256", info.Checksum,
		"targets", len(targets),
		"package", opts.PackageName,
	)

	apk := installer.APK{
		Path:        info.Path,
		PackageName: opts.PackageName,
	}

	return finish(ctx, opts.Summary, InstallAll(ctx, factory, targets, apk))
}

func removePackage(ctx context.Context, opts *UninstallOptions, factory installer.UninstallerFactory) error {
	targets := ResolveTargets(opts.Serials)

	logger.InfoKV(ctx, "Removing package",
		"package", opts.PackageName,
		"unmount", opts.Unmount,
		"targets", len(targets),
	)

	return finish(ctx, opts.Summary, UninstallAll(ctx, factory, targets, opts.PackageName, opts.Unmount))
}

func listDevices(ctx context.Context, lister deviceLister, out io.Writer) error {
	devices, err := lister.Devices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	logger.DebugKV(ctx, "Listed devices", "count", len(devices))

	return report.Devices(out, devices)
}

// finish prints the summary and reduces the outcomes to the command result.
func finish(ctx context.Context, summary io.Writer, outcomes []deploy.Outcome) error {
	if summary != nil {
		if err := report.Outcomes(summary, outcomes); err != nil {
			logger.WarnKV(ctx, "Failed to write summary", "error", err)
		}
	}

	result := deploy.Aggregate(outcomes)
	succeeded, failed := deploy.Count(outcomes)

	logger.InfoKV(ctx, "Run finished", "result", result.String(), "succeeded", succeeded, "failed", failed)

	if result == deploy.AtLeastOneFailed {
		return fmt.Errorf("%w: %d of %d", deploy.ErrDeploymentFailed, failed, len(outcomes))
	}

	return nil
}

// newBridge creates the adb bridge and logs whether an adb server is already up.
func newBridge(ctx context.Context, cfg *config.Config) *adb.Bridge {
	bridge := adb.New(cfg.ADBPath)

	running, err := bridge.ServerRunning()
	if err != nil {
		logger.DebugKV(ctx, "Failed to inspect processes", "error", err)
	} else {
		logger.DebugKV(ctx, "Checked adb server", "adb", bridge.Path(), "running", running)
	}

	return bridge
}

// validateSerials rejects blank serials given on the command line.
func validateSerials(serials []string) error {
	for i, serial := range serials {
		if strings.TrimSpace(serial) == "" {
			return fmt.Errorf("%w: argument %d", ErrEmptySerial, i+1)
		}
	}

	return nil
}

func configOrDefault(cfg *config.Config) *config.Config {
	if cfg == nil {
		return config.Default()
	}

	return cfg
}
