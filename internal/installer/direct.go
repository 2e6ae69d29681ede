package installer

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/apk-deploy/internal/device/adb"
	"github.com/oshokin/apk-deploy/internal/domain/deploy"
	"github.com/oshokin/apk-deploy/internal/logger"
)

// Bridge is the part of adb.Bridge the installers need.
type Bridge interface {
	DefaultDevice(ctx context.Context) (string, error)
	Install(ctx context.Context, serial, apkPath string) error
	Uninstall(ctx context.Context, serial, packageName string) error
	Push(ctx context.Context, serial, localPath, remotePath string) error
	Shell(ctx context.Context, serial, command string) (string, error)
	Su(ctx context.Context, serial, command string) (string, error)
}

// device binds a Bridge to a target and resolves the default device lazily.
type device struct {
	bridge Bridge
	target deploy.Target
}

// serial returns the target serial, asking adb for the first ready device when the target is the default.
func (d device) serial(ctx context.Context) (string, error) {
	if !d.target.IsDefault() {
		return d.target.Serial, nil
	}

	serial, err := d.bridge.DefaultDevice(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve default device: %w", err)
	}

	logger.DebugKV(ctx, "Resolved default device", "serial", serial)

	return serial, nil
}

// DirectInstaller installs with `adb install -r`.
type DirectInstaller struct {
	device
}

// NewDirectInstaller binds the direct install strategy to target.
func NewDirectInstaller(bridge Bridge, target deploy.Target) *DirectInstaller {
	return &DirectInstaller{device: device{bridge: bridge, target: target}}
}

// Install installs apk, replacing any existing installation.
func (i *DirectInstaller) Install(ctx context.Context, apk APK) (Result, error) {
	serial, err := i.serial(ctx)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Installing APK", "serial", serial, "path", apk.Path)

	err = i.bridge.Install(ctx, serial, apk.Path)

	switch {
	case err == nil:
		return DirectSuccess{}, nil
	case errors.Is(err, adb.ErrInstallRejected):
		return DirectFailure{Err: err}, nil
	default:
		return nil, err
	}
}

// Uninstall removes packageName with `adb uninstall`.
func (i *DirectInstaller) Uninstall(ctx context.Context, packageName string) (Result, error) {
	if err := ValidatePackageName(packageName); err != nil {
		return nil, err
	}

	serial, err := i.serial(ctx)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Uninstalling package", "serial", serial, "package", packageName)

	err = i.bridge.Uninstall(ctx, serial, packageName)

	switch {
	case err == nil:
		return UninstallSuccess{}, nil
	case errors.Is(err, adb.ErrUninstallRejected):
		return UninstallFailure{Err: err}, nil
	default:
		return nil, err
	}
}
