package installer

import (
	"context"
	"fmt"

	"github.com/oshokin/apk-deploy/internal/domain/deploy"
)

// APK is the artifact handed to an Installer.
type APK struct {
	// Path is the local path of the APK file.
	Path string
	// PackageName is the installed app the APK is mounted over. Only the mount strategy uses it.
	PackageName string
}

// Installer puts an APK on one device.
// Transport and mechanism faults are returned as errors; package-level verdicts are Results.
type Installer interface {
	Install(ctx context.Context, apk APK) (Result, error)
}

// Uninstaller removes a package (or a mount) from one device.
type Uninstaller interface {
	Uninstall(ctx context.Context, packageName string) (Result, error)
}

// Factory binds an Installer to a target.
// A non-empty packageName selects the privileged mount strategy.
type Factory interface {
	New(target deploy.Target, packageName string) Installer
}

// UninstallerFactory binds an Uninstaller to a target.
type UninstallerFactory interface {
	NewUninstaller(target deploy.Target, unmount bool) Uninstaller
}

// Result is what an Installer or Uninstaller reports when it ran to completion.
// The set of variants is open: callers must handle unknown ones.
type Result interface {
	fmt.Stringer
}

// DirectSuccess is a successful `adb install`.
type DirectSuccess struct{}

// DirectFailure is an install the package manager refused.
type DirectFailure struct {
	// Err describes why the install failed.
	Err error
}

// MountSuccess is an APK bind-mounted over the installed app.
type MountSuccess struct{}

// MountFailure is a mount that did not show up in /proc/mounts.
type MountFailure struct{}

// UninstallSuccess is a successful `adb uninstall`.
type UninstallSuccess struct{}

// UninstallFailure is an uninstall the package manager refused.
type UninstallFailure struct {
	// Err describes why the uninstall failed.
	Err error
}

// UnmountSuccess is a removed mount.
type UnmountSuccess struct{}

// UnmountFailure is a mount that is still present after unmounting.
type UnmountFailure struct{}

func (DirectSuccess) String() string { return "direct install succeeded" }

func (r DirectFailure) String() string { return "direct install failed: " + errString(r.Err) }

func (MountSuccess) String() string { return "mount succeeded" }

func (MountFailure) String() string { return "mount failed" }

func (UninstallSuccess) String() string { return "uninstall succeeded" }

func (r UninstallFailure) String() string { return "uninstall failed: " + errString(r.Err) }

func (UnmountSuccess) String() string { return "unmount succeeded" }

func (UnmountFailure) String() string { return "unmount failed" }

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}

	return err.Error()
}
