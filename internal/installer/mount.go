package installer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/oshokin/apk-deploy/internal/config"
	"github.com/oshokin/apk-deploy/internal/device/adb"
	"github.com/oshokin/apk-deploy/internal/domain/deploy"
	"github.com/oshokin/apk-deploy/internal/logger"
)

const (
	// apkFileMode, owner and seLinuxContext are what the system expects of an app APK.
	apkFileMode    = "644"
	apkOwner       = "system:system"
	seLinuxContext = "u:object_r:apk_data_file:s0"

	scriptFileMode = "755"
	scriptPrefix   = "apk-deploy-"

	// mountScript re-creates the bind mount at boot and once right after deployment.
	// %[1]s is the package name, %[2]s the mounted APK path, %[3]s the unmount loop.
	mountScript = `#!/system/bin/sh
until [ "$(getprop sys.boot_completed)" = 1 ]; do sleep 3; done
until [ -d /sdcard/Android ]; do sleep 1; done

stock_path=$(pm path %[1]s | grep base | sed 's/package://g')
[ -z "$stock_path" ] && exit 1

%[3]s

chcon ` + seLinuxContext + ` %[2]s
mount -o bind %[2]s "$stock_path"
am force-stop %[1]s
`
)

var (
	// ErrPackageNameRequired is returned when mounting without a package name.
	ErrPackageNameRequired = errors.New("package name is required to mount")
	// ErrInvalidPackageName is returned for names that are not Java package identifiers.
	ErrInvalidPackageName = errors.New("invalid package name")
	// ErrPackageNotInstalled is returned when there is no installed app to mount over.
	ErrPackageNotInstalled = errors.New("package is not installed")
	// ErrRootRequired is returned when `su` is unavailable or not granted.
	ErrRootRequired = errors.New("root access is required")

	packageNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)
)

// ValidatePackageName checks that name is a dotted Java package identifier.
// Package names end up in root shell commands, so nothing else is accepted.
func ValidatePackageName(name string) error {
	if name == "" {
		return ErrPackageNameRequired
	}

	if !packageNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidPackageName, name)
	}

	return nil
}

// MountInstaller bind-mounts an APK over an installed app. It needs root.
type MountInstaller struct {
	device

	settings config.Mount
}

// NewMountInstaller binds the privileged mount strategy to target.
func NewMountInstaller(bridge Bridge, target deploy.Target, settings config.Mount) *MountInstaller {
	return &MountInstaller{
		device:   device{bridge: bridge, target: target},
		settings: settings,
	}
}

// Install mounts apk over apk.PackageName.
// A mount that does not appear in /proc/mounts is a MountFailure; every other problem is an error.
func (m *MountInstaller) Install(ctx context.Context, apk APK) (Result, error) {
	if err := ValidatePackageName(apk.PackageName); err != nil {
		return nil, err
	}

	serial, err := m.serial(ctx)
	if err != nil {
		return nil, err
	}

	if err = m.requireRoot(ctx, serial); err != nil {
		return nil, err
	}

	stockPath, err := m.stockPath(ctx, serial, apk.PackageName)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Mounting APK", "serial", serial, "package", apk.PackageName, "stock_path", stockPath)

	if err = m.placeAPK(ctx, serial, apk); err != nil {
		return nil, err
	}

	script := m.scriptPath(apk.PackageName)
	if err = m.placeScript(ctx, serial, apk.PackageName, script); err != nil {
		return nil, err
	}

	// The verification below decides the verdict, so the script's own exit status is only logged.
	if _, err = m.bridge.Su(ctx, serial, script); err != nil {
		logger.WarnKV(ctx, "Mount script reported an error", "script", script, "error", err)
	}

	mounts, err := m.mountsMatching(ctx, serial, stockPath)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(mounts, stockPath) {
		return MountFailure{}, nil
	}

	return MountSuccess{}, nil
}

// Uninstall removes the mount, the mounted APK and the boot script of packageName.
func (m *MountInstaller) Uninstall(ctx context.Context, packageName string) (Result, error) {
	if err := ValidatePackageName(packageName); err != nil {
		return nil, err
	}

	serial, err := m.serial(ctx)
	if err != nil {
		return nil, err
	}

	if err = m.requireRoot(ctx, serial); err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Unmounting APK", "serial", serial, "package", packageName)

	cleanup := strings.Join([]string{
		unmountCommand(packageName),
		"rm -f " + m.mountedPath(packageName),
		"rm -f " + m.scriptPath(packageName),
	}, "; ")

	if _, err = m.bridge.Su(ctx, serial, cleanup); err != nil {
		return nil, fmt.Errorf("unmount %s: %w", packageName, err)
	}

	mounts, err := m.mountsMatching(ctx, serial, installedSegment(packageName))
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(mounts) != "" {
		return UnmountFailure{}, nil
	}

	return UnmountSuccess{}, nil
}

// requireRoot checks that `su` runs commands as uid 0.
func (m *MountInstaller) requireRoot(ctx context.Context, serial string) error {
	out, err := m.bridge.Su(ctx, serial, "id -u")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRootRequired, err)
	}

	if strings.TrimSpace(out) != "0" {
		return fmt.Errorf("%w: su runs as uid %q", ErrRootRequired, strings.TrimSpace(out))
	}

	return nil
}

// stockPath returns the installed base APK path of packageName.
func (m *MountInstaller) stockPath(ctx context.Context, serial, packageName string) (string, error) {
	// pm exits non-zero for unknown packages; an empty answer is handled below.
	out, err := m.bridge.Shell(ctx, serial, "pm path "+packageName+" || true")
	if err != nil {
		return "", fmt.Errorf("query package path: %w", err)
	}

	var first string

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		p, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "package:")
		if !ok || p == "" {
			continue
		}

		if strings.HasSuffix(p, "/base.apk") {
			return p, nil
		}

		if first == "" {
			first = p
		}
	}

	if first == "" {
		return "", fmt.Errorf("%w: %s", ErrPackageNotInstalled, packageName)
	}

	return first, nil
}

// placeAPK pushes the APK to the staging path and moves it, as root, into the mount directory.
func (m *MountInstaller) placeAPK(ctx context.Context, serial string, apk APK) error {
	if err := m.bridge.Push(ctx, serial, apk.Path, m.settings.StagingPath); err != nil {
		return fmt.Errorf("push apk: %w", err)
	}

	mounted := m.mountedPath(apk.PackageName)

	commands := strings.Join([]string{
		"mkdir -p " + m.settings.Dir,
		"mv " + m.settings.StagingPath + " " + mounted,
		"chmod " + apkFileMode + " " + mounted,
		"chown " + apkOwner + " " + mounted,
		"chcon " + seLinuxContext + " " + mounted,
	}, " && ")

	if _, err := m.bridge.Su(ctx, serial, commands); err != nil {
		return fmt.Errorf("move apk into place: %w", err)
	}

	return nil
}

// placeScript renders the boot script locally, pushes it and installs it as root.
func (m *MountInstaller) placeScript(ctx context.Context, serial, packageName, script string) error {
	local, err := os.CreateTemp("", scriptPrefix+"*.sh")
	if err != nil {
		return fmt.Errorf("create mount script: %w", err)
	}

	defer func() {
		_ = os.Remove(local.Name())
	}()

	_, err = local.WriteString(m.renderScript(packageName))
	if closeErr := local.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write mount script: %w", err)
	}

	staged := m.settings.StagingPath + ".sh"
	if err = m.bridge.Push(ctx, serial, local.Name(), staged); err != nil {
		return fmt.Errorf("push mount script: %w", err)
	}

	commands := strings.Join([]string{
		"mkdir -p " + m.settings.ServiceDir,
		"mv " + staged + " " + script,
		"chmod " + scriptFileMode + " " + script,
	}, " && ")

	if _, err = m.bridge.Su(ctx, serial, commands); err != nil {
		return fmt.Errorf("install mount script: %w", err)
	}

	return nil
}

// mountsMatching returns the /proc/mounts lines containing needle.
func (m *MountInstaller) mountsMatching(ctx context.Context, serial, needle string) (string, error) {
	// grep exits 1 when nothing matches, which is a valid answer here.
	out, err := m.bridge.Su(ctx, serial, "grep -F "+adb.QuoteShell(needle)+" /proc/mounts || true")
	if err != nil {
		return "", fmt.Errorf("read mounts: %w", err)
	}

	return out, nil
}

func (m *MountInstaller) renderScript(packageName string) string {
	return fmt.Sprintf(mountScript, packageName, m.mountedPath(packageName), unmountCommand(packageName))
}

func (m *MountInstaller) mountedPath(packageName string) string {
	return path.Join(m.settings.Dir, packageName+".apk")
}

func (m *MountInstaller) scriptPath(packageName string) string {
	return path.Join(m.settings.ServiceDir, scriptPrefix+packageName+".sh")
}

// installedSegment is the directory prefix pm gives the install of packageName,
// as in /data/app/~~x==/com.example-y==/base.apk. The trailing dash keeps
// com.example from matching com.example.beta.
func installedSegment(packageName string) string {
	return "/" + packageName + "-"
}

// unmountCommand lazily unmounts every bind mount over the install of packageName.
func unmountCommand(packageName string) string {
	return "grep -F " + adb.QuoteShell(installedSegment(packageName)) + " /proc/mounts | while read -r line; do " +
		`echo "$line" | cut -d ' ' -f 2 | sed 's/apk.*/apk/' | xargs -r umount -l; done`
}
