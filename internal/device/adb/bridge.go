package adb

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Device states reported by `adb devices`.
const (
	StateDevice       = "device"
	StateOffline      = "offline"
	StateUnauthorized = "unauthorized"
)

const (
	devicesHeader    = "List of devices attached"
	successMarker    = "Success"
	failureMarker    = "Failure"
	shellSingleQuote = `'\''`
)

var (
	// ErrNoDevice is returned when no device in the "device" state is connected.
	ErrNoDevice = errors.New("no connected device found")
	// ErrInstallRejected is returned when the package manager refuses an install.
	ErrInstallRejected = errors.New("package manager rejected the install")
	// ErrUninstallRejected is returned when the package manager refuses an uninstall.
	ErrUninstallRejected = errors.New("package manager rejected the uninstall")
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

// Run executes name with args, returning stdout and stderr interleaved.
func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var output bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()

	return output.Bytes(), err
}

// Device is an entry of `adb devices`.
type Device struct {
	// Serial is the device serial passed to `adb -s`.
	Serial string
	// State is the connection state (device, offline, unauthorized, ...).
	State string
}

// Ready reports whether adb can talk to the device.
func (d Device) Ready() bool {
	return d.State == StateDevice
}

// Bridge drives the adb executable.
// It holds no per-device state, so one Bridge is shared by concurrent tasks.
type Bridge struct {
	// path is the adb executable.
	path string
	// runner executes adb.
	runner Runner
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRunner replaces the command runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(b *Bridge) {
		if r != nil {
			b.runner = r
		}
	}
}

// New creates a Bridge for the adb executable at path.
func New(path string, opts ...Option) *Bridge {
	if path == "" {
		path = "adb"
	}

	b := &Bridge{
		path:   path,
		runner: execRunner{},
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Path returns the adb executable used by the bridge.
func (b *Bridge) Path() string {
	return b.path
}

// Devices lists the devices known to the adb server.
func (b *Bridge) Devices(ctx context.Context) ([]Device, error) {
	out, err := b.run(ctx, "", "devices")
	if err != nil {
		return nil, err
	}

	return parseDevices(out), nil
}

// DefaultDevice returns the serial of the first connected device that is ready.
func (b *Bridge) DefaultDevice(ctx context.Context) (string, error) {
	devices, err := b.Devices(ctx)
	if err != nil {
		return "", err
	}

	for _, d := range devices {
		if d.Ready() {
			return d.Serial, nil
		}
	}

	return "", ErrNoDevice
}

// Install installs the APK at apkPath, replacing an existing installation.
// A refusal by the package manager wraps ErrInstallRejected; anything else is a transport error.
func (b *Bridge) Install(ctx context.Context, serial, apkPath string) error {
	out, err := b.exec(ctx, serial, "install", "-r", apkPath)

	return pmVerdict(out, err, ErrInstallRejected, "install")
}

// Uninstall removes packageName from the device.
// A refusal by the package manager wraps ErrUninstallRejected.
func (b *Bridge) Uninstall(ctx context.Context, serial, packageName string) error {
	out, err := b.exec(ctx, serial, "uninstall", packageName)

	return pmVerdict(out, err, ErrUninstallRejected, "uninstall")
}

// Push copies a local file to the device.
func (b *Bridge) Push(ctx context.Context, serial, localPath, remotePath string) error {
	_, err := b.run(ctx, serial, "push", localPath, remotePath)

	return err
}

// Shell runs command in the device shell and returns its output.
func (b *Bridge) Shell(ctx context.Context, serial, command string) (string, error) {
	return b.run(ctx, serial, "shell", command)
}

// Su runs command as root through `su -c` and returns its output.
func (b *Bridge) Su(ctx context.Context, serial, command string) (string, error) {
	return b.run(ctx, serial, "shell", "su -c "+QuoteShell(command))
}

// run executes adb and wraps failures with the command and its output.
func (b *Bridge) run(ctx context.Context, serial string, args ...string) (string, error) {
	out, err := b.exec(ctx, serial, args...)
	if err != nil {
		return out, fmt.Errorf("adb %s: %w: %s", args[0], err, strings.TrimSpace(out))
	}

	return out, nil
}

// exec executes adb, targeting serial when it is set.
func (b *Bridge) exec(ctx context.Context, serial string, args ...string) (string, error) {
	full := make([]string, 0, len(args)+2)
	if serial != "" {
		full = append(full, "-s", serial)
	}

	full = append(full, args...)

	out, err := b.runner.Run(ctx, b.path, full...)

	return string(out), err
}

// pmVerdict interprets package manager output from adb install/uninstall.
// Older adb versions exit 0 even on "Failure [...]", so the output is checked first.
func pmVerdict(out string, runErr, rejected error, op string) error {
	if reason, ok := failureReason(out); ok {
		return fmt.Errorf("%w: %s", rejected, reason)
	}

	if runErr != nil {
		return fmt.Errorf("adb %s: %w: %s", op, runErr, strings.TrimSpace(out))
	}

	if !strings.Contains(out, successMarker) {
		return fmt.Errorf("%w: unexpected output: %q", rejected, strings.TrimSpace(out))
	}

	return nil
}

// failureReason extracts REASON from a "Failure [REASON]" line.
func failureReason(out string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		idx := strings.Index(line, failureMarker)
		if idx < 0 {
			continue
		}

		reason := strings.TrimSpace(line[idx+len(failureMarker):])
		reason = strings.TrimSuffix(strings.TrimPrefix(reason, "["), "]")

		if reason == "" {
			reason = line
		}

		return reason, true
	}

	return "", false
}

// parseDevices parses the output of `adb devices`.
func parseDevices(out string) []Device {
	var devices []Device

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, devicesHeader) || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		devices = append(devices, Device{Serial: fields[0], State: fields[1]})
	}

	return devices
}

// QuoteShell wraps s in single quotes for a POSIX shell.
func QuoteShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", shellSingleQuote) + "'"
}
