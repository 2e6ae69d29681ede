package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds settings shared by every apk-deploy command.
type Config struct {
	// ADBPath is the adb executable, looked up in PATH when not absolute.
	ADBPath string `yaml:"adb_path"`
	// LogLevel is the minimum level for console logs.
	LogLevel string `yaml:"log_level"`
	// Mount holds on-device locations used by the privileged mount strategy.
	Mount Mount `yaml:"mount"`
}

// Mount describes where the mount strategy keeps its files on the device.
type Mount struct {
	// Dir receives the mounted APK files, one per package.
	Dir string `yaml:"dir"`
	// StagingPath is a world-writable location adb can push to before root moves the file.
	StagingPath string `yaml:"staging_path"`
	// ServiceDir holds boot scripts that re-create the bind mount on every boot.
	ServiceDir string `yaml:"service_dir"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "apk-deploy.yaml"

	// DefaultADBPath is used when no adb executable is configured.
	DefaultADBPath = "adb"

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultMountDir is where mounted APK files live on the device.
	DefaultMountDir = "/data/adb/apk-deploy"

	// DefaultStagingPath is the temporary upload location on the device.
	DefaultStagingPath = "/data/local/tmp/apk-deploy.tmp"

	// DefaultServiceDir is the Magisk boot script directory.
	DefaultServiceDir = "/data/adb/service.d"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errDevicePathNotAbsolute is returned when an on-device path is relative.
	errDevicePathNotAbsolute = errors.New("device path must be absolute")
	// errUnknownLogLevel is returned for log levels outside debug/info/warn/error.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		ADBPath:  DefaultADBPath,
		LogLevel: DefaultLogLevel,
		Mount: Mount{
			Dir:         DefaultMountDir,
			StagingPath: DefaultStagingPath,
			ServiceDir:  DefaultServiceDir,
		},
	}
}

// Load reads configuration from path and validates it.
// A missing file is not an error: the defaults are returned instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(expanded))

	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}

	// Restrict permissions.
	if err = os.WriteFile(filepath.Clean(expanded), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty fields with defaults and checks the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	defaults := Default()

	if strings.TrimSpace(cfg.ADBPath) == "" {
		cfg.ADBPath = defaults.ADBPath
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	mountPaths := []struct {
		name  string
		value *string
		def   string
	}{
		{"mount.dir", &cfg.Mount.Dir, defaults.Mount.Dir},
		{"mount.staging_path", &cfg.Mount.StagingPath, defaults.Mount.StagingPath},
		{"mount.service_dir", &cfg.Mount.ServiceDir, defaults.Mount.ServiceDir},
	}

	for _, p := range mountPaths {
		if *p.value == "" {
			*p.value = p.def
		}

		// Device paths are POSIX regardless of the host OS.
		if !path.IsAbs(*p.value) {
			return fmt.Errorf("%s %q: %w", p.name, *p.value, errDevicePathNotAbsolute)
		}
	}

	return nil
}
