package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. APK_DEPLOY_ADB_PATH.
const EnvPrefix = "APK_DEPLOY"

// ApplyEnv overrides cfg with APK_DEPLOY_* environment variables and re-validates it.
// Nested keys use underscores: mount.dir is APK_DEPLOY_MOUNT_DIR.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	overrides := map[string]*string{
		"adb_path":           &cfg.ADBPath,
		"log_level":          &cfg.LogLevel,
		"mount.dir":          &cfg.Mount.Dir,
		"mount.staging_path": &cfg.Mount.StagingPath,
		"mount.service_dir":  &cfg.Mount.ServiceDir,
	}

	for key, field := range overrides {
		if value := v.GetString(key); value != "" {
			*field = value
		}
	}

	adbPath, err := ExpandPath(cfg.ADBPath)
	if err != nil {
		return err
	}

	cfg.ADBPath = adbPath

	return Validate(cfg)
}

// ExpandPath resolves a leading ~ to the current user's home directory.
func ExpandPath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand path %q: %w", p, err)
	}

	return expanded, nil
}
