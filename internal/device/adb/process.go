package adb

import (
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ServerRunning reports whether an adb server process is alive on this host.
// When it is not, the first adb command spawns one, which takes a few seconds.
func (b *Bridge) ServerRunning() (bool, error) {
	processList, err := ps.Processes()
	if err != nil {
		return false, err
	}

	name := executableName(b.path)

	for _, process := range processList {
		if executableName(process.Executable()) == name {
			return true, nil
		}
	}

	return false, nil
}

// executableName strips directories and a Windows .exe suffix.
func executableName(path string) string {
	base := strings.ToLower(filepath.Base(path))

	return strings.TrimSuffix(base, ".exe")
}
