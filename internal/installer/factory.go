package installer

import (
	"github.com/oshokin/apk-deploy/internal/config"
	"github.com/oshokin/apk-deploy/internal/domain/deploy"
)

// ADBFactory builds adb-backed installers. It is safe for concurrent use.
type ADBFactory struct {
	bridge Bridge
	mount  config.Mount
}

// NewADBFactory creates a factory sharing bridge between every installer it builds.
func NewADBFactory(bridge Bridge, mount config.Mount) *ADBFactory {
	return &ADBFactory{
		bridge: bridge,
		mount:  mount,
	}
}

// New returns the mount strategy when packageName is set, the direct install strategy otherwise.
//
//nolint:ireturn // Strategy selection is the point of the factory.
func (f *ADBFactory) New(target deploy.Target, packageName string) Installer {
	if packageName != "" {
		return NewMountInstaller(f.bridge, target, f.mount)
	}

	return NewDirectInstaller(f.bridge, target)
}

// NewUninstaller returns the unmount strategy when unmount is set, adb uninstall otherwise.
//
//nolint:ireturn // Strategy selection is the point of the factory.
func (f *ADBFactory) NewUninstaller(target deploy.Target, unmount bool) Uninstaller {
	if unmount {
		return NewMountInstaller(f.bridge, target, f.mount)
	}

	return NewDirectInstaller(f.bridge, target)
}
