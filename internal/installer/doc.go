// Package installer implements the strategies that put an APK on a device.
//
// DirectInstaller runs a normal `adb install`. MountInstaller needs root and
// bind-mounts the APK over an already installed app, keeping a boot script so
// the mount survives reboots. Both report package-level verdicts as Result
// variants and return errors for transport faults.
package installer
