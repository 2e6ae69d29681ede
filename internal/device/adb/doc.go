// Package adb drives the Android Debug Bridge executable.
//
// Bridge lists devices, installs and uninstalls packages, pushes files and runs
// shell commands (optionally as root). Every call shells out to adb, so a single
// Bridge is safe to share between concurrent per-device tasks.
package adb
