// Package artifact checks an APK file before it is sent to any device.
package artifact
