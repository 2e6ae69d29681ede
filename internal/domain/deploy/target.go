package deploy

// defaultDeviceLabel is how the default target is printed in logs and summaries.
const defaultDeviceLabel = "default device"

// Target identifies the device a task applies to.
// The zero value is the implicit default device.
type Target struct {
	// Serial is the adb serial of the device, empty for the default device.
	Serial string
}

// DefaultTarget returns the Target for the unique default device.
func DefaultTarget() Target {
	return Target{}
}

// IsDefault reports whether the target refers to the default device.
func (t Target) IsDefault() bool {
	return t.Serial == ""
}

// String returns the serial, or a placeholder for the default device.
func (t Target) String() string {
	if t.IsDefault() {
		return defaultDeviceLabel
	}

	return t.Serial
}

// Request is one artifact-to-target installation attempt.
type Request struct {
	// Artifact is the local path of the APK file.
	Artifact string
	// PackageName selects the mount strategy when not empty.
	PackageName string
	// Target is the device the artifact goes to.
	Target Target
}

// Mount reports whether the request asks for a privileged mount instead of an install.
func (r Request) Mount() bool {
	return r.PackageName != ""
}
