// Package deploy contains the core domain types for deploying one APK to many devices.
//
// A Target names a device (or the default device), a Request binds the artifact
// to a Target, and every task ends with exactly one Outcome. Aggregate reduces
// the outcomes of a run to a single Result that selects the exit code.
package deploy
