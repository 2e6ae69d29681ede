// Package deployer runs an install or uninstall against every requested device at once.
//
// Each device gets its own task. Tasks never cancel each other: the join waits for
// all of them, every task yields exactly one outcome, and the command fails when
// at least one outcome is a failure.
package deployer
