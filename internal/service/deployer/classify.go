package deployer

import (
	"github.com/oshokin/apk-deploy/internal/domain/deploy"
	"github.com/oshokin/apk-deploy/internal/installer"
)

// Diagnostics attached to outcomes.
const (
	MessageInstalled      = "Installed the APK file"
	MessageMounted        = "Mounted the APK file"
	MessageMountFailed    = "Failed to mount the APK file"
	MessageUninstalled    = "Uninstalled the app"
	MessageUnmounted      = "Unmounted the app"
	MessageUnmountFailed  = "Failed to unmount the app"
	MessageUnknownResult  = "Unknown installation result"
	messageUnknownFailure = "unknown error"
)

// Classify maps what a task produced to its outcome.
// A non-nil err always wins. Variants it does not know are failures.
func Classify(target deploy.Target, result installer.Result, err error) deploy.Outcome {
	if err != nil {
		return deploy.Failure(target, err.Error())
	}

	switch r := result.(type) {
	case installer.DirectSuccess:
		return deploy.Success(target, MessageInstalled)
	case installer.DirectFailure:
		return deploy.Failure(target, describe(r.Err))
	case installer.MountSuccess:
		return deploy.Success(target, MessageMounted)
	case installer.MountFailure:
		return deploy.Failure(target, MessageMountFailed)
	case installer.UninstallSuccess:
		return deploy.Success(target, MessageUninstalled)
	case installer.UninstallFailure:
		return deploy.Failure(target, describe(r.Err))
	case installer.UnmountSuccess:
		return deploy.Success(target, MessageUnmounted)
	case installer.UnmountFailure:
		return deploy.Failure(target, MessageUnmountFailed)
	default:
		return deploy.Failure(target, MessageUnknownResult)
	}
}

func describe(err error) string {
	if err == nil {
		return messageUnknownFailure
	}

	return err.Error()
}
