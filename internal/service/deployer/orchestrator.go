package deployer

import (
	"context"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/apk-deploy/internal/domain/deploy"
	"github.com/oshokin/apk-deploy/internal/installer"
	"github.com/oshokin/apk-deploy/internal/logger"
)

// Strategy labels used in task logs.
const (
	strategyDirect    = "direct"
	strategyMount     = "mount"
	strategyUninstall = "uninstall"
	strategyUnmount   = "unmount"
)

// task is the work done against one target.
type task func(ctx context.Context, target deploy.Target) (installer.Result, error)

// InstallAll installs apk on every target concurrently and waits for all of them.
// A non-empty apk.PackageName selects the mount strategy for every target.
// The outcomes are in target order, one per target.
func InstallAll(ctx context.Context, factory installer.Factory, targets []deploy.Target, apk installer.APK) []deploy.Outcome {
	strategy := strategyDirect
	if apk.PackageName != "" {
		strategy = strategyMount
	}

	return fanOut(ctx, targets, strategy, func(ctx context.Context, target deploy.Target) (installer.Result, error) {
		return factory.New(target, apk.PackageName).Install(ctx, apk)
	})
}

// UninstallAll removes packageName from every target concurrently and waits for all of them.
// With unmount set only the mount is removed and the installed app is kept.
func UninstallAll(
	ctx context.Context,
	factory installer.UninstallerFactory,
	targets []deploy.Target,
	packageName string,
	unmount bool,
) []deploy.Outcome {
	strategy := strategyUninstall
	if unmount {
		strategy = strategyUnmount
	}

	return fanOut(ctx, targets, strategy, func(ctx context.Context, target deploy.Target) (installer.Result, error) {
		return factory.NewUninstaller(target, unmount).Uninstall(ctx, packageName)
	})
}

// fanOut starts one goroutine per target and joins them all.
// Each goroutine writes only its own slot, so no locking is needed.
func fanOut(ctx context.Context, targets []deploy.Target, strategy string, run task) []deploy.Outcome {
	outcomes := make([]deploy.Outcome, len(targets))

	var wg conc.WaitGroup

	for i, target := range targets {
		wg.Go(func() {
			outcomes[i] = runTask(ctx, target, strategy, run)
		})
	}

	wg.Wait()

	return outcomes
}

// runTask runs one task, turning a panic into a fault, then classifies and logs the result.
// The outcome line of every task is logged even when the configured level is above info.
func runTask(ctx context.Context, target deploy.Target, strategy string, run task) deploy.Outcome {
	ctx = logger.WithOptions(ctx, logger.WithLevel(min(logger.Level(), zapcore.InfoLevel)))
	ctx = logger.WithKV(ctx, "target", target.String(), "strategy", strategy)

	var (
		result  installer.Result
		err     error
		catcher panics.Catcher
	)

	catcher.Try(func() {
		result, err = run(ctx, target)
	})

	if recovered := catcher.Recovered(); recovered != nil {
		err = recovered.AsError()
	}

	outcome := Classify(target, result, err)

	if outcome.Succeeded() {
		logger.InfoKV(ctx, outcome.Detail)
	} else {
		logger.ErrorKV(ctx, outcome.Detail)
	}

	return outcome
}
