package deployer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/apk-deploy/internal/artifact"
	"github.com/oshokin/apk-deploy/internal/device/adb"
	"github.com/oshokin/apk-deploy/internal/domain/deploy"
	"github.com/oshokin/apk-deploy/internal/installer"
	"github.com/oshokin/apk-deploy/internal/logger"
)

var errIO = errors.New("write /data/local/tmp/apk-deploy.tmp: broken pipe")

// unknownResult is a variant the classifier has never heard of.
type unknownResult struct{}

func (unknownResult) String() string { return "unknown" }

// binding records how the factory was asked to bind a strategy.
type binding struct {
	target      deploy.Target
	packageName string
	unmount     bool
}

// fakeFactory builds installers whose behavior is scripted per target.
type fakeFactory struct {
	// respond answers every Install and Uninstall call.
	respond func(ctx context.Context, target deploy.Target) (installer.Result, error)

	// mu protects bindings.
	mu       sync.Mutex
	bindings []binding
}

type fakeTask struct {
	factory *fakeFactory
	target  deploy.Target
}

func (f *fakeFactory) bind(b binding) fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.bindings = append(f.bindings, b)

	return fakeTask{factory: f, target: b.target}
}

func (f *fakeFactory) New(target deploy.Target, packageName string) installer.Installer {
	return f.bind(binding{target: target, packageName: packageName})
}

func (f *fakeFactory) NewUninstaller(target deploy.Target, unmount bool) installer.Uninstaller {
	return f.bind(binding{target: target, unmount: unmount})
}

func (t fakeTask) Install(ctx context.Context, _ installer.APK) (installer.Result, error) {
	return t.factory.respond(ctx, t.target)
}

func (t fakeTask) Uninstall(ctx context.Context, _ string) (installer.Result, error) {
	return t.factory.respond(ctx, t.target)
}

// bySerial scripts a response per target serial.
func bySerial(results map[string]installer.Result) func(context.Context, deploy.Target) (installer.Result, error) {
	return func(_ context.Context, target deploy.Target) (installer.Result, error) {
		return results[target.Serial], nil
	}
}

// capture returns a context whose logger writes into the returned buffer.
func capture() (context.Context, *bytes.Buffer) {
	var buf bytes.Buffer

	return logger.ToContext(context.Background(), logger.New(zapcore.DebugLevel, &buf)), &buf
}

// TestResolveTargets keeps order and duplicates and falls back to the default device.
func TestResolveTargets(t *testing.T) {
	t.Parallel()

	require.Equal(t, []deploy.Target{deploy.DefaultTarget()}, ResolveTargets(nil))
	require.Equal(t, []deploy.Target{deploy.DefaultTarget()}, ResolveTargets([]string{}))
	require.Equal(t,
		[]deploy.Target{{Serial: "B"}, {Serial: "A"}, {Serial: "B"}},
		ResolveTargets([]string{"B", "A", "B"}),
	)
}

// TestClassify covers every known variant, unknown variants and raised faults.
func TestClassify(t *testing.T) {
	t.Parallel()

	target := deploy.Target{Serial: "A"}
	rejected := errors.New("Failure [INSTALL_FAILED_VERSION_DOWNGRADE]")

	tests := []struct {
		name   string
		result installer.Result
		err    error
		want   deploy.Outcome
	}{
		{"direct success", installer.DirectSuccess{}, nil, deploy.Success(target, MessageInstalled)},
		{"direct failure", installer.DirectFailure{Err: rejected}, nil, deploy.Failure(target, rejected.Error())},
		{"direct failure without detail", installer.DirectFailure{}, nil, deploy.Failure(target, "unknown error")},
		{"mount success", installer.MountSuccess{}, nil, deploy.Success(target, MessageMounted)},
		{"mount failure", installer.MountFailure{}, nil, deploy.Failure(target, MessageMountFailed)},
		{"uninstall success", installer.UninstallSuccess{}, nil, deploy.Success(target, MessageUninstalled)},
		{"uninstall failure", installer.UninstallFailure{Err: rejected}, nil, deploy.Failure(target, rejected.Error())},
		{"unmount success", installer.UnmountSuccess{}, nil, deploy.Success(target, MessageUnmounted)},
		{"unmount failure", installer.UnmountFailure{}, nil, deploy.Failure(target, MessageUnmountFailed)},
		{"unknown variant", unknownResult{}, nil, deploy.Failure(target, MessageUnknownResult)},
		{"nil result", nil, nil, deploy.Failure(target, MessageUnknownResult)},
		{"raised fault", nil, errIO, deploy.Failure(target, errIO.Error())},
		{"fault wins over result", installer.DirectSuccess{}, errIO, deploy.Failure(target, errIO.Error())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, Classify(target, tt.result, tt.err))
		})
	}
}

// TestInstallAll_OneOutcomePerTarget dispatches N tasks and returns N outcomes in target order.
func TestInstallAll_OneOutcomePerTarget(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{respond: func(_ context.Context, target deploy.Target) (installer.Result, error) {
		if target.Serial == "C" {
			return installer.DirectFailure{Err: errIO}, nil
		}

		return installer.DirectSuccess{}, nil
	}}

	targets := ResolveTargets([]string{"A", "B", "C", "D", "A"})
	outcomes := InstallAll(context.Background(), factory, targets, installer.APK{Path: "app.apk"})

	require.Len(t, outcomes, len(targets))
	require.Len(t, factory.bindings, len(targets))

	for i, o := range outcomes {
		require.Equal(t, targets[i], o.Target)
	}

	require.False(t, outcomes[2].Succeeded())
	require.Equal(t, deploy.AtLeastOneFailed, deploy.Aggregate(outcomes))
}

// TestInstallAll_RunsConcurrently proves every task is in flight at the same time.
func TestInstallAll_RunsConcurrently(t *testing.T) {
	t.Parallel()

	const tasks = 8

	var arrived sync.WaitGroup

	arrived.Add(tasks)

	released := make(chan struct{})

	go func() {
		arrived.Wait()
		close(released)
	}()

	factory := &fakeFactory{respond: func(context.Context, deploy.Target) (installer.Result, error) {
		arrived.Done()

		select {
		case <-released:
			return installer.DirectSuccess{}, nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("tasks did not run concurrently")
		}
	}}

	serials := make([]string, tasks)
	for i := range serials {
		serials[i] = fmt.Sprintf("emulator-%d", 5554+2*i)
	}

	outcomes := InstallAll(context.Background(), factory, ResolveTargets(serials), installer.APK{Path: "app.apk"})

	require.Len(t, outcomes, tasks)
	require.Equal(t, deploy.AllSucceeded, deploy.Aggregate(outcomes))
}

// TestInstallAll_StrategyIsInvocationWide binds every task with the same package name.
func TestInstallAll_StrategyIsInvocationWide(t *testing.T) {
	t.Parallel()

	for _, packageName := range []string{"", "com.example"} {
		factory := &fakeFactory{respond: bySerial(nil)}

		InstallAll(context.Background(), factory, ResolveTargets([]string{"A", "B", "C"}),
			installer.APK{Path: "app.apk", PackageName: packageName})

		require.Len(t, factory.bindings, 3)

		for _, b := range factory.bindings {
			require.Equal(t, packageName, b.packageName)
		}
	}
}

// TestInstallAll_FaultsAreIsolated keeps errors and panics inside their own task.
func TestInstallAll_FaultsAreIsolated(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{respond: func(_ context.Context, target deploy.Target) (installer.Result, error) {
		switch target.Serial {
		case "panics":
			panic("boom")
		case "fails":
			return nil, errIO
		default:
			return installer.MountSuccess{}, nil
		}
	}}

	ctx, logs := capture()

	outcomes := InstallAll(ctx, factory, ResolveTargets([]string{"A", "panics", "fails", "B"}),
		installer.APK{Path: "app.apk", PackageName: "com.example"})

	require.Len(t, outcomes, 4)
	require.True(t, outcomes[0].Succeeded())
	require.False(t, outcomes[1].Succeeded())
	require.Contains(t, outcomes[1].Detail, "boom")
	require.Equal(t, deploy.Failure(deploy.Target{Serial: "fails"}, errIO.Error()), outcomes[2])
	require.True(t, outcomes[3].Succeeded())

	require.Contains(t, logs.String(), errIO.Error())
	require.Contains(t, logs.String(), MessageMounted)
}

// TestInstallAll_SiblingFailureDoesNotCancel checks that tasks see no cancellation from a failed sibling.
func TestInstallAll_SiblingFailureDoesNotCancel(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{respond: func(ctx context.Context, target deploy.Target) (installer.Result, error) {
		if target.Serial == "fast" {
			return nil, errIO
		}

		time.Sleep(50 * time.Millisecond)

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return installer.DirectSuccess{}, nil
	}}

	outcomes := InstallAll(context.Background(), factory, ResolveTargets([]string{"fast", "slow"}),
		installer.APK{Path: "app.apk"})

	require.False(t, outcomes[0].Succeeded())
	require.True(t, outcomes[1].Succeeded())
}

// TestInstallAll_LogsOutcomeAboveConfiguredLevel keeps per-device outcome lines when only errors are logged.
func TestInstallAll_LogsOutcomeAboveConfiguredLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := logger.ToContext(context.Background(), logger.New(zapcore.ErrorLevel, &buf))
	factory := &fakeFactory{respond: bySerial(map[string]installer.Result{"A": installer.DirectSuccess{}})}

	logger.InfoKV(ctx, "Deploying APK")

	outcomes := InstallAll(ctx, factory, ResolveTargets([]string{"A"}), installer.APK{Path: "app.apk"})

	require.True(t, outcomes[0].Succeeded())
	require.NotContains(t, buf.String(), "Deploying APK")
	require.Contains(t, buf.String(), MessageInstalled)
}

// TestUninstallAll binds the unmount flag for every task.
func TestUninstallAll(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{respond: bySerial(map[string]installer.Result{
		"A": installer.UnmountSuccess{},
		"B": installer.UnmountFailure{},
	})}

	outcomes := UninstallAll(context.Background(), factory, ResolveTargets([]string{"A", "B"}), "com.example", true)

	require.Equal(t, []deploy.Outcome{
		deploy.Success(deploy.Target{Serial: "A"}, MessageUnmounted),
		deploy.Failure(deploy.Target{Serial: "B"}, MessageUnmountFailed),
	}, outcomes)

	for _, b := range factory.bindings {
		require.True(t, b.unmount)
	}
}

// TestDeployArtifact_DefaultDevice installs on the default device and succeeds.
func TestDeployArtifact_DefaultDevice(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{respond: bySerial(map[string]installer.Result{"": installer.DirectSuccess{}})}
	ctx, logs := capture()

	var summary bytes.Buffer

	err := deployArtifact(ctx, &InstallOptions{Summary: &summary}, &artifact.Info{Path: "app.apk"}, factory)
	require.NoError(t, err)

	require.Equal(t, []binding{{target: deploy.DefaultTarget()}}, factory.bindings)
	require.Contains(t, logs.String(), MessageInstalled)
	require.Contains(t, summary.String(), "default device")
}

// TestDeployArtifact_MountOnTwoDevices fails the run when one of two mounts fails.
func TestDeployArtifact_MountOnTwoDevices(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{respond: bySerial(map[string]installer.Result{
		"A": installer.MountSuccess{},
		"B": installer.MountFailure{},
	})}
	ctx, logs := capture()

	opts := &InstallOptions{Serials: []string{"A", "B"}, PackageName: "com.example"}

	err := deployArtifact(ctx, opts, &artifact.Info{Path: "app.apk"}, factory)
	require.ErrorIs(t, err, deploy.ErrDeploymentFailed)

	require.Len(t, factory.bindings, 2)
	require.Contains(t, logs.String(), MessageMounted)
	require.Contains(t, logs.String(), MessageMountFailed)
}

// TestDeployArtifact_Fault fails the run when the only install raises a fault.
func TestDeployArtifact_Fault(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{respond: func(context.Context, deploy.Target) (installer.Result, error) {
		return nil, errIO
	}}
	ctx, logs := capture()

	err := deployArtifact(ctx, &InstallOptions{Serials: []string{"A"}}, &artifact.Info{Path: "app.apk"}, factory)
	require.ErrorIs(t, err, deploy.ErrDeploymentFailed)
	require.Contains(t, logs.String(), errIO.Error())
}

// TestRemovePackage reports the aggregate of an uninstall run.
func TestRemovePackage(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{respond: bySerial(map[string]installer.Result{
		"A": installer.UninstallSuccess{},
	})}

	err := removePackage(context.Background(), &UninstallOptions{Serials: []string{"A"}, PackageName: "com.example"}, factory)
	require.NoError(t, err)
	require.Equal(t, []binding{{target: deploy.Target{Serial: "A"}}}, factory.bindings)
}

// fakeLister returns a fixed device list.
type fakeLister struct {
	devices []adb.Device
	err     error
}

func (f fakeLister) Devices(context.Context) ([]adb.Device, error) {
	return f.devices, f.err
}

// TestListDevices prints the devices or returns the adb error.
func TestListDevices(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	err := listDevices(context.Background(), fakeLister{devices: []adb.Device{
		{Serial: "emulator-5554", State: adb.StateDevice},
	}}, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "emulator-5554")

	err = listDevices(context.Background(), fakeLister{err: errIO}, &out)
	require.ErrorIs(t, err, errIO)
}

// TestInstall_RejectsBadInput fails before contacting any device.
func TestInstall_RejectsBadInput(t *testing.T) {
	t.Parallel()

	err := Install(context.Background(), &InstallOptions{ArtifactPath: "app.apk", PackageName: "not a package"})
	require.ErrorIs(t, err, installer.ErrInvalidPackageName)

	err = Install(context.Background(), &InstallOptions{ArtifactPath: t.TempDir()})
	require.ErrorIs(t, err, artifact.ErrNotAFile)

	err = Uninstall(context.Background(), &UninstallOptions{})
	require.ErrorIs(t, err, installer.ErrPackageNameRequired)
}

// TestInstall_RejectsBlankSerial never maps a blank serial to the default device.
func TestInstall_RejectsBlankSerial(t *testing.T) {
	t.Parallel()

	err := Install(context.Background(), &InstallOptions{ArtifactPath: "app.apk", Serials: []string{"A", ""}})
	require.ErrorIs(t, err, ErrEmptySerial)
	require.ErrorContains(t, err, "argument 2")

	err = Uninstall(context.Background(), &UninstallOptions{PackageName: "com.example", Serials: []string{"  "}})
	require.ErrorIs(t, err, ErrEmptySerial)

	require.NoError(t, validateSerials(nil))
	require.NoError(t, validateSerials([]string{"A", "A"}))
}
