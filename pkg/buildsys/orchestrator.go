package buildsys

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"

	"github.com/ngld/rackbuild/pkg/manifest"
)

// ManifestSource is called once the host build finished to retrieve the plugin list
type ManifestSource func() (*manifest.Manifest, error)

// ManifestFile returns a ManifestSource reading the given file
func ManifestFile(path string) ManifestSource {
	return func() (*manifest.Manifest, error) {
		return manifest.Load(path)
	}
}

// Orchestrator runs the host build followed by every plugin in the manifest
type Orchestrator struct {
	Options  Options
	Executor Executor
	Manifest ManifestSource
	// Progress is called after each plugin finished (optional)
	Progress func(done, total int)
}

// StepFailedError is returned by Run when the fail-fast policy stopped the run
type StepFailedError struct {
	Target string
	Step   string
	Err    *ExitError
}

var _ error = (*StepFailedError)(nil)

func (e *StepFailedError) Error() string {
	return e.Target + ": step " + e.Step + " failed: " + e.Err.Error()
}

func (e *StepFailedError) Unwrap() error {
	return e.Err
}

type runState struct {
	report   *Report
	sequence []Command
}

// Run executes the whole build. The returned report is never nil and contains
// every step that was attempted, even if an error is returned.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	opts := o.Options
	report := &Report{
		RunID:   nanoid.New(),
		Started: time.Now(),
		Jobs:    opts.Jobs,
		Profile: opts.Profile,
		Policy:  opts.Policy,
		DryRun:  opts.DryRun,
	}
	defer func() {
		report.Finished = time.Now()
	}()

	if opts.Jobs < 1 {
		return report, eris.Errorf("invalid job count %d", opts.Jobs)
	}

	if o.Manifest == nil {
		return report, eris.New("no manifest source configured")
	}

	state := &runState{
		report:   report,
		sequence: BuildSequence(opts.Jobs, opts.Profile),
	}

	logger := log(ctx).With().Str("run", report.RunID).Logger()
	ctx = WithLogger(ctx, &logger)

	logger.Info().
		Int("jobs", opts.Jobs).
		Str("profile", string(opts.Profile)).
		Str("policy", string(opts.Policy)).
		Bool("dry", opts.DryRun).
		Msg("Starting build")

	err := o.buildHost(ctx, state)
	if err != nil {
		return o.abort(report, err)
	}

	m, err := o.Manifest()
	if err != nil {
		return o.abort(report, eris.Wrap(err, "failed to load manifest"))
	}

	for _, repo := range m.DuplicateRepos() {
		logger.Warn().
			Str("repo", repo).
			Msg("repository is listed more than once; later entries will reuse the same directory")
	}

	pluginsDir := opts.PluginsDir()
	if !opts.DryRun {
		err = os.MkdirAll(pluginsDir, 0o770)
		if err != nil {
			return o.abort(report, eris.Wrapf(err, "Failed to create %s", pluginsDir))
		}
	}

	for idx, plugin := range m.Plugins {
		err = o.buildPlugin(ctx, state, pluginsDir, plugin)
		if o.Progress != nil {
			o.Progress(idx+1, len(m.Plugins))
		}

		if err != nil {
			return o.abort(report, err)
		}
	}

	failures := report.Failures()
	if failures > 0 {
		logger.Warn().
			Int("failed_steps", failures).
			Strs("targets", report.FailedTargets()).
			Msg("Build finished with failures")
	} else {
		logger.Info().Msg("Build finished")
	}

	return report, nil
}

func (o *Orchestrator) abort(report *Report, err error) (*Report, error) {
	report.Aborted = err.Error()
	return report, err
}

func (o *Orchestrator) buildHost(ctx context.Context, state *runState) error {
	opts := o.Options
	target := TargetResult{
		Name: "host",
		Kind: KindHost,
		Dir:  opts.HostDir(),
	}
	started := time.Now()
	defer func() {
		target.Duration = time.Since(started)
		state.report.Targets = append(state.report.Targets, target)
	}()

	if opts.CloneHost {
		failed, err := o.step(ctx, &target, "clone", opts.Root, CloneCmd(opts.Remote, opts.HostUser, opts.HostRepo))
		if err != nil {
			return err
		}

		// Every plugin lives inside the host checkout, so there is nothing to
		// continue with if the clone left no directory behind.
		if failed && o.skipMissing(ctx, &target) {
			return &LaunchError{
				Command: state.sequence[0],
				Dir:     target.Dir,
				Err:     os.ErrNotExist,
			}
		}
	}

	return o.runSequence(ctx, state, &target)
}

func (o *Orchestrator) buildPlugin(ctx context.Context, state *runState, pluginsDir string, plugin manifest.Plugin) error {
	target := TargetResult{
		Name: plugin.Slug(),
		Kind: KindPlugin,
		Dir:  filepath.Join(pluginsDir, plugin.Repo),
	}
	if plugin.Branch != nil {
		target.Branch = *plugin.Branch
	}
	started := time.Now()
	defer func() {
		target.Duration = time.Since(started)
		state.report.Targets = append(state.report.Targets, target)
	}()

	failed, err := o.step(ctx, &target, "clone", pluginsDir, CloneCmd(o.Options.Remote, plugin.User, plugin.Repo))
	if err != nil {
		return err
	}

	// The clone step creates the target directory. If it failed and left nothing
	// behind, the remaining steps would fail to launch.
	if failed && o.skipMissing(ctx, &target) {
		return nil
	}

	if plugin.Branch != nil {
		_, err = o.step(ctx, &target, "checkout", target.Dir, CheckoutCmd(*plugin.Branch))
		if err != nil {
			return err
		}
	}

	err = o.runSequence(ctx, state, &target)
	if err != nil {
		return err
	}

	if !o.Options.DryRun {
		version, err := manifest.ReadPluginVersion(target.Dir)
		if err != nil {
			log(ctx).Warn().
				Str("target", target.Name).
				Err(err).
				Msg("could not determine plugin version")
		} else {
			target.Version = version.String()
		}
	}

	return nil
}

func (o *Orchestrator) runSequence(ctx context.Context, state *runState, target *TargetResult) error {
	for _, cmd := range state.sequence {
		_, err := o.step(ctx, target, StepName(cmd), target.Dir, cmd)
		if err != nil {
			return err
		}
	}

	return nil
}

// skipMissing checks whether the target directory exists after a failed clone.
// If it doesn't, the target is marked as skipped and true is returned.
func (o *Orchestrator) skipMissing(ctx context.Context, target *TargetResult) bool {
	_, err := os.Stat(target.Dir)
	if err == nil {
		return false
	}

	log(ctx).Error().
		Str("target", target.Name).
		Str("path", target.Dir).
		Msg("clone failed and left no checkout behind; skipping remaining steps")

	target.Steps = append(target.Steps, StepResult{
		Name:   "build",
		Dir:    target.Dir,
		Status: StepSkipped,
		Error:  "checkout missing",
	})
	return true
}

// step runs a single command and records the result in target. It returns
// failed = true if the command exited with a non-zero status and the policy
// allows the run to continue. A non-nil error means the run must stop.
func (o *Orchestrator) step(ctx context.Context, target *TargetResult, name, dir string, cmd Command) (failed bool, err error) {
	if err = ctx.Err(); err != nil {
		return false, err
	}

	logger := log(ctx)
	logger.Info().
		Str("target", target.Name).
		Str("path", dir).
		Bool("command", true).
		Msg(cmd.String())

	result := StepResult{
		Name:    name,
		Command: cmd,
		Dir:     dir,
	}

	if o.Options.DryRun {
		result.Status = StepSkipped
		target.Steps = append(target.Steps, result)
		return false, nil
	}

	started := time.Now()
	execErr := o.Executor.Exec(ctx, dir, cmd)
	result.Duration = time.Since(started)

	if execErr == nil {
		result.Status = StepOK
		target.Steps = append(target.Steps, result)
		return false, nil
	}

	result.Status = StepFailed
	result.Error = execErr.Error()

	var exitErr *ExitError
	if errors.As(execErr, &exitErr) {
		result.ExitCode = exitErr.Code
		target.Steps = append(target.Steps, result)

		logger.Error().
			Str("target", target.Name).
			Str("step", name).
			Int("exit_code", exitErr.Code).
			Msgf("%s failed", cmd)

		if o.Options.Policy == PolicyFailFast {
			return true, &StepFailedError{Target: target.Name, Step: name, Err: exitErr}
		}

		return true, nil
	}

	target.Steps = append(target.Steps, result)
	return true, execErr
}
