// Package orchestrator drives the module build: it walks the dependency
// frontier exposed by deps.Manager, dispatches buildable modules onto a
// workqueue, and fails the run fast on the first module failure.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/anvilbuild/anvil/internal/ctxlog"
	"github.com/anvilbuild/anvil/internal/deps"
	"github.com/anvilbuild/anvil/internal/dist"
	"github.com/anvilbuild/anvil/internal/graph"
	"github.com/anvilbuild/anvil/internal/workqueue"
)

// Options configures a build run.
type Options struct {
	// Jobs is the worker count. Non-positive defaults to the CPU count.
	Jobs int
	// SkipDeps marks dependency-only modules complete without building them.
	// The caller guarantees those modules were built previously.
	SkipDeps bool
}

// ModuleFailureError reports the module whose build or install failed, with
// the path to its captured log.
type ModuleFailureError struct {
	Module  string
	LogPath string
}

func (e *ModuleFailureError) Error() string {
	return fmt.Sprintf("build failed: %s (log: %s)", e.Module, e.LogPath)
}

// ModulesToBuild resolves the requested module names against the registry
// and returns the dependency-closed module list plus the set of modules that
// are in the list only as dependencies of the requested ones. Unknown names
// and cycles are configuration errors reported before any work starts.
func ModulesToBuild(registry *dist.Registry, names []string) ([]*dist.Module, map[string]*dist.Module, error) {
	closure, err := graph.Closure(names, registry.Deps)
	if err != nil {
		return nil, nil, err
	}

	requested := make(map[string]struct{}, len(names))
	for _, name := range names {
		requested[name] = struct{}{}
	}

	modules := make([]*dist.Module, 0, len(closure))
	depsOnly := make(map[string]*dist.Module)
	for _, name := range closure {
		m, _ := registry.Get(name)
		modules = append(modules, m)
		if _, ok := requested[name]; !ok {
			depsOnly[name] = m
		}
	}
	return modules, depsOnly, nil
}

// buildResult is the payload returned by a module build task.
type buildResult struct {
	module *dist.Module
	ok     bool
}

// launchBuild builds then installs one module, capturing all output in the
// module's log file. A failure is reported through the result, never as a
// panic: one failing module must not crash the scheduler.
func launchBuild(ctx context.Context, bctx *dist.BuildContext, m *dist.Module, logDir string) workqueue.TaskFunc {
	return func(w *workqueue.Worker) (any, error) {
		logFile, err := os.Create(m.LogPath(logDir))
		if err != nil {
			return buildResult{module: m}, nil
		}
		defer logFile.Close()

		w.SetStatus(fmt.Sprintf("Building %s...", m))
		if err := m.Build(ctx, bctx, logFile); err != nil {
			fmt.Fprintf(logFile, "build failed: %v\n", err)
			return buildResult{module: m}, nil
		}

		w.SetStatus(fmt.Sprintf("Installing %s...", m))
		if err := m.Install(ctx, bctx, logFile); err != nil {
			fmt.Fprintf(logFile, "install failed: %v\n", err)
			return buildResult{module: m}, nil
		}
		return buildResult{module: m, ok: true}, nil
	}
}

// launchBuildable dispatches every currently buildable module. With SkipDeps
// set, dependency-only modules are completed immediately instead of being
// enqueued; the loop keeps draining the frontier so that a chain of skipped
// modules cannot leave the queue without work while modules remain.
func launchBuildable(ctx context.Context, bctx *dist.BuildContext, mgr *deps.Manager, queue *workqueue.Queue, logDir string, opts Options, skip map[string]*dist.Module) int {
	launched := 0
	for mgr.HasBuildable() {
		for _, m := range mgr.Buildable() {
			if opts.SkipDeps {
				if _, ok := skip[m.Name]; ok {
					mgr.Complete(m)
					continue
				}
			}
			queue.AddTask(launchBuild(ctx, bctx, m, logDir))
			launched++
		}
	}
	return launched
}

// Build runs the full module build. It returns nil once every module in the
// list has completed, or the first failure as a ModuleFailureError with the
// failing module's log surfaced and appended to the cumulative error log.
func Build(ctx context.Context, bctx *dist.BuildContext, modules []*dist.Module, depsOnly map[string]*dist.Module, opts Options) error {
	logger := ctxlog.FromContext(ctx)

	logDir := filepath.Join(bctx.DistDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(bctx.InstallRoot(), 0o755); err != nil {
		return err
	}

	mgr, err := deps.NewManager(modules)
	if err != nil {
		return err
	}

	queue := workqueue.New(opts.Jobs)
	defer queue.Shutdown(ctx)

	launchBuildable(ctx, bctx, mgr, queue, logDir, opts, depsOnly)

	for !queue.Finished() {
		res, err := queue.GetResult()
		if err != nil {
			return err
		}
		if res.Err != nil {
			// A fault in the scheduler glue itself, not a module build
			// failure; nothing useful is in any module log.
			return fmt.Errorf("internal build task error: %w", res.Err)
		}
		br := res.Value.(buildResult)
		if !br.ok {
			logPath := br.module.LogPath(logDir)
			surfaceFailureLog(ctx, logPath, bctx.DistDir)
			return &ModuleFailureError{Module: br.module.Name, LogPath: logPath}
		}
		logger.Info("Build succeeded.", "module", br.module.Name)

		mgr.Complete(br.module)
		launchBuildable(ctx, bctx, mgr, queue, logDir, opts, depsOnly)
	}

	// A non-empty frontier here means the scheduler stopped early. That is
	// an internal invariant violation, not a user error.
	if mgr.HasBuildable() {
		var names []string
		for _, m := range mgr.Buildable() {
			names = append(names, m.Name)
		}
		return fmt.Errorf("builder stopped early; modules are still buildable: %v", names)
	}

	logger.Info("Build finished.")
	return nil
}

// surfaceFailureLog prints the failing module's log and appends it to the
// cumulative build error log consumed by the build server.
func surfaceFailureLog(ctx context.Context, logPath, distDir string) {
	logger := ctxlog.FromContext(ctx)
	contents, err := os.ReadFile(logPath)
	if err != nil {
		logger.Error("Could not read module build log.", "path", logPath, "error", err)
		return
	}
	fmt.Fprint(os.Stderr, string(contents))

	errorLog := filepath.Join(distDir, "logs", "build_error.log")
	f, err := os.OpenFile(errorLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Error("Could not open cumulative error log.", "path", errorLog, "error", err)
		return
	}
	defer f.Close()
	_, _ = io.WriteString(f, "\n")
	_, _ = f.Write(contents)
}
