// Package builder expands the test corpus across build configurations,
// drives the load-restricting work queue to build every test, classifies the
// outcomes, and folds them into a Report.
package builder

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/anvilbuild/anvil/internal/ctxlog"
	"github.com/anvilbuild/anvil/internal/tests/cases"
	"github.com/anvilbuild/anvil/internal/tests/report"
	"github.com/anvilbuild/anvil/internal/tests/result"
	"github.com/anvilbuild/anvil/internal/tests/spec"
	"github.com/anvilbuild/anvil/internal/workqueue"
)

// heavySuite is the suite whose builds are too demanding to co-schedule
// freely; its tasks go through the load-restricted submission path.
const heavySuite = "libc++"

// Options sizes the worker pool.
type Options struct {
	// Jobs is the worker count. Non-positive defaults to the CPU count.
	Jobs int
	// RestrictedJobs caps concurrently running heavy-suite builds.
	// Non-positive defaults to workqueue.DefaultRestrictedCapacity.
	RestrictedJobs int
}

// TestBuilder discovers the test corpus and builds it.
type TestBuilder struct {
	testSpec *spec.TestSpec
	options  spec.TestOptions
	queueOpt Options

	tests map[string][]cases.Test
	// buildDirs detects two tests claiming the same build directory, which
	// would silently clobber artifacts.
	buildDirs map[string]string

	objDir  string
	distDir string
}

// runOutcome is the payload produced by one test build task.
type runOutcome struct {
	suite      string
	res        result.TestResult
	additional []cases.Test
}

// New discovers the corpus for the given spec and options. Each suite's
// tests are expanded across every (ABI, toolchain-file) pair; API levels are
// resolved by the tests themselves once built.
func New(ctx context.Context, testSpec *spec.TestSpec, options spec.TestOptions, queueOpt Options) (*TestBuilder, error) {
	b := &TestBuilder{
		testSpec:  testSpec,
		options:   options,
		queueOpt:  queueOpt,
		tests:     make(map[string][]cases.Test),
		buildDirs: make(map[string]string),
		objDir:    filepath.Join(options.OutDir, "obj"),
		distDir:   filepath.Join(options.OutDir, "dist"),
	}
	if err := b.findTests(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *TestBuilder) findTests(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	scanner := cases.NewBuildTestScanner(b.options.ToolchainPath)
	for _, abi := range b.testSpec.Abis {
		for _, toolchain := range spec.AllToolchains {
			scanner.AddBuildConfiguration(spec.NewBuildConfiguration(abi, toolchain))
		}
	}

	for _, suite := range b.testSpec.Suites {
		suiteDir := filepath.Join(b.options.SrcDir, suite)
		if _, err := os.Stat(suiteDir); err != nil {
			return fmt.Errorf("suite %s: %w", suite, err)
		}
		if err := b.addSuite(suite, suiteDir, scanner); err != nil {
			return err
		}
		logger.Debug("Discovered suite.", "suite", suite, "tests", len(b.tests[suite]))
	}
	return nil
}

// addSuite registers a suite's tests, rejecting duplicate suites and
// overlapping build directories.
func (b *TestBuilder) addSuite(name, suiteDir string, scanner cases.Scanner) error {
	if _, ok := b.tests[name]; ok {
		return fmt.Errorf("suite %s already exists", name)
	}
	tests, err := cases.ScanTestSuite(suiteDir, scanner)
	if err != nil {
		return err
	}
	for _, test := range tests {
		dir := test.BuildDir("")
		if owner, ok := b.buildDirs[dir]; ok {
			return fmt.Errorf("duplicate build directory %s claimed by %s and %s %s",
				dir, owner, name, test)
		}
		b.buildDirs[dir] = fmt.Sprintf("%s %s", name, test)
	}
	b.tests[name] = tests
	return nil
}

// Tests returns the discovered corpus keyed by suite.
func (b *TestBuilder) Tests() map[string][]cases.Test {
	return b.tests
}

// Build builds the whole corpus and returns the aggregated Report. When the
// run succeeded and packaging was requested, the built tests are packaged
// for device execution.
func (b *TestBuilder) Build(ctx context.Context) (*report.Report, error) {
	if b.options.Clean {
		if err := os.RemoveAll(b.options.OutDir); err != nil {
			return nil, err
		}
	}
	for _, dir := range []string{b.objDir, b.distDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	filter := cases.FilterFromString(b.options.TestFilter)
	rep, err := b.doBuild(ctx, filter)
	if err != nil {
		return nil, err
	}

	if b.options.BuildReport != "" {
		if err := rep.WriteFile(b.options.BuildReport); err != nil {
			return nil, err
		}
	}
	if rep.Successful() && b.options.PackagePath != "" {
		if err := b.Package(ctx, filter); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func (b *TestBuilder) doBuild(ctx context.Context, filter *cases.Filter) (*report.Report, error) {
	queue := workqueue.NewLoadRestricting(b.queueOpt.Jobs, b.queueOpt.RestrictedJobs)
	defer queue.Shutdown(ctx)

	for suite, tests := range b.tests {
		// Configuration expansion put every variant of one test next to its
		// siblings, so the heaviest builds cluster. Shuffle to spread them
		// across the run.
		shuffled := make([]cases.Test, len(tests))
		copy(shuffled, tests)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for _, test := range shuffled {
			if !filter.Matches(test.Name()) {
				continue
			}
			b.submit(ctx, queue, suite, test)
		}
	}

	rep := report.New()
	if err := b.waitForResults(ctx, rep, queue); err != nil {
		return nil, err
	}
	return rep, nil
}

// submit routes a test onto the right submission path.
func (b *TestBuilder) submit(ctx context.Context, queue *workqueue.LoadRestrictingQueue, suite string, test cases.Test) {
	task := b.runTestTask(ctx, suite, test)
	if suite == heavySuite {
		queue.AddLoadRestrictedTask(task)
	} else {
		queue.AddTask(task)
	}
}

// runTestTask wraps one test build into a work queue task. All failure modes
// are folded into the returned outcome; a test can never crash the scheduler.
func (b *TestBuilder) runTestTask(ctx context.Context, suite string, test cases.Test) workqueue.TaskFunc {
	return func(w *workqueue.Worker) (any, error) {
		w.SetStatus(fmt.Sprintf("Building %s", test))

		if reason := test.CheckUnsupported(); reason != "" {
			message := fmt.Sprintf("test unsupported for %s", reason)
			return runOutcome{suite: suite, res: result.NewSkipped(test, message)}, nil
		}

		res, additional, err := test.Run(ctx, b.objDir, b.distDir)
		if err != nil {
			return runOutcome{suite: suite, res: result.NewFailure(test, err.Error())}, nil
		}
		if test.IsNegativeTest() {
			res = fixupNegativeTest(res)
		}
		if config, bug := test.CheckBroken(); config != "" {
			res = fixupExpectedFailure(res, config, bug)
		}
		return runOutcome{suite: suite, res: res, additional: additional}, nil
	}
}

// waitForResults drains the queue, resubmitting any additional tests a build
// discovered. Discovery only grows the result set: recorded results are
// never replaced.
func (b *TestBuilder) waitForResults(ctx context.Context, rep *report.Report, queue *workqueue.LoadRestrictingQueue) error {
	logger := ctxlog.FromContext(ctx)
	for !queue.Finished() {
		results, err := queue.GetResults()
		if err != nil {
			return err
		}
		for _, qres := range results {
			if qres.Err != nil {
				return fmt.Errorf("internal test task error: %w", qres.Err)
			}
			outcome := qres.Value.(runOutcome)
			if len(outcome.additional) > 0 && !outcome.res.Passed() {
				return fmt.Errorf("test %s expanded new tests alongside a non-passing result",
					outcome.res.Test())
			}
			for _, extra := range outcome.additional {
				b.submit(ctx, queue, outcome.suite, extra)
			}
			if outcome.res.Failed() {
				logger.Info("Test failed.", "result", outcome.res.String())
			} else {
				logger.Debug("Test finished.", "result", outcome.res.String())
			}
			rep.Add(outcome.suite, outcome.res)
		}
	}
	return nil
}

// fixupNegativeTest inverts a result for tests that are expected to fail:
// the underlying action failing is the passing case. This is a
// classification applied exactly once after the action runs, not a toggle.
func fixupNegativeTest(res result.TestResult) result.TestResult {
	switch r := res.(type) {
	case result.Failure:
		return result.NewSuccess(r.Test())
	case result.Success:
		return result.NewFailure(r.Test(), "negative test case succeeded")
	default:
		// Skipped, ExpectedFailure, UnexpectedSuccess pass through.
		return res
	}
}

// fixupExpectedFailure reclassifies a result for a (test, configuration)
// pair that is known broken: failures are expected, successes mean the
// broken marking is stale.
func fixupExpectedFailure(res result.TestResult, config, bug string) result.TestResult {
	switch r := res.(type) {
	case result.Failure:
		return result.NewExpectedFailure(r.Test(), r.Message, config, bug)
	case result.Success:
		return result.NewUnexpectedSuccess(r.Test(), config, bug)
	default:
		return res
	}
}
