// Package cases models discovered tests: what to build, with which build
// system, for which configuration, and how to classify the outcome.
package cases

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/anvilbuild/anvil/internal/tests/predicate"
	"github.com/anvilbuild/anvil/internal/tests/result"
	"github.com/anvilbuild/anvil/internal/tests/spec"
)

// Test is one buildable test in one configuration.
type Test interface {
	Name() string
	String() string
	Config() spec.BuildConfiguration
	BuildSystem() string

	// CheckUnsupported returns a non-empty reason when the test should be
	// skipped for its configuration without being built.
	CheckUnsupported() string
	// CheckBroken reports the (configuration, bug) pair when this (test,
	// configuration) is known broken.
	CheckBroken() (string, string)
	// IsNegativeTest reports whether a failing action means a pass.
	IsNegativeTest() bool

	// Run performs the test's build action. It may return additional tests
	// discovered during the build; the builder resubmits them to the queue.
	// Additional tests accompany only passing results.
	Run(ctx context.Context, objDir, distDir string) (result.TestResult, []Test, error)

	// BuildDir is the test's build directory below outDir. Two tests must
	// never share one.
	BuildDir(outDir string) string
}

// Runner performs the actual build-system invocation for a BuildTest. The
// concrete compiler/CMake plumbing is external to the scheduler; it is
// injected here so tests of the scheduler can substitute their own.
type Runner func(ctx context.Context, t *BuildTest, objDir, distDir string) (result.TestResult, []Test, error)

// BuildTest is a test whose action is building a project against the
// installed toolchain.
type BuildTest struct {
	name        string
	testDir     string
	config      spec.BuildConfiguration
	buildSystem string
	provider    predicate.Provider
	runner      Runner
}

// NewBuildTest creates a BuildTest.
func NewBuildTest(name, testDir string, config spec.BuildConfiguration, buildSystem string, provider predicate.Provider, runner Runner) *BuildTest {
	if provider == nil {
		provider = predicate.NullProvider{}
	}
	return &BuildTest{
		name:        name,
		testDir:     testDir,
		config:      config,
		buildSystem: buildSystem,
		provider:    provider,
		runner:      runner,
	}
}

func (t *BuildTest) Name() string { return t.name }

func (t *BuildTest) String() string {
	return fmt.Sprintf("%s [%s]", t.name, t.config)
}

func (t *BuildTest) Config() spec.BuildConfiguration { return t.config }

func (t *BuildTest) BuildSystem() string { return t.buildSystem }

// TestDir is the test's source directory.
func (t *BuildTest) TestDir() string { return t.testDir }

func (t *BuildTest) CheckUnsupported() string {
	return t.provider.BuildUnsupported(t.config)
}

func (t *BuildTest) CheckBroken() (string, string) {
	return t.provider.BuildBroken(t.config)
}

func (t *BuildTest) IsNegativeTest() bool {
	return t.provider.IsNegativeTest()
}

func (t *BuildTest) Run(ctx context.Context, objDir, distDir string) (result.TestResult, []Test, error) {
	return t.runner(ctx, t, objDir, distDir)
}

func (t *BuildTest) BuildDir(outDir string) string {
	return filepath.Join(outDir, t.config.String(), t.buildSystem, t.name)
}
