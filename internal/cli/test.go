package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anvilbuild/anvil/internal/ctxlog"
	"github.com/anvilbuild/anvil/internal/tests/builder"
	"github.com/anvilbuild/anvil/internal/tests/spec"
	"github.com/anvilbuild/anvil/internal/workqueue"
)

type testArgs struct {
	specPath       string
	toolchainPath  string
	srcDir         string
	outDir         string
	filter         string
	clean          bool
	buildReport    string
	packagePath    string
	jobs           int
	restrictedJobs int
}

func newTestCmd() *cobra.Command {
	var args testArgs

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Build the test corpus against an installed distribution",
		Long: "Test expands every test across the configurations the test spec " +
			"selects, builds them in parallel, and reports the classified " +
			"outcomes. Successful runs can optionally be packaged for device " +
			"execution.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTest(cmd, args)
		},
	}

	cmd.Flags().StringVar(&args.specPath, "spec", "qa_config.yaml", "test spec file selecting ABIs, suites, and devices")
	cmd.Flags().StringVar(&args.toolchainPath, "toolchain", "", "installed distribution to build the tests against")
	cmd.Flags().StringVar(&args.srcDir, "src-dir", "tests", "root of the test sources, one subdirectory per suite")
	cmd.Flags().StringVar(&args.outDir, "out-dir", "test-out", "test output directory")
	cmd.Flags().StringVar(&args.filter, "filter", "", "comma-separated test name globs")
	cmd.Flags().BoolVar(&args.clean, "clean", false, "remove the output directory before building")
	cmd.Flags().StringVar(&args.buildReport, "build-report", "", "write the serialized report to this path")
	cmd.Flags().StringVar(&args.packagePath, "package", "", "package built tests for device execution at this path")
	cmd.Flags().IntVarP(&args.jobs, "jobs", "j", defaultJobs(), "number of parallel test builds")
	cmd.Flags().IntVar(&args.restrictedJobs, "restricted-jobs", workqueue.DefaultRestrictedCapacity,
		"cap on concurrently running heavy test builds")
	_ = cmd.MarkFlagRequired("toolchain")

	return cmd
}

func runTest(cmd *cobra.Command, args testArgs) error {
	ctx := cmd.Context()
	logger := ctxlog.FromContext(ctx)

	testSpec, err := spec.LoadTestSpec(args.specPath)
	if err != nil {
		return err
	}

	options := spec.TestOptions{
		SrcDir:        args.srcDir,
		ToolchainPath: args.toolchainPath,
		OutDir:        args.outDir,
		TestFilter:    args.filter,
		Clean:         args.clean,
		BuildReport:   args.buildReport,
		PackagePath:   args.packagePath,
	}

	b, err := builder.New(ctx, testSpec, options, builder.Options{
		Jobs:           args.jobs,
		RestrictedJobs: args.restrictedJobs,
	})
	if err != nil {
		return err
	}

	rep, err := b.Build(ctx)
	if err != nil {
		return err
	}

	for suite, suiteReport := range rep.BySuite() {
		logger.Info("Suite finished.",
			"suite", suite,
			"passed", suiteReport.NumPassed(),
			"failed", suiteReport.NumFailed(),
			"skipped", suiteReport.NumSkipped())
	}
	for _, sr := range rep.AllFailed() {
		logger.Error("Test failed.", "suite", sr.Suite, "result", sr.Result.String())
	}

	if !rep.Successful() {
		return fmt.Errorf("%d of %d tests failed", rep.NumFailed(), rep.NumTests())
	}
	logger.Info("All tests passed.", "tests", rep.NumTests())
	return nil
}
