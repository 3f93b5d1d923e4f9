package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/anvilbuild/anvil/internal/ctxlog"
	"github.com/anvilbuild/anvil/internal/dist"
	"github.com/anvilbuild/anvil/internal/orchestrator"
)

type buildArgs struct {
	jobs        int
	modules     []string
	skipDeps    bool
	outDir      string
	distDir     string
	srcDir      string
	buildNumber string
	host        string
}

func newBuildCmd() *cobra.Command {
	var args buildArgs

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the distribution modules",
		Long: "Build resolves the requested modules (all enabled modules by default) " +
			"to their dependency closure and builds them in dependency order, " +
			"in parallel where the graph allows. The run stops at the first " +
			"module failure and surfaces that module's build log.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, args)
		},
	}

	cmd.Flags().IntVarP(&args.jobs, "jobs", "j", defaultJobs(), "number of parallel module builds")
	cmd.Flags().StringSliceVarP(&args.modules, "module", "m", nil, "modules to build (default: all enabled)")
	cmd.Flags().BoolVar(&args.skipDeps, "skip-deps", false, "assume dependencies of the requested modules are already built")
	cmd.Flags().StringVar(&args.outDir, "out-dir", "out", "directory for intermediate build artifacts")
	cmd.Flags().StringVar(&args.distDir, "dist-dir", filepath.Join("out", "dist"), "directory for distributable artifacts and logs")
	cmd.Flags().StringVar(&args.srcDir, "src-dir", ".", "root of the component sources")
	cmd.Flags().StringVar(&args.buildNumber, "build-number", "0", "build number for version stamping (0 for local builds)")
	cmd.Flags().StringVar(&args.host, "host", runtime.GOOS, "host platform to build the distribution for")

	return cmd
}

func runBuild(cmd *cobra.Command, args buildArgs) error {
	ctx := cmd.Context()
	logger := ctxlog.FromContext(ctx)

	host := dist.Host(args.host)
	switch host {
	case dist.Linux, dist.Darwin, dist.Windows:
	default:
		return fmt.Errorf("unsupported host: %s", args.host)
	}

	registry, err := dist.DefaultRegistry()
	if err != nil {
		return err
	}

	names := args.modules
	if len(names) == 0 {
		names = registry.EnabledNames(host)
	}

	modules, depsOnly, err := orchestrator.ModulesToBuild(registry, names)
	if err != nil {
		return err
	}

	for _, dir := range []string{args.outDir, args.distDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	bctx := dist.NewBuildContext(args.outDir, args.distDir, args.srcDir, host, args.buildNumber, registry)
	logger.Info("Starting build.",
		"modules", len(modules), "jobs", args.jobs, "host", host.Tag(), "run_id", bctx.RunID)

	return orchestrator.Build(ctx, bctx, modules, depsOnly, orchestrator.Options{
		Jobs:     args.jobs,
		SkipDeps: args.skipDeps,
	})
}
