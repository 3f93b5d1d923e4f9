// Package dist models the buildable units of the toolchain distribution.
//
// A Module is a named unit with declared dependencies and a Steps capability
// descriptor saying how to build and install it. Modules carry no run state;
// per-run configuration travels in a BuildContext passed explicitly to the
// step functions.
package dist

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Host is the platform the distribution is being built for.
type Host string

const (
	Linux   Host = "linux"
	Darwin  Host = "darwin"
	Windows Host = "windows"
)

// Tag returns the directory tag used for host-specific install trees.
func (h Host) Tag() string {
	switch h {
	case Linux:
		return "linux-x86_64"
	case Darwin:
		return "darwin-x86_64"
	case Windows:
		return "windows-x86_64"
	}
	return string(h)
}

// StepFunc performs one phase of a module's lifecycle. Output from external
// commands must go to log, which the orchestrator routes to the module's
// build log file.
type StepFunc func(ctx context.Context, bctx *BuildContext, m *Module, log io.Writer) error

// Steps is a module's capability descriptor: how to build and how to
// install. Either step may be nil, meaning that phase is a no-op. The
// orchestrator invokes Build then Install at most once per run, and only
// after every dependency has completed its install.
type Steps struct {
	Build   StepFunc
	Install StepFunc
}

// Module is a named, versionless unit of the distribution.
type Module struct {
	// Name uniquely identifies the module within a Registry.
	Name string
	// Deps names the modules that must be installed before this one builds.
	Deps []string
	// Enabled modules are included when no explicit subset is requested.
	Enabled bool
	// Host restricts the module to one target platform; empty means all.
	Host Host
	// InstallSubdir is the module's directory below the install root. Empty
	// defaults to the module name.
	InstallSubdir string
	// Steps says how to carry out the build and install phases.
	Steps Steps
}

func (m *Module) String() string {
	return m.Name
}

// Build runs the module's build step.
func (m *Module) Build(ctx context.Context, bctx *BuildContext, log io.Writer) error {
	if m.Steps.Build == nil {
		return nil
	}
	return m.Steps.Build(ctx, bctx, m, log)
}

// Install runs the module's install step. Called only after Build succeeded.
func (m *Module) Install(ctx context.Context, bctx *BuildContext, log io.Writer) error {
	if m.Steps.Install == nil {
		return nil
	}
	return m.Steps.Install(ctx, bctx, m, log)
}

// LogPath returns the module's build log location below logDir.
func (m *Module) LogPath(logDir string) string {
	return filepath.Join(logDir, m.Name+".log")
}

// installSubdir resolves the module's install directory name.
func (m *Module) installSubdir() string {
	if m.InstallSubdir != "" {
		return m.InstallSubdir
	}
	return m.Name
}

// Registry is the set of known modules for a run, keyed by unique name. It
// is constructed once and passed to the dependency manager and orchestrator
// explicitly; there is no process-wide module list.
type Registry struct {
	modules map[string]*Module
}

// NewRegistry builds a Registry from the given modules. Duplicate names are
// a configuration error.
func NewRegistry(modules ...*Module) (*Registry, error) {
	r := &Registry{modules: make(map[string]*Module, len(modules))}
	for _, m := range modules {
		if m.Name == "" {
			return nil, fmt.Errorf("module with empty name")
		}
		if _, ok := r.modules[m.Name]; ok {
			return nil, fmt.Errorf("duplicate module name: %s", m.Name)
		}
		r.modules[m.Name] = m
	}
	return r, nil
}

// Get looks up a module by name.
func (r *Registry) Get(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Deps resolves a module name to its dependency names. Satisfies
// graph.DepsFunc.
func (r *Registry) Deps(name string) ([]string, bool) {
	m, ok := r.modules[name]
	if !ok {
		return nil, false
	}
	return m.Deps, true
}

// All returns every registered module, sorted by name.
func (r *Registry) All() []*Module {
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EnabledNames returns the names of modules built by default for host.
func (r *Registry) EnabledNames(host Host) []string {
	var names []string
	for _, m := range r.All() {
		if !m.Enabled {
			continue
		}
		if m.Host != "" && m.Host != host {
			continue
		}
		names = append(names, m.Name)
	}
	return names
}

// BuildContext is the immutable per-run configuration shared by all modules.
type BuildContext struct {
	// OutDir holds intermediate build artifacts.
	OutDir string
	// DistDir holds distributable artifacts and logs.
	DistDir string
	// SrcDir is the root of the component sources.
	SrcDir string
	// Host is the target platform for this run.
	Host Host
	// BuildNumber identifies the run for version stamping. "0" for local
	// development builds.
	BuildNumber string
	// RunID distinguishes local runs that share build number "0".
	RunID string
	// Registry allows cross-module lookups such as install paths.
	Registry *Registry
}

// NewBuildContext creates the shared run configuration. Local builds
// (buildNumber "0" or empty) get a fresh run ID.
func NewBuildContext(outDir, distDir, srcDir string, host Host, buildNumber string, registry *Registry) *BuildContext {
	if buildNumber == "" {
		buildNumber = "0"
	}
	runID := buildNumber
	if buildNumber == "0" {
		runID = uuid.NewString()
	}
	return &BuildContext{
		OutDir:      outDir,
		DistDir:     distDir,
		SrcDir:      srcDir,
		Host:        host,
		BuildNumber: buildNumber,
		RunID:       runID,
		Registry:    registry,
	}
}

// InstallRoot is the root of the assembled distribution tree.
func (c *BuildContext) InstallRoot() string {
	return filepath.Join(c.OutDir, c.Host.Tag(), "toolchain")
}

// InstallPath returns the install directory of the named module, allowing
// modules to locate artifacts produced by their dependencies.
func (c *BuildContext) InstallPath(name string) (string, error) {
	m, ok := c.Registry.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown module: %s", name)
	}
	return filepath.Join(c.InstallRoot(), m.installSubdir()), nil
}

// IntermediateOutDir returns the named module's scratch directory.
func (c *BuildContext) IntermediateOutDir(name string) string {
	return filepath.Join(c.OutDir, name)
}
