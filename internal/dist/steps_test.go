package dist

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepContext(t *testing.T, modules ...*Module) *BuildContext {
	t.Helper()
	r, err := NewRegistry(modules...)
	require.NoError(t, err)
	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	return NewBuildContext(filepath.Join(root, "out"), filepath.Join(root, "dist"), srcDir, Linux, "0", r)
}

func TestPackageSteps(t *testing.T) {
	t.Parallel()

	m := &Module{Name: "cpu-features", Steps: PackageSteps("sources/cpu-features")}
	bctx := stepContext(t, m)

	srcTree := filepath.Join(bctx.SrcDir, "sources", "cpu-features", "include")
	require.NoError(t, os.MkdirAll(srcTree, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcTree, "cpu-features.h"), []byte("// header"), 0o644))

	var log bytes.Buffer
	require.NoError(t, m.Build(context.Background(), bctx, &log))
	require.NoError(t, m.Install(context.Background(), bctx, &log))

	installed, err := bctx.InstallPath("cpu-features")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(installed, "include", "cpu-features.h"))
}

func TestFileSteps(t *testing.T) {
	t.Parallel()

	m := &Module{Name: "readme", Steps: FileSteps("README.md", "README.md")}
	bctx := stepContext(t, m)
	require.NoError(t, os.WriteFile(filepath.Join(bctx.SrcDir, "README.md"), []byte("docs"), 0o644))

	var log bytes.Buffer
	require.NoError(t, m.Install(context.Background(), bctx, &log))

	data, err := os.ReadFile(filepath.Join(bctx.InstallRoot(), "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "docs", string(data))
}

func TestScriptShortcutSteps(t *testing.T) {
	t.Parallel()

	target := &Module{Name: "build-system"}
	shortcut := &Module{Name: "toolchain-build", Steps: ScriptShortcutSteps("build-system", "toolchain-build")}
	bctx := stepContext(t, target, shortcut)

	var log bytes.Buffer
	require.NoError(t, shortcut.Install(context.Background(), bctx, &log))

	script := filepath.Join(bctx.InstallRoot(), "toolchain-build")
	data, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#!/bin/sh")
	assert.Contains(t, string(data), filepath.Join("build-system", "toolchain-build"))

	info, err := os.Stat(script)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.NotZero(t, info.Mode()&0o111)
	}
}

func TestCommandStepsBuild(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}

	m := &Module{Name: "sysroot", Steps: CommandSteps("sh", "-c", "echo built > artifact && echo hello")}
	bctx := stepContext(t, m)

	var log bytes.Buffer
	require.NoError(t, m.Build(context.Background(), bctx, &log))
	assert.Contains(t, log.String(), "hello")
	assert.FileExists(t, filepath.Join(bctx.IntermediateOutDir("sysroot"), "artifact"))

	require.NoError(t, m.Install(context.Background(), bctx, &log))
	installed, err := bctx.InstallPath("sysroot")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(installed, "artifact"))
}

func TestCommandStepsFailureSurfacesModule(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}

	m := &Module{Name: "sysroot", Steps: CommandSteps("sh", "-c", "exit 3")}
	bctx := stepContext(t, m)

	var log bytes.Buffer
	err := m.Build(context.Background(), bctx, &log)
	assert.ErrorContains(t, err, "sysroot")
}

func TestMetaStepsAreNoOps(t *testing.T) {
	t.Parallel()

	m := &Module{Name: "base-toolchain", Steps: MetaSteps()}
	bctx := stepContext(t, m)

	var log bytes.Buffer
	assert.NoError(t, m.Build(context.Background(), bctx, &log))
	assert.NoError(t, m.Install(context.Background(), bctx, &log))
}
