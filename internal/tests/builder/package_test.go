package builder

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvilbuild/anvil/internal/tests/cases"
	"github.com/anvilbuild/anvil/internal/tests/spec"
)

func TestDesiredApiLevel(t *testing.T) {
	t.Parallel()

	devices := map[int][]spec.Abi{
		21: {spec.AbiArmeabiV7a, spec.AbiX86},
		29: {spec.AbiArm64V8a, spec.AbiX86_64},
		33: {spec.AbiArm64V8a},
	}

	t.Run("smallest level at or above the minimum wins", func(t *testing.T) {
		api, err := desiredApiLevel(21, spec.AbiArm64V8a, devices)
		require.NoError(t, err)
		assert.Equal(t, 29, api)
	})

	t.Run("exact match", func(t *testing.T) {
		api, err := desiredApiLevel(21, spec.AbiX86, devices)
		require.NoError(t, err)
		assert.Equal(t, 21, api)
	})

	t.Run("devices below the minimum are ignored", func(t *testing.T) {
		api, err := desiredApiLevel(30, spec.AbiArm64V8a, devices)
		require.NoError(t, err)
		assert.Equal(t, 33, api)
	})

	t.Run("no device supports the abi at the minimum", func(t *testing.T) {
		_, err := desiredApiLevel(30, spec.AbiX86, devices)
		assert.ErrorContains(t, err, "no device with api level >= 30 supports x86")
	})
}

func packagingBuilder(t *testing.T) *TestBuilder {
	t.Helper()
	outDir := t.TempDir()
	return &TestBuilder{
		testSpec: &spec.TestSpec{
			Devices: map[int][]spec.Abi{
				21: {spec.AbiX86},
				30: {spec.AbiX86, spec.AbiArm64V8a},
			},
		},
		options: spec.TestOptions{
			OutDir:      outDir,
			PackagePath: filepath.Join(outDir, "pkg", "tests"),
		},
		queueOpt:  Options{Jobs: 2},
		tests:     make(map[string][]cases.Test),
		buildDirs: make(map[string]string),
		objDir:    filepath.Join(outDir, "obj"),
		distDir:   filepath.Join(outDir, "dist"),
	}
}

func writeDistTest(t *testing.T, distDir, config, test string, files ...string) {
	t.Helper()
	dir := filepath.Join(distDir, config, test)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("bin"), 0o755))
	}
}

func TestMakeDeviceTestZip(t *testing.T) {
	t.Parallel()

	b := packagingBuilder(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.options.PackagePath), 0o755))
	writeDistTest(t, b.distDir, "x86-21-new", "math", "math_test", "libhelper.so")
	writeDistTest(t, b.distDir, "x86-21-new", "unwind", "unwind_test")

	groups, err := cases.EnumerateDeviceTests(b.distDir, t.TempDir(), cases.FilterFromString(""))
	require.NoError(t, err)
	require.Len(t, groups, 1)

	require.NoError(t, b.makeDeviceTestZip(groups[0]))

	descriptorPath := filepath.Join(b.distDir, "x86-21-new-AndroidTest.config")
	require.FileExists(t, descriptorPath)
	contents, err := os.ReadFile(descriptorPath)
	require.NoError(t, err)

	doc := string(contents)
	assert.Contains(t, doc, `description="Toolchain tests for x86-21-new"`)
	assert.Contains(t, doc, `name="push-file" key="x86-21-new"`)
	assert.Contains(t, doc, `name="arch" value="x86"`)
	assert.Contains(t, doc, `name="min-api-level" value="21"`)
	assert.Contains(t, doc, `name="test-command-line" key="math"`)
	assert.Contains(t, doc, `key="unwind"`)

	zipPath := filepath.Join(filepath.Dir(b.options.PackagePath), "x86-21-new-androidTest.zip")
	require.FileExists(t, zipPath)
	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["x86-21-new-AndroidTest.config"])
	assert.True(t, names["x86-21-new/math/math_test"])
	assert.True(t, names["x86-21-new/unwind/unwind_test"])
}

func TestMakeDeviceTestZipRequiresResolvedApi(t *testing.T) {
	t.Parallel()

	b := packagingBuilder(t)
	group := cases.ConfigGroup{
		Config: spec.NewBuildConfiguration(spec.AbiX86, spec.ToolchainDefault),
	}
	err := b.makeDeviceTestZip(group)
	assert.ErrorContains(t, err, "no resolved api level")
}

func TestMakeDeviceTestZipSkipsUnsupportedAndNegatesBroken(t *testing.T) {
	t.Parallel()

	b := packagingBuilder(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.options.PackagePath), 0o755))
	writeDistTest(t, b.distDir, "x86-21-new", "skipped", "skipped_test")
	writeDistTest(t, b.distDir, "x86-21-new", "broken", "broken_test")

	srcDir := t.TempDir()
	writePredicate := func(test, contents string) {
		dir := filepath.Join(srcDir, "device", test)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test_config.hcl"), []byte(contents), 0o644))
	}
	writePredicate("skipped", `
run_unsupported {
  when   = device.api < 30
  reason = "needs newer device"
}
`)
	writePredicate("broken", `
run_broken {
  when = config.abi == "x86"
  bug  = "ISSUE-3"
}
`)

	groups, err := cases.EnumerateDeviceTests(b.distDir, srcDir, cases.FilterFromString(""))
	require.NoError(t, err)
	require.Len(t, groups, 1)

	require.NoError(t, b.makeDeviceTestZip(groups[0]))

	contents, err := os.ReadFile(filepath.Join(b.distDir, "x86-21-new-AndroidTest.config"))
	require.NoError(t, err)
	doc := string(contents)

	// The device pairing resolved to API 21, below the run_unsupported cutoff.
	assert.NotContains(t, doc, `key="skipped"`)
	assert.Contains(t, doc, `key="broken"`)
	assert.Contains(t, doc, "! (")
}

func TestPackageProducesCorpusArchive(t *testing.T) {
	t.Parallel()

	b := packagingBuilder(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.options.PackagePath), 0o755))
	writeDistTest(t, b.distDir, "x86-21-new", "math", "math_test")

	err := b.Package(context.Background(), cases.FilterFromString(""))
	require.NoError(t, err)
	assert.FileExists(t, b.options.PackagePath+".tar.gz")
	assert.FileExists(t, filepath.Join(filepath.Dir(b.options.PackagePath), "x86-21-new-androidTest.zip"))
}
