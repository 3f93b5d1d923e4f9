package cases

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvilbuild/anvil/internal/tests/spec"
)

func TestDeviceTestCaseCmd(t *testing.T) {
	t.Parallel()

	config := spec.NewBuildConfiguration(spec.AbiArm64V8a, spec.ToolchainDefault).WithApi(30)
	tc := NewDeviceTestCase("math", config, "/data/local/tmp/tests/arm64-v8a-30-new/math", "math_test", nil)

	cmd := tc.Cmd()
	assert.Equal(t, "cd /data/local/tmp/tests/arm64-v8a-30-new/math && "+
		"LD_LIBRARY_PATH=/data/local/tmp/tests/arm64-v8a-30-new/math ./math_test 2>&1", cmd)
	assert.Equal(t, "! ( "+cmd+" )", tc.NegatedCmd())
	assert.Equal(t, "math [arm64-v8a-30-new]", tc.String())
}

// makeDistTree builds a dist tree shaped like the one the test builder
// produces: dist/<configuration>/<test>/<files...>.
func makeDistTree(t *testing.T, distDir string, config, test string, files ...string) {
	t.Helper()
	dir := filepath.Join(distDir, config, test)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("bin"), 0o755))
	}
}

func TestEnumerateDeviceTests(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	distDir := filepath.Join(root, "dist")
	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "device"), 0o755))

	makeDistTree(t, distDir, "x86-21-new", "math", "math_test", "libhelper.so", "data.json")
	makeDistTree(t, distDir, "x86-21-new", "unwind", "unwind_test")
	makeDistTree(t, distDir, "arm64-v8a-30-legacy", "math", "math_test")
	// Non-configuration entries in the dist tree are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(distDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(distDir, "logs"), 0o755))

	groups, err := EnumerateDeviceTests(distDir, srcDir, FilterFromString(""))
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// Groups are sorted by configuration.
	assert.Equal(t, "arm64-v8a-30-legacy", groups[0].Config.String())
	assert.Equal(t, "x86-21-new", groups[1].Config.String())

	require.Len(t, groups[0].Tests, 1)
	// Shared objects and data files are not test executables.
	require.Len(t, groups[1].Tests, 2)
	assert.Equal(t, "math", groups[1].Tests[0].Name())
	assert.Contains(t, groups[1].Tests[0].Cmd(),
		filepath.Join(DeviceTestBaseDir, "x86-21-new", "math"))
}

func TestEnumerateDeviceTestsFilter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	distDir := filepath.Join(root, "dist")
	srcDir := filepath.Join(root, "src")

	makeDistTree(t, distDir, "x86-21-new", "math", "math_test")
	makeDistTree(t, distDir, "x86-21-new", "unwind", "unwind_test")

	groups, err := EnumerateDeviceTests(distDir, srcDir, FilterFromString("unwind"))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Tests, 1)
	assert.Equal(t, "unwind", groups[0].Tests[0].Name())
}

func TestEnumerateDeviceTestsLoadsProviders(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	distDir := filepath.Join(root, "dist")
	srcDir := filepath.Join(root, "src")

	makeDistTree(t, distDir, "x86-21-new", "flaky", "flaky_test")
	testSrc := filepath.Join(srcDir, "device", "flaky")
	require.NoError(t, os.MkdirAll(testSrc, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(testSrc, "test_config.hcl"), []byte(`
run_unsupported {
  when   = device.api < 24
  reason = "needs API 24"
}
`), 0o644))

	groups, err := EnumerateDeviceTests(distDir, srcDir, FilterFromString(""))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Tests, 1)

	tc := groups[0].Tests[0]
	assert.Equal(t, "needs API 24", tc.RunUnsupported(spec.DeviceConfig{Api: 21}))
	assert.Empty(t, tc.RunUnsupported(spec.DeviceConfig{Api: 30}))
}
