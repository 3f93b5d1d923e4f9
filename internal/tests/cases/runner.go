package cases

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/anvilbuild/anvil/internal/tests/result"
	"github.com/anvilbuild/anvil/internal/tests/spec"
)

// Build system tags for discovered tests.
const (
	BuildSystemCMake = "cmake"
	BuildSystemMake  = "make"
)

// CMakeRunner builds a test project with CMake against the installed
// toolchain, using the toolchain-file variant the configuration selects.
func CMakeRunner(toolchainPath string) Runner {
	return func(ctx context.Context, t *BuildTest, objDir, distDir string) (result.TestResult, []Test, error) {
		buildDir := t.BuildDir(objDir)
		if err := os.MkdirAll(buildDir, 0o755); err != nil {
			return nil, nil, err
		}
		args := []string{
			"-S", t.TestDir(),
			"-B", buildDir,
			"-DCMAKE_TOOLCHAIN_FILE=" + filepath.Join(toolchainPath, "build", "cmake", "toolchain.cmake"),
			"-DANVIL_ABI=" + string(t.Config().Abi),
			"-DANVIL_USE_LEGACY_TOOLCHAIN_FILE=" + legacyFlag(t.Config().Toolchain),
			"-DCMAKE_VERBOSE_MAKEFILE=ON",
		}
		if t.Config().Api != nil {
			args = append(args, "-DANVIL_PLATFORM=android-"+strconv.Itoa(*t.Config().Api))
		}
		if res, ok := runCommand(ctx, t, buildDir, "cmake", args...); !ok {
			return res, nil, nil
		}
		res, _ := runCommand(ctx, t, buildDir, "cmake", "--build", buildDir, "--parallel", "1")
		return res, nil, nil
	}
}

// MakeRunner builds a test project with the distribution's make-based build
// system.
func MakeRunner(toolchainPath string) Runner {
	return func(ctx context.Context, t *BuildTest, objDir, distDir string) (result.TestResult, []Test, error) {
		buildDir := t.BuildDir(objDir)
		if err := os.MkdirAll(buildDir, 0o755); err != nil {
			return nil, nil, err
		}
		args := []string{
			filepath.Join(toolchainPath, "toolchain-build"),
			"-C", t.TestDir(),
			"APP_ABI=" + string(t.Config().Abi),
			"OUT_DIR=" + buildDir,
			"V=1",
		}
		if t.Config().Api != nil {
			args = append(args, "APP_PLATFORM=android-"+strconv.Itoa(*t.Config().Api))
		}
		res, _ := runCommand(ctx, t, buildDir, args[0], args[1:]...)
		return res, nil, nil
	}
}

func legacyFlag(tc spec.Toolchain) string {
	if tc == spec.ToolchainLegacy {
		return "ON"
	}
	return "OFF"
}

// runCommand executes one external build command, converting a non-zero
// exit into a Failure carrying the captured output and a repro command.
func runCommand(ctx context.Context, t *BuildTest, dir, name string, args ...string) (result.TestResult, bool) {
	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("%v\n%s", err, output.String())
		repro := fmt.Sprintf("%s %v", name, args)
		return result.NewFailureWithRepro(t, message, repro), false
	}
	return result.NewSuccess(t), true
}
