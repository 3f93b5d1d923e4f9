package cases

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/anvilbuild/anvil/internal/tests/predicate"
	"github.com/anvilbuild/anvil/internal/tests/spec"
)

// Scanner discovers the tests in one test directory, expanded across the
// build configurations the scanner was told about.
type Scanner interface {
	FindTests(testDir, name string) ([]Test, error)
}

// BuildTestScanner produces one BuildTest per (configuration, build system)
// for each test directory. A directory containing CMakeLists.txt gets a
// CMake test; one containing a Makefile gets a make test; a directory may
// carry both.
type BuildTestScanner struct {
	toolchainPath string
	configs       []spec.BuildConfiguration
}

// NewBuildTestScanner creates a scanner building against the given installed
// toolchain.
func NewBuildTestScanner(toolchainPath string) *BuildTestScanner {
	return &BuildTestScanner{toolchainPath: toolchainPath}
}

// AddBuildConfiguration adds a configuration every discovered test is
// expanded across.
func (s *BuildTestScanner) AddBuildConfiguration(c spec.BuildConfiguration) {
	s.configs = append(s.configs, c)
}

// FindTests discovers the tests in testDir. The directory's predicate
// provider is resolved once and shared by all expanded configurations; a
// malformed predicate file fails discovery for that test.
func (s *BuildTestScanner) FindTests(testDir, name string) ([]Test, error) {
	provider, err := predicate.FromTestDir(testDir)
	if err != nil {
		return nil, err
	}

	var systems []string
	if _, err := os.Stat(filepath.Join(testDir, "CMakeLists.txt")); err == nil {
		systems = append(systems, BuildSystemCMake)
	}
	if _, err := os.Stat(filepath.Join(testDir, "Makefile")); err == nil {
		systems = append(systems, BuildSystemMake)
	}
	if len(systems) == 0 {
		return nil, fmt.Errorf("test %s has neither CMakeLists.txt nor Makefile", name)
	}

	var tests []Test
	for _, config := range s.configs {
		for _, system := range systems {
			var runner Runner
			switch system {
			case BuildSystemCMake:
				runner = CMakeRunner(s.toolchainPath)
			case BuildSystemMake:
				runner = MakeRunner(s.toolchainPath)
			}
			tests = append(tests, NewBuildTest(name, testDir, config, system, provider, runner))
		}
	}
	return tests, nil
}

// ScanTestSuite discovers every test below suiteDir, one test per
// subdirectory.
func ScanTestSuite(suiteDir string, scanner Scanner) ([]Test, error) {
	entries, err := os.ReadDir(suiteDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan suite %s: %w", suiteDir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var tests []Test
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		found, err := scanner.FindTests(filepath.Join(suiteDir, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		tests = append(tests, found...)
	}
	return tests, nil
}
