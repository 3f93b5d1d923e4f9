package cases

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/anvilbuild/anvil/internal/tests/predicate"
	"github.com/anvilbuild/anvil/internal/tests/spec"
)

// DeviceTestBaseDir is where pushed tests live on a device.
const DeviceTestBaseDir = "/data/local/tmp/tests"

// DeviceTestCase is one built, device-runnable test executable: the shape of
// a test after its build has produced an artifact to push and run.
type DeviceTestCase struct {
	name       string
	config     spec.BuildConfiguration
	deviceDir  string
	executable string
	provider   predicate.Provider
}

// NewDeviceTestCase creates a device test case.
func NewDeviceTestCase(name string, config spec.BuildConfiguration, deviceDir, executable string, provider predicate.Provider) *DeviceTestCase {
	if provider == nil {
		provider = predicate.NullProvider{}
	}
	return &DeviceTestCase{
		name:       name,
		config:     config,
		deviceDir:  deviceDir,
		executable: executable,
		provider:   provider,
	}
}

func (t *DeviceTestCase) Name() string { return t.name }

func (t *DeviceTestCase) String() string {
	return fmt.Sprintf("%s [%s]", t.name, t.config)
}

// Config returns the configuration the executable was built for.
func (t *DeviceTestCase) Config() spec.BuildConfiguration { return t.config }

// Cmd is the device shell command running the test.
func (t *DeviceTestCase) Cmd() string {
	return fmt.Sprintf("cd %s && LD_LIBRARY_PATH=%s ./%s 2>&1",
		t.deviceDir, t.deviceDir, t.executable)
}

// NegatedCmd inverts the test command's exit status, for (test, device)
// pairings marked broken.
func (t *DeviceTestCase) NegatedCmd() string {
	return fmt.Sprintf("! ( %s )", t.Cmd())
}

// RunUnsupported reports whether the pairing with the device makes no sense.
func (t *DeviceTestCase) RunUnsupported(d spec.DeviceConfig) string {
	return t.provider.RunUnsupported(t.config, d)
}

// RunBroken reports whether the pairing with the device is known broken.
func (t *DeviceTestCase) RunBroken(d spec.DeviceConfig) (string, string) {
	return t.provider.RunBroken(t.config, d)
}

// ConfigGroup is the set of device test cases built for one configuration.
type ConfigGroup struct {
	Config spec.BuildConfiguration
	Tests  []*DeviceTestCase
}

// EnumerateDeviceTests walks the test dist tree
// (dist/<configuration>/<test>/<files...>) and regroups the built, runnable
// cases by BuildConfiguration. Predicate providers are resolved from the
// matching source test directory under srcDir when one exists.
func EnumerateDeviceTests(distDir, srcDir string, filter *Filter) ([]ConfigGroup, error) {
	entries, err := os.ReadDir(distDir)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate device tests: %w", err)
	}

	var groups []ConfigGroup
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		config, err := spec.ParseBuildConfiguration(entry.Name())
		if err != nil {
			// Not a configuration directory; the dist tree also holds
			// descriptor files.
			continue
		}
		group := ConfigGroup{Config: config}

		configDir := filepath.Join(distDir, entry.Name())
		testDirs, err := os.ReadDir(configDir)
		if err != nil {
			return nil, err
		}
		for _, testEntry := range testDirs {
			if !testEntry.IsDir() || !filter.Matches(testEntry.Name()) {
				continue
			}
			provider, err := predicate.FromTestDir(filepath.Join(srcDir, "device", testEntry.Name()))
			if err != nil {
				return nil, err
			}
			files, err := os.ReadDir(filepath.Join(configDir, testEntry.Name()))
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				if f.IsDir() || !isExecutableName(f.Name()) {
					continue
				}
				deviceDir := filepath.Join(DeviceTestBaseDir, entry.Name(), testEntry.Name())
				group.Tests = append(group.Tests, NewDeviceTestCase(
					testEntry.Name(), config, deviceDir, f.Name(), provider))
			}
		}
		if len(group.Tests) > 0 {
			groups = append(groups, group)
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Config.Less(groups[j].Config) })
	return groups, nil
}

// isExecutableName filters out build byproducts that are pushed alongside
// test binaries but are not themselves tests.
func isExecutableName(name string) bool {
	switch filepath.Ext(name) {
	case ".so", ".a", ".json", ".txt":
		return false
	}
	return true
}
