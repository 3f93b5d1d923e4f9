// Package predicate decides, per test, whether a build configuration or
// device pairing is unsupported, known broken, or a negative test.
//
// Each test directory may carry a declarative test_config.hcl file; the
// loader resolves it into a Provider. The scheduler only ever calls through
// the Provider interface and never executes test-supplied code.
package predicate

import "github.com/anvilbuild/anvil/internal/tests/spec"

// Provider answers the per-test status questions. Implementations must be
// pure functions of their arguments and must not mutate shared state.
type Provider interface {
	// BuildUnsupported returns a non-empty reason if the test makes no
	// sense for the configuration. Unsupported tests are neither built nor
	// run; they short-circuit to a skip.
	BuildUnsupported(c spec.BuildConfiguration) string

	// BuildBroken reports a known failing (test, configuration) pair as a
	// (configuration description, bug reference) pair, or ("", "") when the
	// pair is expected to pass. Broken tests are still built and run; a
	// pass is reported as an error so stale markings get cleaned up.
	BuildBroken(c spec.BuildConfiguration) (string, string)

	// IsNegativeTest reports whether the test passes when its underlying
	// action fails.
	IsNegativeTest() bool

	// RunUnsupported is the device-level analog of BuildUnsupported.
	RunUnsupported(c spec.BuildConfiguration, d spec.DeviceConfig) string

	// RunBroken is the device-level analog of BuildBroken.
	RunBroken(c spec.BuildConfiguration, d spec.DeviceConfig) (string, string)
}

// NullProvider is the neutral Provider used when a test supplies no
// configuration: every configuration is supported and expected to pass.
type NullProvider struct{}

func (NullProvider) BuildUnsupported(spec.BuildConfiguration) string { return "" }

func (NullProvider) BuildBroken(spec.BuildConfiguration) (string, string) { return "", "" }

func (NullProvider) IsNegativeTest() bool { return false }

func (NullProvider) RunUnsupported(spec.BuildConfiguration, spec.DeviceConfig) string { return "" }

func (NullProvider) RunBroken(spec.BuildConfiguration, spec.DeviceConfig) (string, string) {
	return "", ""
}
