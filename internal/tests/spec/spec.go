// Package spec describes which test configurations a run covers: the ABIs,
// API levels, and toolchain-file variants to expand the corpus across, and
// the device fleet the packaged tests will eventually run on.
package spec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Abi identifies one application binary interface of the target platform.
type Abi string

const (
	AbiArmeabiV7a Abi = "armeabi-v7a"
	AbiArm64V8a   Abi = "arm64-v8a"
	AbiX86        Abi = "x86"
	AbiX86_64     Abi = "x86_64"
)

// AllAbis lists every supported ABI.
var AllAbis = []Abi{AbiArmeabiV7a, AbiArm64V8a, AbiX86, AbiX86_64}

// lp64Abis is the set of 64-bit ABIs.
var lp64Abis = map[Abi]bool{AbiArm64V8a: true, AbiX86_64: true}

// Arch returns the architecture name for the ABI, as used by device-side
// filters.
func (a Abi) Arch() string {
	switch a {
	case AbiArmeabiV7a:
		return "arm"
	case AbiArm64V8a:
		return "arm64"
	case AbiX86:
		return "x86"
	case AbiX86_64:
		return "x86_64"
	}
	return string(a)
}

// Valid reports whether the ABI is a known one.
func (a Abi) Valid() bool {
	for _, known := range AllAbis {
		if a == known {
			return true
		}
	}
	return false
}

// Toolchain selects the toolchain-file variant a test is built with.
type Toolchain string

const (
	// ToolchainLegacy is the compatibility toolchain file.
	ToolchainLegacy Toolchain = "legacy"
	// ToolchainDefault is the current toolchain file.
	ToolchainDefault Toolchain = "new"
)

// AllToolchains lists the toolchain-file variants every test is expanded
// across.
var AllToolchains = []Toolchain{ToolchainLegacy, ToolchainDefault}

// BuildConfiguration identifies one test build target. It is immutable; use
// WithApi to derive a copy once a test resolves its API level.
type BuildConfiguration struct {
	Abi       Abi
	Api       *int // nil until the test decides its minimum API level
	Toolchain Toolchain
}

// NewBuildConfiguration creates a configuration with an unresolved API level.
func NewBuildConfiguration(abi Abi, toolchain Toolchain) BuildConfiguration {
	return BuildConfiguration{Abi: abi, Toolchain: toolchain}
}

// WithApi returns a copy of the configuration with the API level set.
func (c BuildConfiguration) WithApi(api int) BuildConfiguration {
	return BuildConfiguration{Abi: c.Abi, Api: &api, Toolchain: c.Toolchain}
}

// String renders the configuration as "{abi}-{api}-{toolchain}". An
// unresolved API level renders as "none"; discovery-time configurations are
// normally in that state.
func (c BuildConfiguration) String() string {
	api := "none"
	if c.Api != nil {
		api = strconv.Itoa(*c.Api)
	}
	return strings.Join([]string{string(c.Abi), api, string(c.Toolchain)}, "-")
}

// Less orders configurations by their string form, giving the corpus a total
// order for deterministic grouping.
func (c BuildConfiguration) Less(other BuildConfiguration) bool {
	return c.String() < other.String()
}

// IsLp64 reports whether the configuration targets a 64-bit ABI.
func (c BuildConfiguration) IsLp64() bool {
	return lp64Abis[c.Abi]
}

// ParseBuildConfiguration parses the string form produced by String. Both
// multi-dash ABI names (armeabi-v7a, arm64-v8a) and the single-dash ones are
// accepted.
func ParseBuildConfiguration(s string) (BuildConfiguration, error) {
	abi, rest, ok := strings.Cut(s, "-")
	if !ok {
		return BuildConfiguration{}, fmt.Errorf("invalid build configuration: %q", s)
	}
	if abi == "armeabi" && strings.HasPrefix(rest, "v7a-") {
		abi += "-v7a"
		_, rest, _ = strings.Cut(rest, "-")
	} else if abi == "arm64" && strings.HasPrefix(rest, "v8a-") {
		abi += "-v8a"
		_, rest, _ = strings.Cut(rest, "-")
	}

	apiStr, toolchainStr, ok := strings.Cut(rest, "-")
	if !ok {
		return BuildConfiguration{}, fmt.Errorf("invalid build configuration: %q", s)
	}
	cfg := BuildConfiguration{Abi: Abi(abi), Toolchain: Toolchain(toolchainStr)}
	if !cfg.Abi.Valid() {
		return BuildConfiguration{}, fmt.Errorf("unknown abi in configuration %q", s)
	}
	switch cfg.Toolchain {
	case ToolchainLegacy, ToolchainDefault:
	default:
		return BuildConfiguration{}, fmt.Errorf("unknown toolchain file in configuration %q", s)
	}
	if apiStr != "none" {
		api, err := strconv.Atoi(apiStr)
		if err != nil {
			return BuildConfiguration{}, fmt.Errorf("invalid api level in configuration %q: %w", s, err)
		}
		cfg.Api = &api
	}
	return cfg, nil
}

// SortConfigurations sorts configurations by their string form.
func SortConfigurations(configs []BuildConfiguration) {
	sort.Slice(configs, func(i, j int) bool { return configs[i].Less(configs[j]) })
}

// DeviceConfig describes one device class available to run packaged tests:
// its API level and the ABIs it supports.
type DeviceConfig struct {
	Api  int
	Abis []Abi
}

// SupportsAbi reports whether the device can run binaries for the ABI.
func (d DeviceConfig) SupportsAbi(abi Abi) bool {
	for _, a := range d.Abis {
		if a == abi {
			return true
		}
	}
	return false
}

// TestOptions carries the per-run paths and switches for the test builder.
type TestOptions struct {
	// SrcDir is the root of the test sources, one subdirectory per suite.
	SrcDir string
	// ToolchainPath is the installed distribution the tests build against.
	ToolchainPath string
	// OutDir is the test output directory (obj/ and dist/ live below it).
	OutDir string
	// TestFilter restricts the corpus to matching test names. Empty runs all.
	TestFilter string
	// Clean removes OutDir before building.
	Clean bool
	// BuildReport, if non-empty, is where the serialized Report is written.
	BuildReport string
	// PackagePath, if non-empty, is the extensionless path the test corpus
	// archive and per-configuration zips are written to.
	PackagePath string
}
