package predicate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/anvilbuild/anvil/internal/tests/spec"
)

// ConfigFileName is the per-test-directory predicate file.
const ConfigFileName = "test_config.hcl"

// ErrNegativeDeviceTest rejects the invalid combination of a negative test
// with device-level predicates. A negative build test is never run on a
// device, so such a file is a configuration error, caught at load time.
var ErrNegativeDeviceTest = errors.New("negative tests cannot carry run_broken or run_unsupported blocks")

// conditionBlock marks configurations as unsupported when its expression
// evaluates to true.
type conditionBlock struct {
	When   hcl.Expression `hcl:"when"`
	Reason string         `hcl:"reason"`
}

// brokenBlock marks configurations as known broken. Bug must reference the
// tracking issue for the failure.
type brokenBlock struct {
	When hcl.Expression `hcl:"when"`
	Bug  string         `hcl:"bug"`
}

// configFile is the test_config.hcl document shape.
type configFile struct {
	Negative         *bool            `hcl:"negative,optional"`
	BuildUnsupported []conditionBlock `hcl:"build_unsupported,block"`
	BuildBroken      []brokenBlock    `hcl:"build_broken,block"`
	RunUnsupported   []conditionBlock `hcl:"run_unsupported,block"`
	RunBroken        []brokenBlock    `hcl:"run_broken,block"`
}

// hclProvider implements Provider by evaluating the file's condition
// expressions against the configuration (and device) under consideration.
type hclProvider struct {
	NullProvider // neutral answers for anything the file does not override

	path string
	file configFile
}

// FromTestDir loads the test directory's predicate provider, returning the
// neutral provider when no file exists.
func FromTestDir(dir string) (Provider, error) {
	return Load(filepath.Join(dir, ConfigFileName))
}

// Load parses a predicate file into a Provider. Structural problems,
// references to unknown variables, and invalid predicate combinations are
// all reported now, before any test is scheduled.
func Load(path string) (Provider, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return NullProvider{}, nil
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var file configFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &file); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	negative := file.Negative != nil && *file.Negative
	if negative && (len(file.RunUnsupported) > 0 || len(file.RunBroken) > 0) {
		return nil, fmt.Errorf("%s: %w", path, ErrNegativeDeviceTest)
	}

	for _, block := range file.BuildUnsupported {
		if err := checkVariables(block.When, false); err != nil {
			return nil, fmt.Errorf("%s: build_unsupported: %w", path, err)
		}
	}
	for _, block := range file.BuildBroken {
		if err := checkVariables(block.When, false); err != nil {
			return nil, fmt.Errorf("%s: build_broken: %w", path, err)
		}
		if block.Bug == "" {
			return nil, fmt.Errorf("%s: build_broken requires a bug reference", path)
		}
	}
	for _, block := range file.RunUnsupported {
		if err := checkVariables(block.When, true); err != nil {
			return nil, fmt.Errorf("%s: run_unsupported: %w", path, err)
		}
	}
	for _, block := range file.RunBroken {
		if err := checkVariables(block.When, true); err != nil {
			return nil, fmt.Errorf("%s: run_broken: %w", path, err)
		}
		if block.Bug == "" {
			return nil, fmt.Errorf("%s: run_broken requires a bug reference", path)
		}
	}

	return &hclProvider{path: path, file: file}, nil
}

// checkVariables rejects references to anything but the config object (and,
// for device-level predicates, the device object).
func checkVariables(expr hcl.Expression, allowDevice bool) error {
	for _, traversal := range expr.Variables() {
		root := traversal.RootName()
		if root == "config" {
			continue
		}
		if allowDevice && root == "device" {
			continue
		}
		return fmt.Errorf("unknown variable %q in condition", root)
	}
	return nil
}

func (p *hclProvider) BuildUnsupported(c spec.BuildConfiguration) string {
	ctx := evalContext(c, nil)
	for _, block := range p.file.BuildUnsupported {
		if evalCondition(block.When, ctx) {
			if block.Reason != "" {
				return block.Reason
			}
			return c.String()
		}
	}
	return ""
}

func (p *hclProvider) BuildBroken(c spec.BuildConfiguration) (string, string) {
	ctx := evalContext(c, nil)
	for _, block := range p.file.BuildBroken {
		if evalCondition(block.When, ctx) {
			return c.String(), block.Bug
		}
	}
	return "", ""
}

func (p *hclProvider) IsNegativeTest() bool {
	return p.file.Negative != nil && *p.file.Negative
}

func (p *hclProvider) RunUnsupported(c spec.BuildConfiguration, d spec.DeviceConfig) string {
	ctx := evalContext(c, &d)
	for _, block := range p.file.RunUnsupported {
		if evalCondition(block.When, ctx) {
			if block.Reason != "" {
				return block.Reason
			}
			return c.String()
		}
	}
	return ""
}

func (p *hclProvider) RunBroken(c spec.BuildConfiguration, d spec.DeviceConfig) (string, string) {
	ctx := evalContext(c, &d)
	for _, block := range p.file.RunBroken {
		if evalCondition(block.When, ctx) {
			return c.String(), block.Bug
		}
	}
	return "", ""
}

// evalCondition evaluates a when expression to a boolean. A condition that
// does not evaluate cleanly does not match; variable references were already
// vetted at load time, so the common authoring mistakes fail there instead.
func evalCondition(expr hcl.Expression, ctx *hcl.EvalContext) bool {
	val, diags := expr.Value(ctx)
	if diags.HasErrors() || val.IsNull() {
		return false
	}
	if val.Type() != cty.Bool {
		return false
	}
	return val.True()
}

// evalContext exposes the configuration (and optionally device) under test
// as HCL variables. An unresolved API level is exposed as 0 so numeric
// comparisons stay total.
func evalContext(c spec.BuildConfiguration, d *spec.DeviceConfig) *hcl.EvalContext {
	api := 0
	if c.Api != nil {
		api = *c.Api
	}
	vars := map[string]cty.Value{
		"config": cty.ObjectVal(map[string]cty.Value{
			"abi":       cty.StringVal(string(c.Abi)),
			"api":       cty.NumberIntVal(int64(api)),
			"toolchain": cty.StringVal(string(c.Toolchain)),
			"is_lp64":   cty.BoolVal(c.IsLp64()),
		}),
	}
	if d != nil {
		abis := make([]cty.Value, 0, len(d.Abis))
		for _, abi := range d.Abis {
			abis = append(abis, cty.StringVal(string(abi)))
		}
		abisVal := cty.ListValEmpty(cty.String)
		if len(abis) > 0 {
			abisVal = cty.ListVal(abis)
		}
		vars["device"] = cty.ObjectVal(map[string]cty.Value{
			"api":  cty.NumberIntVal(int64(d.Api)),
			"abis": abisVal,
		})
	}
	return &hcl.EvalContext{Variables: vars}
}
