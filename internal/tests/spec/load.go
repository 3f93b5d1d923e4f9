package spec

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed testspec.schema.json
var testSpecSchema string

// AllSuites lists the test suites known to the builder.
var AllSuites = []string{"build", "device", "libc++"}

// TestSpec selects which configurations a test run covers and which device
// classes packaged tests may be assigned to.
type TestSpec struct {
	Abis   []Abi
	Suites []string
	// Devices maps a device API level to the ABIs devices of that level
	// support.
	Devices map[int][]Abi
}

// rawTestSpec is the YAML document shape.
type rawTestSpec struct {
	Abis    []string            `yaml:"abis"`
	Suites  []string            `yaml:"suites"`
	Devices map[string][]string `yaml:"devices"`
}

// LoadTestSpec reads and validates a test spec YAML file. The document is
// checked against the embedded schema before decoding so that a malformed
// fleet description fails with a configuration error, not a build-time one.
func LoadTestSpec(path string) (*TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test spec: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse test spec YAML: %w", err)
	}
	schema, err := jsonschema.CompileString("testspec.schema.json", testSpecSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile test spec schema: %w", err)
	}
	if err := schema.Validate(normalizeYAML(doc)); err != nil {
		return nil, fmt.Errorf("invalid test spec %s: %w", path, err)
	}

	var raw rawTestSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode test spec: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw rawTestSpec) (*TestSpec, error) {
	out := &TestSpec{Devices: make(map[int][]Abi)}

	if len(raw.Abis) == 0 {
		out.Abis = append(out.Abis, AllAbis...)
	}
	for _, a := range raw.Abis {
		abi := Abi(a)
		if !abi.Valid() {
			return nil, fmt.Errorf("unknown abi in test spec: %q", a)
		}
		out.Abis = append(out.Abis, abi)
	}

	if len(raw.Suites) == 0 {
		out.Suites = append(out.Suites, AllSuites...)
	} else {
		out.Suites = raw.Suites
	}

	for apiStr, abis := range raw.Devices {
		var api int
		if _, err := fmt.Sscanf(apiStr, "%d", &api); err != nil {
			return nil, fmt.Errorf("invalid device api level %q: %w", apiStr, err)
		}
		for _, a := range abis {
			abi := Abi(a)
			if !abi.Valid() {
				return nil, fmt.Errorf("unknown abi for device api %d: %q", api, a)
			}
			out.Devices[api] = append(out.Devices[api], abi)
		}
	}
	return out, nil
}

// DeviceApiLevels returns the fleet's API levels in ascending order.
func (s *TestSpec) DeviceApiLevels() []int {
	levels := make([]int, 0, len(s.Devices))
	for api := range s.Devices {
		levels = append(levels, api)
	}
	sort.Ints(levels)
	return levels
}

// HasSuite reports whether the spec selects the named suite.
func (s *TestSpec) HasSuite(name string) bool {
	for _, suite := range s.Suites {
		if suite == name {
			return true
		}
	}
	return false
}

// normalizeYAML converts YAML-decoded values into the shapes the JSON schema
// validator expects: map keys become strings and integers stay integers.
func normalizeYAML(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
