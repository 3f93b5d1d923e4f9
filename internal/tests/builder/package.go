package builder

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/anvilbuild/anvil/internal/archive"
	"github.com/anvilbuild/anvil/internal/ctxlog"
	"github.com/anvilbuild/anvil/internal/tests/cases"
	"github.com/anvilbuild/anvil/internal/tests/spec"
	"github.com/anvilbuild/anvil/internal/workqueue"
)

// Device test runner descriptor document. One is generated per
// BuildConfiguration and packaged with that configuration's test binaries.
type descriptorOption struct {
	Name  string `xml:"name,attr"`
	Key   string `xml:"key,attr,omitempty"`
	Value string `xml:"value,attr"`
}

type descriptorPreparer struct {
	Class   string             `xml:"class,attr"`
	Options []descriptorOption `xml:"option"`
}

type descriptorController struct {
	Class   string             `xml:"class,attr"`
	Options []descriptorOption `xml:"option"`
}

type descriptorTest struct {
	Class   string             `xml:"class,attr"`
	Options []descriptorOption `xml:"option"`
}

type descriptor struct {
	XMLName     xml.Name               `xml:"configuration"`
	Description string                 `xml:"description,attr"`
	Preparer    descriptorPreparer     `xml:"target_preparer"`
	Controllers []descriptorController `xml:"object"`
	Test        descriptorTest         `xml:"test"`
}

const (
	pushPreparerClass   = "com.android.tradefed.targetprep.PushFilePreparer"
	archControllerClass = "com.android.tradefed.testtype.suite.module.ArchModuleController"
	apiControllerClass  = "com.android.tradefed.testtype.suite.module.MinApiLevelModuleController"
	executableTestClass = "com.android.tradefed.testtype.binary.ExecutableTargetTest"
)

// Package archives the built test corpus and produces one device-test zip
// per configuration, each embedding a generated runner descriptor.
func (b *TestBuilder) Package(ctx context.Context, filter *cases.Filter) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Packaging tests.")

	if err := os.MkdirAll(filepath.Dir(b.options.PackagePath), 0o755); err != nil {
		return err
	}
	if err := archive.MakeTarGz(b.options.PackagePath, b.options.OutDir, "dist"); err != nil {
		return err
	}

	groups, err := cases.EnumerateDeviceTests(b.distDir, b.options.SrcDir, filter)
	if err != nil {
		return err
	}

	queue := workqueue.New(b.queueOpt.Jobs)
	defer queue.Shutdown(ctx)

	for _, group := range groups {
		group := group
		queue.AddTask(func(w *workqueue.Worker) (any, error) {
			w.SetStatus(fmt.Sprintf("Packaging %s", group.Config))
			return nil, b.makeDeviceTestZip(group)
		})
	}
	for !queue.Finished() {
		res, err := queue.GetResult()
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// desiredApiLevel picks the smallest device API level >= minApi that
// supports the ABI, failing when the fleet has none.
func desiredApiLevel(minApi int, abi spec.Abi, devices map[int][]spec.Abi) (int, error) {
	s := spec.TestSpec{Devices: devices}
	for _, api := range s.DeviceApiLevels() {
		if api < minApi {
			continue
		}
		for _, deviceAbi := range devices[api] {
			if deviceAbi == abi {
				return api, nil
			}
		}
	}
	return 0, fmt.Errorf("no device with api level >= %d supports %s", minApi, abi)
}

// makeDeviceTestZip writes the runner descriptor for one configuration and
// zips it together with that configuration's pushed files.
func (b *TestBuilder) makeDeviceTestZip(group cases.ConfigGroup) error {
	config := group.Config
	if config.Api == nil {
		return fmt.Errorf("configuration %s has no resolved api level", config)
	}
	deviceApi, err := desiredApiLevel(*config.Api, config.Abi, b.testSpec.Devices)
	if err != nil {
		return err
	}
	device := spec.DeviceConfig{Api: deviceApi, Abis: []spec.Abi{config.Abi}}

	doc := descriptor{
		Description: fmt.Sprintf("Toolchain tests for %s", config),
		Preparer: descriptorPreparer{
			Class: pushPreparerClass,
			Options: []descriptorOption{{
				Name:  "push-file",
				Key:   config.String(),
				Value: filepath.Join(cases.DeviceTestBaseDir, config.String()),
			}},
		},
		Controllers: []descriptorController{
			{
				Class:   archControllerClass,
				Options: []descriptorOption{{Name: "arch", Value: config.Abi.Arch()}},
			},
			{
				Class:   apiControllerClass,
				Options: []descriptorOption{{Name: "min-api-level", Value: strconv.Itoa(*config.Api)}},
			},
		},
		Test: descriptorTest{Class: executableTestClass},
	}

	for _, test := range group.Tests {
		if reason := test.RunUnsupported(device); reason != "" {
			continue
		}
		cmd := test.Cmd()
		if brokenConfig, _ := test.RunBroken(device); brokenConfig != "" {
			cmd = test.NegatedCmd()
		}
		doc.Test.Options = append(doc.Test.Options, descriptorOption{
			Name:  "test-command-line",
			Key:   test.Name(),
			Value: cmd,
		})
	}

	descriptorName := fmt.Sprintf("%s-AndroidTest.config", config)
	out, err := os.Create(filepath.Join(b.distDir, descriptorName))
	if err != nil {
		return err
	}
	enc := xml.NewEncoder(out)
	enc.Indent("", "  ")
	if _, err := out.WriteString(xml.Header); err != nil {
		out.Close()
		return err
	}
	if err := enc.Encode(doc); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	zipPath := filepath.Join(filepath.Dir(b.options.PackagePath),
		fmt.Sprintf("%s-androidTest.zip", config))
	if err := os.RemoveAll(zipPath); err != nil {
		return err
	}
	return archive.MakeZip(zipPath, b.distDir, []string{descriptorName, config.String()})
}
