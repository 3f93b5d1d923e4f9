package dist

// DefaultRegistry returns the standard module set of the distribution. The
// dependency edges here drive the build order; the step descriptors say how
// each component is produced.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(
		&Module{
			Name:    "clang",
			Enabled: true,
			Steps:   PackageSteps("prebuilts/clang"),
		},
		&Module{
			Name:    "make",
			Enabled: true,
			Steps:   PackageSteps("prebuilts/make"),
		},
		&Module{
			Name:    "cmake-toolchain",
			Enabled: true,
			Deps:    []string{"sysroot"},
			Steps:   PackageSteps("build/cmake"),
		},
		&Module{
			Name:    "sysroot",
			Enabled: true,
			Deps:    []string{"clang"},
			Steps:   CommandSteps("./build/tools/build-sysroot.sh"),
		},
		&Module{
			Name:    "libcxx",
			Enabled: true,
			Deps:    []string{"clang", "sysroot"},
			Steps:   CommandSteps("./build/tools/build-libcxx.sh"),
		},
		&Module{
			Name:    "libcxxabi",
			Enabled: true,
			Deps:    []string{"clang", "sysroot"},
			Steps:   CommandSteps("./build/tools/build-libcxxabi.sh"),
		},
		&Module{
			Name:    "gtest",
			Enabled: true,
			Deps:    []string{"base-toolchain"},
			Steps:   CommandSteps("./build/tools/build-gtest.sh"),
		},
		&Module{
			Name:    "simpleperf",
			Enabled: true,
			Steps:   PackageSteps("prebuilts/simpleperf"),
		},
		&Module{
			Name:    "cpu-features",
			Enabled: true,
			Steps:   PackageSteps("sources/cpu-features"),
		},
		&Module{
			Name:    "native-app-glue",
			Enabled: true,
			Steps:   PackageSteps("sources/native-app-glue"),
		},
		&Module{
			Name:    "system-stl",
			Enabled: true,
			Steps:   PackageSteps("sources/system-stl"),
		},
		&Module{
			Name:    "build-system",
			Enabled: true,
			Deps:    []string{"clang", "make", "sysroot"},
			Steps:   PackageSteps("build/core"),
		},
		&Module{
			Name:          "build-shortcut",
			Enabled:       true,
			Deps:          []string{"build-system"},
			InstallSubdir: ".",
			Steps:         ScriptShortcutSteps("build-system", "toolchain-build"),
		},
		&Module{
			Name:    "which-shortcut",
			Enabled: true,
			Deps:    []string{"build-system"},
			Steps:   ScriptShortcutSteps("build-system", "toolchain-which"),
		},
		&Module{
			Name:    "base-toolchain",
			Enabled: true,
			Deps:    []string{"clang", "make", "sysroot", "libcxx", "libcxxabi"},
			Steps:   MetaSteps(),
		},
		&Module{
			Name:    "source-properties",
			Enabled: true,
			Steps:   FileSteps("build/source.properties", "source.properties"),
		},
		&Module{
			Name:    "changelog",
			Enabled: true,
			Steps:   FileSteps("docs/changelogs/Changelog.md", "CHANGELOG.md"),
		},
		&Module{
			Name:    "readme",
			Enabled: true,
			Steps:   FileSteps("README.md", "README.md"),
		},
		&Module{
			Name:    "wrap-sh",
			Enabled: true,
			Steps:   PackageSteps("build/wrap_sh"),
		},
		&Module{
			Name:    "toolbox",
			Enabled: true,
			Host:    Windows,
			Steps:   PackageSteps("prebuilts/toolbox"),
		},
	)
}
