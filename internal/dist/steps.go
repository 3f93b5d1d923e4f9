package dist

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Step constructors for the common module shapes. The heavy lifting (actual
// compiler invocations, archive layout) lives in external tools; these steps
// are the narrow glue contract the orchestrator drives.

// CommandSteps builds a module by running an external command in the
// module's intermediate directory, then installs by copying that directory
// into the install tree. Command output is captured in the module log.
func CommandSteps(name string, args ...string) Steps {
	return Steps{
		Build: func(ctx context.Context, bctx *BuildContext, m *Module, log io.Writer) error {
			outDir := bctx.IntermediateOutDir(m.Name)
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Dir = outDir
			cmd.Stdout = log
			cmd.Stderr = log
			cmd.Env = append(os.Environ(),
				"ANVIL_SRC="+bctx.SrcDir,
				"ANVIL_OUT="+outDir,
				"ANVIL_BUILD_NUMBER="+bctx.BuildNumber,
			)
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("%s: %w", m.Name, err)
			}
			return nil
		},
		Install: func(ctx context.Context, bctx *BuildContext, m *Module, log io.Writer) error {
			installPath, err := bctx.InstallPath(m.Name)
			if err != nil {
				return err
			}
			return copyTree(bctx.IntermediateOutDir(m.Name), installPath)
		},
	}
}

// PackageSteps installs a prebuilt directory from the source tree verbatim.
// There is no build phase.
func PackageSteps(srcRel string) Steps {
	return Steps{
		Install: func(ctx context.Context, bctx *BuildContext, m *Module, log io.Writer) error {
			installPath, err := bctx.InstallPath(m.Name)
			if err != nil {
				return err
			}
			return copyTree(filepath.Join(bctx.SrcDir, srcRel), installPath)
		},
	}
}

// FileSteps installs a single file from the source tree.
func FileSteps(srcRel, destRel string) Steps {
	return Steps{
		Install: func(ctx context.Context, bctx *BuildContext, m *Module, log io.Writer) error {
			dest := filepath.Join(bctx.InstallRoot(), destRel)
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			return copyFile(filepath.Join(bctx.SrcDir, srcRel), dest)
		},
	}
}

// ScriptShortcutSteps generates a wrapper script at the install root that
// forwards to a script installed by another module.
func ScriptShortcutSteps(targetModule, targetRel string) Steps {
	return Steps{
		Install: func(ctx context.Context, bctx *BuildContext, m *Module, log io.Writer) error {
			target, err := bctx.InstallPath(targetModule)
			if err != nil {
				return err
			}
			script := filepath.Join(bctx.InstallRoot(), m.Name)
			body := fmt.Sprintf("#!/bin/sh\nexec \"%s\" \"$@\"\n", filepath.Join(target, targetRel))
			if bctx.Host == Windows {
				script += ".cmd"
				body = fmt.Sprintf("@echo off\n\"%s\" %%*\n", filepath.Join(target, targetRel))
			}
			if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
				return err
			}
			return os.WriteFile(script, []byte(body), 0o755)
		},
	}
}

// MetaSteps is for modules that exist only to group dependencies.
func MetaSteps() Steps {
	return Steps{}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			return os.Symlink(link, target)
		}
		return copyFile(path, target)
	})
}
