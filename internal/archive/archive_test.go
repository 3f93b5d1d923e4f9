package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestMakeZip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "bin", "tool"), "binary")
	writeFile(t, filepath.Join(root, "pkg", "README"), "docs")
	writeFile(t, filepath.Join(root, "loose.txt"), "loose")
	require.NoError(t, os.Symlink("bin/tool", filepath.Join(root, "pkg", "tool-link")))

	zipPath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, MakeZip(zipPath, root, []string{"pkg", "loose.txt"}))

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()

	entries := make(map[string]*zip.File)
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	require.Contains(t, entries, "pkg/bin/tool")
	require.Contains(t, entries, "pkg/README")
	require.Contains(t, entries, "loose.txt")
	require.Contains(t, entries, "pkg/tool-link")

	rc, err := entries["pkg/bin/tool"].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	// Symlinks are stored as links, with the target as the entry body.
	link := entries["pkg/tool-link"]
	assert.NotZero(t, link.Mode()&os.ModeSymlink)
	rc, err = link.Open()
	require.NoError(t, err)
	target, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "bin/tool", string(target))
}

func TestMakeTarGz(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dist", "x86-21-new", "math", "math_test"), "bin")
	writeFile(t, filepath.Join(root, "dist", "notes.txt"), "notes")

	tarPath := filepath.Join(t.TempDir(), "corpus")
	require.NoError(t, MakeTarGz(tarPath, root, "dist"))
	// The suffix is appended when missing.
	require.FileExists(t, tarPath+".tar.gz")

	f, err := os.Open(tarPath + ".tar.gz")
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	names := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			require.NoError(t, err)
			names[hdr.Name] = string(data)
		} else {
			names[hdr.Name] = ""
		}
	}
	assert.Equal(t, "bin", names["dist/x86-21-new/math/math_test"])
	assert.Equal(t, "notes", names["dist/notes.txt"])
	assert.Contains(t, names, "dist")
}
