// Package archive creates the distribution and test package archives.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MakeZip creates zipPath from the named entries (files or directories)
// below rootDir. Entry names inside the archive are relative to rootDir.
// Symlinks are preserved as symlink entries.
func MakeZip(zipPath, rootDir string, entries []string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", zipPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, entry := range entries {
		src := filepath.Join(rootDir, entry)
		info, err := os.Lstat(src)
		if err != nil {
			return err
		}
		if info.IsDir() {
			err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
				if err != nil || info.IsDir() {
					return err
				}
				rel, err := filepath.Rel(rootDir, path)
				if err != nil {
					return err
				}
				return addZipEntry(zw, path, filepath.ToSlash(rel), info)
			})
		} else {
			err = addZipEntry(zw, src, filepath.ToSlash(entry), info)
		}
		if err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

func addZipEntry(zw *zip.Writer, path, name string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, target)
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}

// MakeTarGz archives rootDir/subdir into tarPath (".tar.gz" is appended when
// missing).
func MakeTarGz(tarPath, rootDir, subdir string) error {
	if !strings.HasSuffix(tarPath, ".tar.gz") {
		tarPath += ".tar.gz"
	}
	f, err := os.Create(tarPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tarPath, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	src := filepath.Join(rootDir, subdir)
	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(tw, in)
		return err
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return f.Close()
}
