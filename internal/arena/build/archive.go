package build

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	appErr "botarena/pkg/errors"
)

// Archive extensions accepted for submitted sources.
func isArchive(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".zip") ||
		strings.HasSuffix(lower, ".tar.gz") ||
		strings.HasSuffix(lower, ".tgz")
}

// Single-source extensions for which a default marker config is
// synthesized.
func isCppSource(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cpp", ".cc", ".cxx":
		return true
	}
	return false
}

// extractArchive unpacks an archive file into destDir.
func extractArchive(archivePath, destDir string) error {
	lower := strings.ToLower(archivePath)
	if strings.HasSuffix(lower, ".zip") {
		return extractZip(archivePath, destDir)
	}
	return extractTarGz(archivePath, destDir)
}

func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return appErr.Wrapf(err, appErr.BuildFailed, "open archive failed: %v", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		target, err := safeJoin(destDir, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.BuildFailed, "create dir failed: %v", err)
			}
			continue
		}
		src, err := file.Open()
		if err != nil {
			return appErr.Wrapf(err, appErr.BuildFailed, "read archive entry %s failed: %v", file.Name, err)
		}
		err = writeEntry(target, src, file.Mode())
		_ = src.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(archivePath, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return appErr.Wrapf(err, appErr.BuildFailed, "open archive failed: %v", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.BuildFailed, "read gzip stream failed: %v", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.BuildFailed, "read archive failed: %v", err)
		}
		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.BuildFailed, "create dir failed: %v", err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		}
	}
}

func writeEntry(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return appErr.Wrapf(err, appErr.BuildFailed, "create dir failed: %v", err)
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm()|0400)
	if err != nil {
		return appErr.Wrapf(err, appErr.BuildFailed, "create file %s failed: %v", filepath.Base(target), err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return appErr.Wrapf(err, appErr.BuildFailed, "extract file %s failed: %v", filepath.Base(target), err)
	}
	return nil
}

// safeJoin rejects entries that would escape the destination dir.
func safeJoin(basePath, relPath string) (string, error) {
	clean := filepath.Clean(relPath)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", appErr.Newf(appErr.BuildFailed, "archive entry %q escapes build dir", relPath)
	}
	full := filepath.Join(basePath, clean)
	if !strings.HasPrefix(full, filepath.Clean(basePath)+string(filepath.Separator)) {
		return "", appErr.Newf(appErr.BuildFailed, "archive entry %q escapes build dir", relPath)
	}
	return full, nil
}
