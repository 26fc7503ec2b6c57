package build

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"botarena/internal/arena/runner"
	appErr "botarena/pkg/errors"
)

// scriptedSource builds a zip submission whose build step is a shell
// script. The script records every invocation in ../rebuilds so tests
// can tell a cache hit from a rebuild.
func scriptedSource(t *testing.T) Source {
	t.Helper()
	return Source{
		Name: "bot.zip",
		Content: zipArchive(t, map[string]string{
			MarkerFileName: `{"build":"sh build.sh","programPath":"prog","run":"sh %program"}`,
			"build.sh":     "echo compiled\nprintf run > prog\nprintf x >> ../rebuilds\n",
		}),
	}
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func tarGzArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		header := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("tar write %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func newTestCache() *Cache {
	return NewCache(runner.New(30 * time.Second))
}

func TestPrepareBuildsAndInstalls(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")

	result, err := newTestCache().Prepare(context.Background(), buildDir, scriptedSource(t), "bot")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if result.RunCommand != "sh %program" {
		t.Fatalf("run command: got %q", result.RunCommand)
	}
	if result.ProgramPath != filepath.Join(root, "bot") {
		t.Fatalf("program path: got %q", result.ProgramPath)
	}
	if result.BuildLog != "compiled\n" {
		t.Fatalf("build log: got %q", result.BuildLog)
	}
	if _, err := os.Stat(filepath.Join(root, MarkerFileName)); err != nil {
		t.Fatalf("marker config not installed: %v", err)
	}
	data, err := os.ReadFile(result.ProgramPath)
	if err != nil || string(data) != "run" {
		t.Fatalf("installed binary: %q, %v", data, err)
	}
}

func TestPrepareCacheHitSkipsBuild(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")
	cache := newTestCache()
	source := scriptedSource(t)

	first, err := cache.Prepare(context.Background(), buildDir, source, "bot")
	if err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	second, err := cache.Prepare(context.Background(), buildDir, source, "bot")
	if err != nil {
		t.Fatalf("second prepare: %v", err)
	}

	if second.RunCommand != first.RunCommand || second.ProgramPath != first.ProgramPath {
		t.Fatalf("cache hit result differs: %+v vs %+v", second, first)
	}
	if second.BuildLog != "" {
		t.Fatalf("cache hit ran the build: log %q", second.BuildLog)
	}
	rebuilds, err := os.ReadFile(filepath.Join(root, "rebuilds"))
	if err != nil {
		t.Fatalf("read rebuild counter: %v", err)
	}
	if string(rebuilds) != "x" {
		t.Fatalf("build ran %d times, want 1", len(rebuilds))
	}
}

func TestPrepareRebuildsWhenBinaryMissing(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build")
	cache := newTestCache()
	source := scriptedSource(t)

	if _, err := cache.Prepare(context.Background(), buildDir, source, "bot"); err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "bot")); err != nil {
		t.Fatalf("remove binary: %v", err)
	}
	if _, err := cache.Prepare(context.Background(), buildDir, source, "bot"); err != nil {
		t.Fatalf("second prepare: %v", err)
	}

	rebuilds, err := os.ReadFile(filepath.Join(root, "rebuilds"))
	if err != nil {
		t.Fatalf("read rebuild counter: %v", err)
	}
	if string(rebuilds) != "xx" {
		t.Fatalf("build ran %d times, want 2", len(rebuilds))
	}
}

func TestPrepareTarGzSource(t *testing.T) {
	root := t.TempDir()
	source := Source{
		Name: "bot.tar.gz",
		Content: tarGzArchive(t, map[string]string{
			MarkerFileName: `{"build":"sh build.sh","programPath":"prog","run":"%program"}`,
			"build.sh":     "printf run > prog\n",
		}),
	}
	result, err := newTestCache().Prepare(context.Background(), filepath.Join(root, "build"), source, "bot")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := os.Stat(result.ProgramPath); err != nil {
		t.Fatalf("installed binary: %v", err)
	}
}

func TestPrepareBuildFailureLeavesNoCache(t *testing.T) {
	root := t.TempDir()
	source := Source{
		Name: "bot.zip",
		Content: zipArchive(t, map[string]string{
			MarkerFileName: `{"build":"sh -c \"echo broken >&2; exit 3\"","programPath":"prog","run":"%program"}`,
		}),
	}
	_, err := newTestCache().Prepare(context.Background(), filepath.Join(root, "build"), source, "bot")
	if !appErr.Is(err, appErr.BuildFailed) {
		t.Fatalf("expected BuildFailed, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, MarkerFileName)); !os.IsNotExist(statErr) {
		t.Fatalf("marker config left behind after failed build")
	}
}

func TestPrepareMissingArtifact(t *testing.T) {
	root := t.TempDir()
	source := Source{
		Name: "bot.zip",
		Content: zipArchive(t, map[string]string{
			MarkerFileName: `{"build":"sh -c true","programPath":"prog","run":"%program"}`,
		}),
	}
	_, err := newTestCache().Prepare(context.Background(), filepath.Join(root, "build"), source, "bot")
	if !appErr.Is(err, appErr.ArtifactMissing) {
		t.Fatalf("expected ArtifactMissing, got %v", err)
	}
}

func TestPrepareArchiveWithoutMarker(t *testing.T) {
	root := t.TempDir()
	source := Source{
		Name:    "bot.zip",
		Content: zipArchive(t, map[string]string{"readme.md": "no marker here"}),
	}
	_, err := newTestCache().Prepare(context.Background(), filepath.Join(root, "build"), source, "bot")
	if !appErr.Is(err, appErr.MarkerConfigMissing) {
		t.Fatalf("expected MarkerConfigMissing, got %v", err)
	}
}

func TestPrepareUnsupportedSource(t *testing.T) {
	root := t.TempDir()
	source := Source{Name: "bot.rs", Content: []byte("fn main() {}")}
	_, err := newTestCache().Prepare(context.Background(), filepath.Join(root, "build"), source, "bot")
	if !appErr.Is(err, appErr.SourceUnsupported) {
		t.Fatalf("expected SourceUnsupported, got %v", err)
	}
}

func TestPrepareRejectsArchivePathTraversal(t *testing.T) {
	root := t.TempDir()
	source := Source{
		Name: "bot.zip",
		Content: zipArchive(t, map[string]string{
			MarkerFileName: `{"build":"sh -c true","programPath":"prog","run":"%program"}`,
			"../escape":    "outside",
		}),
	}
	_, err := newTestCache().Prepare(context.Background(), filepath.Join(root, "build"), source, "bot")
	if err == nil {
		t.Fatalf("expected error for traversal entry")
	}
	if _, statErr := os.Stat(filepath.Join(root, "escape")); !os.IsNotExist(statErr) {
		t.Fatalf("traversal entry written outside build dir")
	}
}
