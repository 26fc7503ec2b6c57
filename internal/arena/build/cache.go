// Package build compiles submitted programs into runnable binaries,
// reusing previous builds through an on-disk marker-config cache.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"botarena/internal/arena/runner"
	appErr "botarena/pkg/errors"
)

// Source is a submitted artifact handed to the cache: a single source
// file or an archive containing a marker config.
type Source struct {
	Name    string
	Content []byte
}

// Result describes a prepared program.
type Result struct {
	// RunCommand is the marker config's run template; expand it with
	// ExpandRunCommand before executing.
	RunCommand string
	// ProgramPath is the absolute path of the compiled binary.
	ProgramPath string
	// BuildLog is the build command's stdout. Empty on a cache hit.
	BuildLog string
}

// Cache prepares runnable programs under per-entity directories.
//
// A build is trusted as cached only when both the marker config and
// the target binary exist one level above the build directory; every
// failure path removes the marker so retries rebuild from scratch.
// The recreate step is not atomic; callers must not touch a build
// directory concurrently (see the per-entity routing note in the
// worker docs) and must always go through Prepare rather than trust a
// half-written cache.
type Cache struct {
	runner *runner.Runner
}

// NewCache creates a build cache executing build commands through the
// given process runner.
func NewCache(procRunner *runner.Runner) *Cache {
	return &Cache{runner: procRunner}
}

// Prepare returns a runnable program for the source, building it if
// no valid cache exists. Safe to call repeatedly; retries after a new
// upload rebuild because the caller re-derives from current source.
func (c *Cache) Prepare(ctx context.Context, buildDir string, source Source, targetName string) (Result, error) {
	if buildDir == "" {
		return Result{}, appErr.ValidationError("build_dir", "required")
	}
	if source.Name == "" {
		return Result{}, appErr.New(appErr.SourceMissing)
	}
	if targetName == "" {
		return Result{}, appErr.ValidationError("target_name", "required")
	}

	parent := filepath.Dir(buildDir)
	markerPath := filepath.Join(parent, MarkerFileName)
	targetPath := filepath.Join(parent, targetName)

	// Cache hit: marker config and target binary both present.
	if cfg, err := LoadMarker(markerPath); err == nil {
		if _, statErr := os.Stat(targetPath); statErr == nil {
			return Result{RunCommand: cfg.Run, ProgramPath: targetPath}, nil
		}
	}

	// Rebuild from scratch. Drop any stale marker or binary first so
	// a failure part-way through leaves nothing that looks cached.
	_ = os.Remove(markerPath)
	_ = os.Remove(targetPath)
	if err := os.RemoveAll(buildDir); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.BuildFailed, "clear build dir failed: %v", err)
	}
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.BuildFailed, "create build dir failed: %v", err)
	}

	sourcePath := filepath.Join(buildDir, filepath.Base(source.Name))
	if err := os.WriteFile(sourcePath, source.Content, 0644); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.BuildFailed, "write source failed: %v", err)
	}

	cfg, err := c.resolveMarker(sourcePath, buildDir, markerPath, targetName)
	if err != nil {
		return Result{}, err
	}

	result, err := c.runBuild(ctx, cfg, buildDir, targetPath)
	if err != nil {
		// Leave no trusted cache behind a failed build.
		_ = os.Remove(markerPath)
		return Result{}, err
	}
	return result, nil
}

// resolveMarker obtains the marker config for a fresh build: from
// inside a submitted archive (moved one level up), or synthesized for
// a recognized single-source file.
func (c *Cache) resolveMarker(sourcePath, buildDir, markerPath, targetName string) (MarkerConfig, error) {
	switch {
	case isArchive(sourcePath):
		if err := extractArchive(sourcePath, buildDir); err != nil {
			return MarkerConfig{}, err
		}
		inner := filepath.Join(buildDir, MarkerFileName)
		cfg, err := LoadMarker(inner)
		if err != nil {
			return MarkerConfig{}, err
		}
		if err := os.Rename(inner, markerPath); err != nil {
			return MarkerConfig{}, appErr.Wrapf(err, appErr.BuildFailed, "move marker config failed: %v", err)
		}
		return cfg, nil

	case isCppSource(sourcePath):
		cfg := MarkerConfig{
			Build:       fmt.Sprintf("g++ -O2 -o %s %s", targetName, filepath.Base(sourcePath)),
			ProgramPath: targetName,
			Run:         ProgramToken,
		}
		if err := cfg.Write(markerPath); err != nil {
			return MarkerConfig{}, err
		}
		return cfg, nil

	default:
		return MarkerConfig{}, appErr.Newf(appErr.SourceUnsupported, "no build rule for %q", filepath.Base(sourcePath))
	}
}

// runBuild executes the build command inside buildDir and moves the
// produced binary up next to the marker config.
func (c *Cache) runBuild(ctx context.Context, cfg MarkerConfig, buildDir, targetPath string) (Result, error) {
	argv, err := splitCommand(cfg.Build)
	if err != nil {
		return Result{}, err
	}

	out, runErr := c.runner.Run(ctx, buildDir, argv)
	if runErr != nil {
		return Result{}, appErr.Wrapf(runErr, appErr.BuildFailed,
			"build command failed: %s", buildFailureDetail(out))
	}

	produced, err := safeJoin(buildDir, cfg.ProgramPath)
	if err != nil {
		return Result{}, appErr.Wrap(err, appErr.MarkerConfigInvalid)
	}
	if _, err := os.Stat(produced); err != nil {
		return Result{}, appErr.Newf(appErr.ArtifactMissing, "build produced no %s", cfg.ProgramPath)
	}
	if err := os.Rename(produced, targetPath); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.BuildFailed, "install binary failed: %v", err)
	}

	return Result{
		RunCommand:  cfg.Run,
		ProgramPath: targetPath,
		BuildLog:    out.Stdout,
	}, nil
}

func buildFailureDetail(out runner.Output) string {
	if out.Stderr != "" {
		return out.Stderr
	}
	if out.Stdout != "" {
		return out.Stdout
	}
	return fmt.Sprintf("exit code %d", out.ExitCode)
}
