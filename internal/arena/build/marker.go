package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	appErr "botarena/pkg/errors"
)

// MarkerFileName is the per-build descriptor sitting one level above
// the build directory, next to the compiled target binary. Its
// presence together with the binary is what makes a cache trustable.
const MarkerFileName = "buildconfig.json"

// MarkerConfig records how to build a submission and how to run the
// produced program. Run is a command template over the closed token
// set expanded by ExpandRunCommand.
type MarkerConfig struct {
	Build       string `json:"build"`
	ProgramPath string `json:"programPath"`
	Run         string `json:"run"`
}

// LoadMarker reads and validates a marker config file.
func LoadMarker(path string) (MarkerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return MarkerConfig{}, appErr.Newf(appErr.MarkerConfigMissing, "marker config %s not found", filepath.Base(path))
		}
		return MarkerConfig{}, appErr.Wrapf(err, appErr.MarkerConfigInvalid, "read marker config failed: %v", err)
	}
	var cfg MarkerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return MarkerConfig{}, appErr.Wrapf(err, appErr.MarkerConfigInvalid, "parse marker config failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return MarkerConfig{}, err
	}
	return cfg, nil
}

// Validate checks that all required fields are present.
func (c MarkerConfig) Validate() error {
	if strings.TrimSpace(c.Build) == "" {
		return appErr.New(appErr.MarkerConfigInvalid).WithMessage("marker config is missing the build command")
	}
	if strings.TrimSpace(c.ProgramPath) == "" {
		return appErr.New(appErr.MarkerConfigInvalid).WithMessage("marker config is missing the program path")
	}
	if strings.TrimSpace(c.Run) == "" {
		return appErr.New(appErr.MarkerConfigInvalid).WithMessage("marker config is missing the run command")
	}
	return nil
}

// Write persists the marker config at path.
func (c MarkerConfig) Write(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return appErr.InternalError(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return appErr.Wrapf(err, appErr.BuildFailed, "write marker config failed: %v", err)
	}
	return nil
}

// ProgramToken is the only substitution token of the run-command
// template language: the absolute path of the prepared binary.
const ProgramToken = "%program"

// ExpandRunCommand tokenizes a run-command template, substitutes
// ProgramToken and appends extraArgs (the game server gets the match
// config path this way). Any other %token is rejected rather than
// passed through, keeping the substitution language closed.
func ExpandRunCommand(tpl, programPath string, extraArgs ...string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.CommandInvalid).WithMessage("run command template is empty")
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CommandInvalid, "parse run command failed: %v", err)
	}
	argv := make([]string, 0, len(fields)+len(extraArgs))
	for _, field := range fields {
		expanded := strings.ReplaceAll(field, ProgramToken, programPath)
		if i := strings.IndexByte(expanded, '%'); i >= 0 {
			return nil, appErr.Newf(appErr.CommandInvalid, "unknown substitution token in %q", field)
		}
		argv = append(argv, expanded)
	}
	argv = append(argv, extraArgs...)
	if len(argv) == 0 {
		return nil, appErr.New(appErr.CommandInvalid).WithMessage("run command is empty after expansion")
	}
	return argv, nil
}

// splitCommand tokenizes a build command string.
func splitCommand(command string) ([]string, error) {
	fields, err := shlex.Split(command)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CommandInvalid, "parse build command failed: %v", err)
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.CommandInvalid).WithMessage("build command is empty")
	}
	return fields, nil
}
