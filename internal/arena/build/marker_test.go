package build

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	appErr "botarena/pkg/errors"
)

func TestLoadMarkerMissing(t *testing.T) {
	_, err := LoadMarker(filepath.Join(t.TempDir(), MarkerFileName))
	if !appErr.Is(err, appErr.MarkerConfigMissing) {
		t.Fatalf("expected MarkerConfigMissing, got %v", err)
	}
}

func TestLoadMarkerMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), MarkerFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadMarker(path)
	if !appErr.Is(err, appErr.MarkerConfigInvalid) {
		t.Fatalf("expected MarkerConfigInvalid, got %v", err)
	}
}

func TestLoadMarkerMissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), MarkerFileName)
	if err := os.WriteFile(path, []byte(`{"build":"make","run":"%program"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadMarker(path)
	if !appErr.Is(err, appErr.MarkerConfigInvalid) {
		t.Fatalf("expected MarkerConfigInvalid, got %v", err)
	}
}

func TestMarkerWriteLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), MarkerFileName)
	want := MarkerConfig{Build: "make all", ProgramPath: "bin/prog", Run: "%program --serve"}
	if err := want.Write(path); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	got, err := LoadMarker(path)
	if err != nil {
		t.Fatalf("load marker: %v", err)
	}
	if got != want {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, want)
	}
}

func TestExpandRunCommand(t *testing.T) {
	cases := []struct {
		name      string
		tpl       string
		extra     []string
		want      []string
		wantError bool
	}{
		{
			name: "bare program token",
			tpl:  "%program",
			want: []string{"/work/prog"},
		},
		{
			name: "interpreter with token",
			tpl:  "python3 %program --fast",
			want: []string{"python3", "/work/prog", "--fast"},
		},
		{
			name:  "extra args appended",
			tpl:   "%program",
			extra: []string{"/work/match.json"},
			want:  []string{"/work/prog", "/work/match.json"},
		},
		{
			name: "quoted field kept whole",
			tpl:  `%program "two words"`,
			want: []string{"/work/prog", "two words"},
		},
		{
			name: "token inside larger field",
			tpl:  "--path=%program",
			want: []string{"--path=/work/prog"},
		},
		{
			name:      "unknown token rejected",
			tpl:       "%program %config",
			wantError: true,
		},
		{
			name:      "empty template rejected",
			tpl:       "   ",
			wantError: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExpandRunCommand(tc.tpl, "/work/prog", tc.extra...)
			if tc.wantError {
				if !appErr.Is(err, appErr.CommandInvalid) {
					t.Fatalf("expected CommandInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expand: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("argv mismatch: got %v want %v", got, tc.want)
			}
		})
	}
}
