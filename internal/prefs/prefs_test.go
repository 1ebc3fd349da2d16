package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")

	p := Load("")
	if p.Theme != "" || p.CaseSensitive {
		t.Fatalf("Load() = %#v, want zero prefs", p)
	}
}

func TestLoad_ReadsDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	prefsDir := filepath.Join(home, ".config", "termstack")
	if err := os.MkdirAll(prefsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	prefsFile := filepath.Join(prefsDir, "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("theme = \"Slate\"\ncase_sensitive = true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := Load("")
	if p.Theme != "Slate" || !p.CaseSensitive {
		t.Fatalf("Load() = %#v, want Slate and case sensitive", p)
	}
}

func TestDefaultPath_XDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if got, want := DefaultPath(), filepath.Join(xdg, "termstack", "prefs.toml"); got != want {
		t.Fatalf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "subdir", "prefs.toml")

	in := Prefs{
		Theme:         "Nord",
		CaseSensitive: true,
		Sort:          map[string]SortPref{SortKey("k8s", "pods"): {Column: "Age", Desc: true}},
	}
	if err := Save(prefsFile, in); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	out := Load(prefsFile)
	if out.Theme != "Nord" || !out.CaseSensitive {
		t.Fatalf("Load() = %#v", out)
	}
	if got := out.Sort["k8s/pods"]; got.Column != "Age" || !got.Desc {
		t.Fatalf("Sort[k8s/pods] = %#v, want Age desc", got)
	}
}

func TestLoad_InvalidTOMLFallsBackToDefault(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("not valid toml {{{\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if p := Load(prefsFile); p.Theme != "" {
		t.Fatalf("Theme = %q, want empty", p.Theme)
	}
}
