// Package prefs persists termstack user preferences in TOML.
// The default location is $XDG_CONFIG_HOME/termstack/prefs.toml, falling
// back to ~/.config/termstack/prefs.toml.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/termstack/internal/config"
)

// Prefs holds user preferences. An empty Theme defers to the dashboard's
// configured theme.
type Prefs struct {
	Theme         string `toml:"theme,omitempty"`
	CaseSensitive bool   `toml:"case_sensitive"`
	// Sort remembers the sort column chosen per page, keyed by
	// "<app name>/<page id>".
	Sort map[string]SortPref `toml:"sort,omitempty"`
}

// SortPref is a remembered sort choice.
type SortPref struct {
	Column string `toml:"column"`
	Desc   bool   `toml:"desc"`
}

const defaultPrefsPath = "~/.config/termstack/prefs.toml"

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "termstack", "prefs.toml")
	}
	return defaultPrefsPath
}

// Load reads preferences from path, falling back to defaults when the file
// is missing or unreadable.
func Load(path string) Prefs {
	var p Prefs
	data, err := os.ReadFile(resolvePath(path))
	if err != nil {
		return p
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return Prefs{}
	}
	p.Theme = strings.TrimSpace(p.Theme)
	return p
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved := resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

// SortKey builds the key of Prefs.Sort.
func SortKey(app, page string) string { return app + "/" + page }

func resolvePath(path string) string {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	return config.ExpandPath(path)
}
