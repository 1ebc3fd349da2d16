package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SupportedVersion is the only document version understood.
const SupportedVersion = "v1"

const (
	defaultHistorySize = 50
	defaultTheme       = "Dracula"
	defaultBufferSize  = 1000
	defaultMethod      = "GET"
)

// Load reads, converts and validates the document at path. YAML is the
// default format; files ending in .toml are decoded as TOML. Graph errors are
// returned joined, one *Error per problem.
func Load(path string) (*Config, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, formatFor(resolved))
	if err != nil {
		return nil, err
	}
	cfg.Path = resolved
	return cfg, nil
}

// DocFormat is the serialization of a configuration document.
type DocFormat int

const (
	DocYAML DocFormat = iota
	DocTOML
)

func formatFor(path string) DocFormat {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return DocTOML
	}
	return DocYAML
}

// Parse decodes and validates a document held in memory.
func Parse(data []byte, format DocFormat) (*Config, error) {
	var raw rawConfig
	switch format {
	case DocTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg, err := raw.convert()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

// ExpandPath resolves "~" and makes path absolute, returning path unchanged
// when that fails.
func ExpandPath(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}
