package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadOverrides reads and parses the overrides YAML file at path.
// Returns nil if the file does not exist.
// Returns an error if the file exists but cannot be read or parsed.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read overrides file %s: %w", path, err)
	}

	var overrides Overrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file %s: %w", path, err)
	}

	return &overrides, nil
}

// ApplyOverrides applies local overrides to the manifest in place.
// Vars replace manifest vars of the same name. Command patterns use glob
// syntax (e.g. "docker-*"); once disabled, a command stays disabled.
func ApplyOverrides(manifest *Manifest, overrides *Overrides) {
	if len(overrides.Vars) > 0 && manifest.Vars == nil {
		manifest.Vars = make(map[string]string)
	}
	for key, value := range overrides.Vars {
		manifest.Vars[key] = value
	}

	for pattern, override := range overrides.Commands {
		for name, cmd := range manifest.Commands {
			if matchesPattern(pattern, name) && override.Disabled {
				cmd.Disabled = true
				manifest.Commands[name] = cmd
			}
		}
	}
}

// matchesPattern checks whether name matches pattern using filepath.Match glob syntax.
// An exact match is also accepted (filepath.Match handles that).
func matchesPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}
