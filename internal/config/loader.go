package config

import (
	"fmt"
	"os"
	"path/filepath"

	"devrun.dev/internal/dirs"
)

// LoadManifest finds, parses, overrides and validates the manifest.
// Search order:
// 1. customPath (file, or directory containing devrun.yaml)
// 2. ./devrun.yaml
// 3. ./.devrun/devrun.yaml
//
// When no manifest exists an empty one is returned with loaded=false.
func LoadManifest(customPath string) (*Manifest, bool, error) {
	if customPath != "" {
		path := customPath
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, dirs.ManifestFile)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, false, fmt.Errorf("manifest not found at %s: %w", customPath, err)
		}
		m, err := load(path)
		return m, err == nil, err
	}

	for _, path := range []string{
		dirs.ManifestFile,
		filepath.Join(dirs.ConfigDir, dirs.ManifestFile),
	} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := load(path)
		return m, err == nil, err
	}

	return &Manifest{
		Version:  "1.0",
		Commands: make(map[string]Command),
		Hooks:    make(map[string]Hook),
	}, false, nil
}

func load(path string) (*Manifest, error) {
	manifest, err := ParseManifest(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest at %s: %w", path, err)
	}

	overrides, err := LoadOverrides(dirs.OverridesFile)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		ApplyOverrides(manifest, overrides)
	}

	if err := Validate(manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest at %s: %w", path, err)
	}
	return manifest, nil
}
