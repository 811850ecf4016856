package config

import (
	"fmt"
)

// mergeManifests combines a base manifest with imported manifests.
// The base manifest owns version, welcome, defaults and setup; imports
// contribute commands, hooks and vars. Duplicate names are an error.
func mergeManifests(base *Manifest, imports []*Manifest) (*Manifest, error) {
	result := &Manifest{
		Version:  base.Version,
		Welcome:  base.Welcome,
		Defaults: base.Defaults,
		Setup:    base.Setup,
		Vars:     make(map[string]string),
		CIVars:   make(map[string]string),
		Hooks:    make(map[string]Hook),
		Commands: make(map[string]Command),
	}

	for _, m := range append([]*Manifest{base}, imports...) {
		if err := mergeNamed(result.Commands, m.Commands, "command"); err != nil {
			return nil, err
		}
		if err := mergeNamed(result.Hooks, m.Hooks, "hook"); err != nil {
			return nil, err
		}
		if err := mergeNamed(result.Vars, m.Vars, "var"); err != nil {
			return nil, err
		}
		if err := mergeNamed(result.CIVars, m.CIVars, "ci_var"); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// mergeNamed copies src into dst, failing on the first duplicate key.
func mergeNamed[T any](dst, src map[string]T, kind string) error {
	for name, v := range src {
		if _, exists := dst[name]; exists {
			return fmt.Errorf("duplicate %s name '%s' found during merge", kind, name)
		}
		dst[name] = v
	}
	return nil
}
