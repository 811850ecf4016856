package config

import (
	"fmt"
	"sort"
	"strings"
)

// Validate performs validation on a parsed manifest. All problems are
// collected into a single error.
func Validate(manifest *Manifest) error {
	var errors []string

	if manifest.Version == "" {
		errors = append(errors, "version is required")
	}

	for i, importPath := range manifest.Imports {
		if importPath == "" {
			errors = append(errors, fmt.Sprintf("import at index %d cannot be empty", i))
		}
	}

	if manifest.Commands == nil {
		errors = append(errors, "commands map must be initialized")
	}

	if _, err := manifest.Defaults.KillGraceDuration(); err != nil {
		errors = append(errors, fmt.Sprintf("defaults: invalid kill_grace: %v", err))
	}
	if _, err := manifest.Defaults.CallbackTimeoutDuration(); err != nil {
		errors = append(errors, fmt.Sprintf("defaults: invalid callback_timeout: %v", err))
	}

	for i, step := range manifest.Setup {
		if err := validateStep(fmt.Sprintf("setup step %d", i), step); err != nil {
			errors = append(errors, err.Error())
		}
	}

	for _, name := range sortedKeys(manifest.Hooks) {
		if manifest.Hooks[name].Command == "" {
			errors = append(errors, fmt.Sprintf("hook '%s': command is required", name))
		}
	}

	for _, name := range sortedKeys(manifest.Commands) {
		if err := validateCommand(name, manifest.Commands[name], manifest); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if err := detectRequireCycles(manifest.Commands); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateCommand(name string, cmd Command, manifest *Manifest) error {
	var errors []string

	if cmd.Description == "" {
		errors = append(errors, fmt.Sprintf("command '%s': description is required", name))
	}

	if len(cmd.Steps) == 0 && len(cmd.Requires) == 0 {
		errors = append(errors, fmt.Sprintf("command '%s': must contain at least one step or requirement", name))
	}

	for i, step := range cmd.Steps {
		if err := validateStep(fmt.Sprintf("command '%s': step %d", name, i), step); err != nil {
			errors = append(errors, err.Error())
		}
	}

	for _, req := range cmd.Requires {
		if _, exists := manifest.Commands[req]; !exists {
			errors = append(errors, fmt.Sprintf("command '%s': required command '%s' does not exist", name, req))
		}
	}

	for _, hook := range cmd.Hooks {
		if _, exists := manifest.Hooks[hook]; !exists {
			errors = append(errors, fmt.Sprintf("command '%s': hook '%s' does not exist", name, hook))
		}
	}

	for paramName, param := range cmd.Parameters {
		if param.Description == "" {
			errors = append(errors, fmt.Sprintf("command '%s': parameter '%s' must have a description", name, paramName))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

func validateStep(where string, step Step) error {
	if step.Kind() == StepInvalid {
		return fmt.Errorf("%s: exactly one of run, spawn, shell or wait is required", where)
	}
	if step.Input && step.Kind() != StepRun {
		return fmt.Errorf("%s: input only applies to run steps", where)
	}
	if step.Quiet && step.Kind() == StepShell {
		return fmt.Errorf("%s: shell steps cannot be quiet", where)
	}
	return nil
}

// detectRequireCycles walks the requires graph depth-first.
func detectRequireCycles(commands map[string]Command) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(commands))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("circular requires detected: %s", strings.Join(append(path, name), " -> "))
		case done:
			return nil
		}
		state[name] = visiting
		for _, req := range commands[name].Requires {
			if _, exists := commands[req]; !exists {
				continue
			}
			if err := visit(req, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, name := range sortedKeys(commands) {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
