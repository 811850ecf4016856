package config

// Manifest is the complete dispatcher configuration.
type Manifest struct {
	Version  string             `yaml:"version"`
	Imports  []string           `yaml:"imports,omitempty"`
	Welcome  string             `yaml:"welcome"`
	Defaults Defaults           `yaml:"defaults"`
	Vars     map[string]string  `yaml:"vars"`
	CIVars   map[string]string  `yaml:"ci_vars"`
	Setup    []Step             `yaml:"setup"`
	Hooks    map[string]Hook    `yaml:"hooks"`
	Commands map[string]Command `yaml:"commands"`
}

// Defaults holds manifest-wide settings.
type Defaults struct {
	Shell           string            `yaml:"shell"`
	Env             map[string]string `yaml:"env"`
	KillGrace       string            `yaml:"kill_grace"`
	CallbackTimeout string            `yaml:"callback_timeout"`
}

// Command is a named chain of steps the operator can run.
type Command struct {
	Description      string            `yaml:"description"`
	Requires         []string          `yaml:"requires"`
	Hooks            []string          `yaml:"hooks"`
	Steps            []Step            `yaml:"steps"`
	Success          string            `yaml:"success"`
	WorkingDirectory string            `yaml:"working_directory"`
	Env              map[string]string `yaml:"env"`
	Parameters       map[string]Param  `yaml:"parameters"`
	Disabled         bool              `yaml:"disabled,omitempty"`
}

// Param is a command parameter, passed on the command line as --name=value.
type Param struct {
	Required    bool    `yaml:"required"`
	Description string  `yaml:"description"`
	Default     *string `yaml:"default"`
}

// Step is one action in a command chain. Exactly one of Run, Spawn, Shell
// or Wait is set.
type Step struct {
	// Run blocks until the command exits; a non-zero exit fails the chain.
	Run string `yaml:"run,omitempty"`
	// Spawn starts the command in the background.
	Spawn string `yaml:"spawn,omitempty"`
	// Shell hands the terminal to the command.
	Shell string `yaml:"shell,omitempty"`
	// Wait blocks until every background command has exited.
	Wait bool `yaml:"wait,omitempty"`

	Message      string `yaml:"message,omitempty"`
	Quiet        bool   `yaml:"quiet,omitempty"`
	Input        bool   `yaml:"input,omitempty"`
	AllowFailure bool   `yaml:"allow_failure,omitempty"`
}

// StepKind names the action of a step.
type StepKind string

const (
	StepRun     StepKind = "run"
	StepSpawn   StepKind = "spawn"
	StepShell   StepKind = "shell"
	StepWait    StepKind = "wait"
	StepInvalid StepKind = ""
)

// Kind returns the step's action, or StepInvalid when zero or several
// actions are set.
func (s Step) Kind() StepKind {
	kind := StepInvalid
	n := 0
	if s.Run != "" {
		kind, n = StepRun, n+1
	}
	if s.Spawn != "" {
		kind, n = StepSpawn, n+1
	}
	if s.Shell != "" {
		kind, n = StepShell, n+1
	}
	if s.Wait {
		kind, n = StepWait, n+1
	}
	if n != 1 {
		return StepInvalid
	}
	return kind
}

// CommandLine returns the command line of a run, spawn or shell step.
func (s Step) CommandLine() string {
	switch s.Kind() {
	case StepRun:
		return s.Run
	case StepSpawn:
		return s.Spawn
	case StepShell:
		return s.Shell
	default:
		return ""
	}
}

// Hook is a cleanup command run when the tool is interrupted, before the
// remaining child processes are killed.
type Hook struct {
	Description string `yaml:"description"`
	Command     string `yaml:"command"`
	Message     string `yaml:"message"`
}

// Overrides is the machine-local overrides file.
type Overrides struct {
	Vars     map[string]string          `yaml:"vars"`
	Commands map[string]CommandOverride `yaml:"commands"`
}

// CommandOverride adjusts commands whose name matches a glob pattern.
type CommandOverride struct {
	Disabled bool `yaml:"disabled"`
}
