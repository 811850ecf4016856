package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"devrun.dev/internal/config"
	"devrun.dev/internal/dirs"
	"devrun.dev/internal/dispatch"
	"devrun.dev/internal/logs"
	"devrun.dev/internal/notice"
	"devrun.dev/internal/process"
	"devrun.dev/internal/shutdown"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "run <command> [--param=value...]",
		Short:              "Run a manifest command",
		Long:               "Run a manifest command. Ctrl-C runs the cleanup hooks and kills every process the command spawned.",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				if a == "--help" || a == "-h" {
					return cmd.Help()
				}
			}
			configPath, workingDir, noSetup, remaining := extractGlobalFlagsManual(args)
			mergeExtractedGlobals(configPath, workingDir, noSetup)

			if err := applyWorkingDir(); err != nil {
				return err
			}
			if code := cmdRun(remaining); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
}

func loadManifest() (*config.Manifest, error) {
	manifest, loaded, err := config.LoadManifest(globalConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !loaded {
		return nil, fmt.Errorf("no config file found (use --config or run 'devrun init')")
	}
	return manifest, nil
}

func cmdRun(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: devrun run <command> [--param=value...]")
		return 1
	}

	name := args[0]

	manifest, err := loadManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	def, exists := manifest.Commands[name]
	if !exists {
		fmt.Fprintf(os.Stderr, "Error: command '%s' not found\n", name)
		printAvailable(manifest)
		return 1
	}
	if def.Disabled {
		fmt.Fprintf(os.Stderr, "Error: command '%s' is disabled by %s\n", name, dirs.OverridesFile)
		return 1
	}

	params, err := parseCommandParams(def, args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	params, err = dispatch.ResolveParams(def, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return execute(manifest, name, params)
}

// execute wires the registry, the shutdown coordinator and the dispatcher
// for one invocation and runs it under the coordinator.
func execute(manifest *config.Manifest, name string, params map[string]string) int {
	grace, err := manifest.Defaults.KillGraceDuration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	timeout, err := manifest.Defaults.CallbackTimeoutDuration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if _, err := logs.CleanupAllSessions(logs.DefaultRetention); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session cleanup failed: %v\n", err)
	}
	session, err := logs.StartSession(name, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log := session.Logger()

	printer := notice.New(os.Stderr)
	registry := process.NewRegistry(process.Options{
		Shell:     manifest.Defaults.Shell,
		Env:       manifest.Defaults.Env,
		KillGrace: grace,
	})
	coordinator := shutdown.New(registry, printer, shutdown.Options{
		CallbackTimeout: timeout,
		Logger:          log,
	})
	runner := dispatch.New(manifest, registry, coordinator, printer, dispatch.Options{
		Vars:      manifest.ResolveVars(os.Getenv),
		Output:    session.Output(),
		SkipSetup: globalNoSetup,
		Logger:    log,
	})

	log.Info("invocation started", "params", params, "ci", os.Getenv(config.CIEnvVar) == "true")
	code := coordinator.Run(context.Background(), func(ctx context.Context) int {
		return runner.Execute(ctx, name, params)
	})

	counts := registry.Counts()
	log.Debug("registry drained",
		"spawned", counts.Spawned, "reaped", counts.Reaped, "killed", counts.Killed, "live", counts.Live)

	if err := session.Finish(code, coordinator.Interrupted()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return code
}

// parseCommandParams parses --key=value flags from args based on the
// command's parameter definitions. Only flags that were given are returned;
// defaults and required checks are applied by dispatch.ResolveParams.
func parseCommandParams(def config.Command, args []string) (map[string]string, error) {
	params := make(map[string]string)
	if len(def.Parameters) == 0 {
		if len(args) > 0 {
			return nil, fmt.Errorf("command does not accept parameters, but got: %s", strings.Join(args, " "))
		}
		return params, nil
	}

	fs := pflag.NewFlagSet("params", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for name, param := range def.Parameters {
		fs.String(name, "", param.Description)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	fs.Visit(func(f *pflag.Flag) {
		params[f.Name] = f.Value.String()
	})
	return params, nil
}

func printAvailable(manifest *config.Manifest) {
	var names []string
	for name, cmd := range manifest.Commands {
		if !cmd.Disabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Available commands:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", name)
	}
}
