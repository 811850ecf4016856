// Package cli is the devrun command tree.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// BuildInfo is stamped into the binary via -ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var (
	globalConfig     string
	globalWorkingDir string
	globalNoSetup    bool
)

// exitError carries a process exit status out of a RunE.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the command tree and returns the process exit status.
// args should be os.Args[1:].
func Execute(args []string, info BuildInfo) int {
	globalConfig = ""
	globalWorkingDir = ""
	globalNoSetup = false

	root := newRootCmd(info)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(info BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:           "devrun",
		Short:         "Run project commands and clean up everything they spawn",
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&globalConfig, "config", "", "Path to manifest file or directory")
	root.PersistentFlags().StringVar(&globalWorkingDir, "working-dir", "", "Project directory to run in")

	root.AddCommand(
		newRunCmd(),
		newListCmd(),
		newLogsCmd(),
		newInitCmd(),
		newVersionCmd(info),
	)
	return root
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devrun %s (commit %s, built %s)\n", info.Version, info.Commit, info.Date)
		},
	}
}

// applyWorkingDir switches to --working-dir before anything resolves paths.
func applyWorkingDir() error {
	if globalWorkingDir == "" {
		return nil
	}
	if err := os.Chdir(globalWorkingDir); err != nil {
		return fmt.Errorf("failed to change to working directory %s: %w", globalWorkingDir, err)
	}
	return nil
}

// extractGlobalFlagsManual pulls the global flags out of an argument list
// that cobra did not parse (run uses DisableFlagParsing so command
// parameters reach the manifest untouched). Flags after the command name
// belong to the command.
func extractGlobalFlagsManual(args []string) (configPath, workingDir string, noSetup bool, remaining []string) {
	remaining = []string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			remaining = append(remaining, args[i:]...)
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch name {
		case "config", "working-dir":
			if !hasValue && i+1 < len(args) {
				i++
				value = args[i]
			}
			if name == "config" {
				configPath = value
			} else {
				workingDir = value
			}
		case "no-setup":
			noSetup = true
		default:
			remaining = append(remaining, arg)
		}
	}
	return configPath, workingDir, noSetup, remaining
}

// mergeExtractedGlobals lets manually extracted flags override the
// persistent ones without clearing them.
func mergeExtractedGlobals(configPath, workingDir string, noSetup bool) {
	if configPath != "" {
		globalConfig = configPath
	}
	if workingDir != "" {
		globalWorkingDir = workingDir
	}
	if noSetup {
		globalNoSetup = true
	}
}
