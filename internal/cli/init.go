package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"devrun.dev/internal/dirs"
)

const minimalConfig = `version: "1.0"

welcome: "Welcome! Run 'devrun list' to see what you can do."

# vars are available in commands as {{.name}}; ci_vars replace them when
# CONTINUOUS_INTEGRATION=true.
vars:
  build: "echo 'Add your build command here'"
ci_vars:
  build: "echo 'Add your CI build command here'"

# hooks run when devrun is interrupted, before spawned processes are killed.
hooks:
  stop_services:
    description: "Stop anything the processes left behind"
    command: "echo 'Add your cleanup command here'"
    message: "Services stopped."

commands:
  build:
    description: "Build the project"
    hooks: [stop_services]
    success: "Build successful"
    steps:
      - run: "{{.build}}"
        message: "Building..."

  test:
    description: "Run tests"
    requires: [build]
    steps:
      - run: "echo 'Add your test command here'"

  lint:
    description: "Run linters in parallel"
    steps:
      - spawn: "echo 'Add your first linter here'"
      - spawn: "echo 'Add your second linter here'"
      - wait: true
`

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter " + dirs.ManifestFile,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyWorkingDir(); err != nil {
				return err
			}
			if err := handleInit(force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully created %s\n", dirs.ManifestFile)
			fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to add your project's commands, then run 'devrun list'.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing manifest")
	return cmd
}

// handleInit writes the starter manifest into the current directory.
func handleInit(force bool) error {
	if _, err := os.Stat(dirs.ManifestFile); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", dirs.ManifestFile)
	}
	if err := os.WriteFile(dirs.ManifestFile, []byte(minimalConfig), 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	return nil
}
