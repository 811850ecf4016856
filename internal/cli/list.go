package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"devrun.dev/internal/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyWorkingDir(); err != nil {
				return err
			}
			manifest, err := loadManifest()
			if err != nil {
				return err
			}
			printCommands(cmd.OutOrStdout(), manifest)
			return nil
		},
	}
}

// paramLabel is the plain (uncoloured) label of a parameter row.
func paramLabel(name string, p config.Param) string {
	switch {
	case p.Required:
		return fmt.Sprintf("  --%s (required)", name)
	case p.Default != nil:
		return fmt.Sprintf("  --%s [default: %s]", name, *p.Default)
	default:
		return fmt.Sprintf("  --%s", name)
	}
}

func printCommands(w io.Writer, manifest *config.Manifest) {
	var names []string
	for name, cmd := range manifest.Commands {
		if !cmd.Disabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "No commands defined.")
		return
	}

	st := newStyles(w)

	// Widths come from plain text so colour codes never skew alignment.
	col1 := len("COMMAND")
	col2 := len("REQUIRES")
	for _, name := range names {
		cmd := manifest.Commands[name]
		col1 = max(col1, len(name))
		col2 = max(col2, len(strings.Join(cmd.Requires, ",")))
		for pn, p := range cmd.Parameters {
			col1 = max(col1, len(paramLabel(pn, p)))
		}
	}

	fmt.Fprintf(w, "%s%s  %s%s  %s\n",
		st.header.Render("COMMAND"), strings.Repeat(" ", col1-len("COMMAND")),
		st.header.Render("REQUIRES"), strings.Repeat(" ", col2-len("REQUIRES")),
		st.header.Render("DESCRIPTION"))

	for _, name := range names {
		cmd := manifest.Commands[name]
		fmt.Fprintf(w, "%-*s  %-*s  %s\n", col1, name, col2, strings.Join(cmd.Requires, ","), cmd.Description)

		var paramNames []string
		for pn := range cmd.Parameters {
			paramNames = append(paramNames, pn)
		}
		sort.Strings(paramNames)

		for _, pn := range paramNames {
			p := cmd.Parameters[pn]
			label := paramLabel(pn, p)
			display := label
			if p.Required {
				display = fmt.Sprintf("  --%s %s", pn, st.required.Render("(required)"))
			}
			fmt.Fprintf(w, "%s%s  %-*s  %s\n", display, strings.Repeat(" ", col1-len(label)), col2, "", p.Description)
		}
	}

	if len(manifest.Hooks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.header.Render("HOOKS"))
		for _, name := range sortedHookNames(manifest.Hooks) {
			hook := manifest.Hooks[name]
			desc := hook.Description
			if desc == "" {
				desc = st.dim.Render(hook.Command)
			}
			fmt.Fprintf(w, "%-*s  %s\n", col1, name, desc)
		}
	}
}

func sortedHookNames(hooks map[string]config.Hook) []string {
	names := make([]string, 0, len(hooks))
	for name := range hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
