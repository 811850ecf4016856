package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"devrun.dev/internal/logs"
)

func newLogsCmd() *cobra.Command {
	var (
		lines        int
		filter       string
		sessionID    string
		debug        bool
		listSessions bool
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "logs [command]",
		Short: "Show captured output of past runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyWorkingDir(); err != nil {
				return err
			}
			var command string
			if len(args) == 1 {
				command = args[0]
			}

			if listSessions {
				return printSessions(cmd.OutOrStdout(), command, limit)
			}
			if command == "" && sessionID == "" {
				return fmt.Errorf("specify a command or --session")
			}

			out, err := logs.ReadLog(command, logs.ReadOptions{
				Lines:     lines,
				Filter:    filter,
				SessionID: sessionID,
				Debug:     debug,
			})
			if err != nil {
				return err
			}
			if len(out) == 0 {
				fmt.Fprintln(os.Stderr, "No log output found.")
				return nil
			}
			for _, line := range out {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&lines, "lines", 0, "Number of lines to tail (0 = all)")
	cmd.Flags().StringVar(&filter, "filter", "", "Regex pattern to filter lines")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to read from (default: latest)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Show the structured debug log instead of command output")
	cmd.Flags().BoolVar(&listSessions, "sessions", false, "List recorded sessions")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")

	return cmd
}

func printSessions(w io.Writer, command string, limit int) error {
	sessions, err := logs.ListSessions(command, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "No sessions recorded.")
		return nil
	}

	st := newStyles(w)
	fmt.Fprintf(w, "%-36s  %-16s  %-19s  %-8s  %s\n",
		st.header.Render("SESSION"), st.header.Render("COMMAND"), st.header.Render("STARTED"),
		st.header.Render("DURATION"), st.header.Render("EXIT"))
	for _, s := range sessions {
		duration, exit := "-", "-"
		if meta, err := logs.ReadSessionMetadata(s.SessionID); err == nil {
			if meta.Duration != nil {
				duration = formatDuration(*meta.Duration)
			}
			switch {
			case meta.Interrupted:
				exit = "interrupted"
			case meta.ExitCode != nil:
				exit = fmt.Sprintf("%d", *meta.ExitCode)
			}
		}
		fmt.Fprintf(w, "%-36s  %-16s  %-19s  %-8s  %s\n",
			s.SessionID, s.Command, s.StartTime.Format("2006-01-02 15:04:05"), duration, exit)
	}
	return nil
}
