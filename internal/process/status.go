package process

import (
	"strings"
)

// Outcome classifies a status entry.
type Outcome string

const (
	OutcomeKilled     Outcome = "killed"
	OutcomeExited     Outcome = "exited"
	OutcomeUnkillable Outcome = "unkillable"
	OutcomeOK         Outcome = "ok"
	OutcomeFailed     Outcome = "failed"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeInfo       Outcome = "info"
)

// SourceKillAll marks the closing entry of a KillAll report.
const SourceKillAll = "killall"

// Status is one line of a teardown summary.
type Status struct {
	Source  string  `json:"source"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail"`
}

// Report is an ordered list of status entries.
type Report []Status

// Text renders the human-readable summary. Details are kept verbatim,
// one per line; empty details are skipped.
func (rep Report) Text() string {
	var b strings.Builder
	for _, st := range rep {
		if st.Detail == "" {
			continue
		}
		b.WriteString(st.Detail)
		if !strings.HasSuffix(st.Detail, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Count returns the number of entries with the given outcome.
func (rep Report) Count(outcome Outcome) int {
	n := 0
	for _, st := range rep {
		if st.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed reports whether any entry is a failure, timeout or unkillable process.
func (rep Report) Failed() bool {
	for _, st := range rep {
		switch st.Outcome {
		case OutcomeFailed, OutcomeTimeout, OutcomeUnkillable:
			return true
		}
	}
	return false
}
