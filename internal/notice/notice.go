// Package notice prints boxed status banners to the console.
//
// Every banner is 80 columns wide: a "####" border on both sides and the
// message word-wrapped to 65 columns and centred between them. Wrapping
// only moves line breaks; the words of the message are printed verbatim.
package notice

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

// Level selects the banner colour.
type Level int

const (
	Status Level = iota
	Light
	Success
	Failure
)

func (l Level) String() string {
	switch l {
	case Status:
		return "status"
	case Light:
		return "light"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

const (
	// Width is the full banner width including borders.
	Width = 80
	// WrapWidth is the widest a message line may be before wrapping.
	WrapWidth = 65
	border    = "####"
)

// Printer writes banners to a single writer. It is safe for concurrent use.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[Level]lipgloss.Style
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// New returns a Printer for w. Colour is enabled only when w is a terminal.
func New(w io.Writer) *Printer {
	return newPrinter(w, IsTerminal(w))
}

// NewPlain returns a Printer that never emits escape codes.
func NewPlain(w io.Writer) *Printer {
	return newPrinter(w, false)
}

func newPrinter(w io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		w: w,
		styles: map[Level]lipgloss.Style{
			Status:  r.NewStyle().Foreground(lipgloss.Color("12")),
			Light:   r.NewStyle().Foreground(lipgloss.Color("14")),
			Success: r.NewStyle().Foreground(lipgloss.Color("10")),
			Failure: r.NewStyle().Foreground(lipgloss.Color("9")),
		},
	}
}

// Print writes msg as a banner of the given level.
func (p *Printer) Print(level Level, msg string) {
	style, ok := p.styles[level]
	if !ok {
		style = p.styles[Status]
	}

	var b strings.Builder
	b.WriteString("\n\n")
	for _, line := range Box(msg) {
		b.WriteString(style.Render(line))
		b.WriteByte('\n')
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, b.String())
}

func (p *Printer) Status(msg string)  { p.Print(Status, msg) }
func (p *Printer) Light(msg string)   { p.Print(Light, msg) }
func (p *Printer) Success(msg string) { p.Print(Success, msg) }
func (p *Printer) Failure(msg string) { p.Print(Failure, msg) }

// Wrap splits msg into lines no wider than WrapWidth. Words longer than
// the limit are kept whole. Blank lines are dropped.
func Wrap(msg string) []string {
	var lines []string
	for _, para := range strings.Split(msg, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, line := range strings.Split(wordwrap.String(para, WrapWidth), "\n") {
			lines = append(lines, strings.TrimRight(line, " "))
		}
	}
	return lines
}

// Box lays msg out as uncoloured banner rows, including the empty first
// and last rows.
func Box(msg string) []string {
	lines := Wrap(msg)
	rows := make([]string, 0, len(lines)+2)
	rows = append(rows, boxRow(""))
	for _, line := range lines {
		rows = append(rows, boxRow(line))
	}
	rows = append(rows, boxRow(""))
	return rows
}

func boxRow(line string) string {
	used := len(border) + 1 + lipgloss.Width(line) + 1 + len(border)
	left := (Width - used) / 2
	if left < 0 {
		left = 0
	}
	right := Width - used - left
	if right < 0 {
		right = 0
	}
	return border + " " + strings.Repeat(" ", left) + line + strings.Repeat(" ", right) + " " + border
}
