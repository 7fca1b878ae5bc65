// Package report renders pipeline stage results as timestamped,
// severity-tagged lines. It is the only surface a human operator or CI
// runner observes.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/moor-sh/moor/internal/domain"
)

// Severity tags a reported line.
type Severity int

const (
	Info Severity = iota
	Success
	Warning
	Error
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	timeStyle    = lipgloss.NewStyle().Faint(true)
)

func (s Severity) tag() string {
	switch s {
	case Success:
		return "OK"
	case Warning:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (s Severity) style() lipgloss.Style {
	switch s {
	case Success:
		return successStyle
	case Warning:
		return warningStyle
	case Error:
		return errorStyle
	default:
		return infoStyle
	}
}

// Reporter writes severity-tagged lines to out. Styling is dropped when
// out is not a terminal so CI logs stay clean.
type Reporter struct {
	out    io.Writer
	styled bool
	now    func() time.Time
}

func New(out io.Writer) *Reporter {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd())
	}
	return &Reporter{out: out, styled: styled, now: time.Now}
}

// Line emits one report line for a pipeline stage.
func (r *Reporter) Line(sev Severity, stage, format string, args ...interface{}) {
	timestamp := r.now().Format("2006-01-02 15:04:05")
	tag := sev.tag()
	msg := fmt.Sprintf(format, args...)

	if r.styled {
		fmt.Fprintf(r.out, "%s %s %s %s\n",
			timeStyle.Render(timestamp),
			sev.style().Render(fmt.Sprintf("[%-5s]", tag)),
			lipgloss.NewStyle().Bold(true).Render(stage),
			msg,
		)
		return
	}
	fmt.Fprintf(r.out, "%s [%-5s] %s %s\n", timestamp, tag, stage, msg)
}

func (r *Reporter) Info(stage, format string, args ...interface{}) {
	r.Line(Info, stage, format, args...)
}

func (r *Reporter) Success(stage, format string, args ...interface{}) {
	r.Line(Success, stage, format, args...)
}

func (r *Reporter) Warn(stage, format string, args ...interface{}) {
	r.Line(Warning, stage, format, args...)
}

func (r *Reporter) Error(stage, format string, args ...interface{}) {
	r.Line(Error, stage, format, args...)
}

// Summary prints the final pass/fail line and returns the exit code for
// the run.
func (r *Reporter) Summary(err error) int {
	if err == nil {
		r.Success("pipeline", "all stages completed")
		return domain.ExitOK
	}
	code := domain.ExitCode(err)
	r.Error("pipeline", "failed: %v (exit %d)", err, code)
	return code
}
