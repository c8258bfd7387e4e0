// Package ui renders CLI output with terminal-aware styling.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Printer writes styled output to a terminal, falling back to plain
// text when the destination is not a TTY or color is disabled.
type Printer struct {
	out    io.Writer
	styles Styles
}

// NewPrinter creates a Printer for the given writer. Color is enabled
// only for interactive terminals outside CI, unless noColor forces it
// off.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	plain := noColor || DetectNoColor() || DetectCI() || !IsTTY(out)
	return &Printer{out: out, styles: GetStyles(plain)}
}

// Styles exposes the printer's active style set.
func (p *Printer) Styles() Styles {
	return p.styles
}

// Printf writes formatted text without styling.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Header writes a bold section header line.
func (p *Printer) Header(text string) {
	fmt.Fprintln(p.out, p.styles.Header.Render(text))
}

// Success writes a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warning writes a warning line.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Error writes an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// Field writes an indented "label: value" line.
func (p *Printer) Field(label, value string) {
	fmt.Fprintf(p.out, "  %s %s\n",
		p.styles.Label.Render(label+":"), p.styles.Value.Render(value))
}

// IsTTY checks if the writer is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
