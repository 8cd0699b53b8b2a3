// Package output renders inkdex's command line output.
//
// Styling is driven by lipgloss and degrades cleanly: piping to a file
// or setting NO_COLOR yields plain text with the same layout.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Ink-violet palette.
const (
	colorInk      = "99"  // Primary accent - ink violet
	colorGreen    = "42"  // Success
	colorYellow   = "220" // Warnings
	colorRed      = "196" // Errors
	colorGray     = "245" // Labels, secondary text
	colorDarkGray = "238" // Dimmed detail lines
)

type styles struct {
	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	dim     lipgloss.Style
	label   lipgloss.Style
}

func colorStyles() styles {
	return styles{
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorInk)),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
	}
}

func plainStyles() styles {
	return styles{
		header:  lipgloss.NewStyle(),
		success: lipgloss.NewStyle(),
		warning: lipgloss.NewStyle(),
		failure: lipgloss.NewStyle(),
		dim:     lipgloss.NewStyle(),
		label:   lipgloss.NewStyle(),
	}
}

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	styles styles
}

// Option modifies writer construction.
type Option func(*writerOptions)

type writerOptions struct {
	noColor bool
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) Option {
	return func(o *writerOptions) {
		o.noColor = noColor
	}
}

// New creates a writer over out. Color is used only when out is a
// terminal and neither NO_COLOR nor WithNoColor disables it.
func New(out io.Writer, opts ...Option) *Writer {
	var o writerOptions
	for _, opt := range opts {
		opt(&o)
	}

	useColor := !o.noColor && !DetectNoColor() && IsTTY(out)
	s := plainStyles()
	if useColor {
		s = colorStyles()
	}

	return &Writer{out: out, styles: s}
}

// Header prints a bold section heading.
func (w *Writer) Header(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s\n", w.styles.header.Render(msg))
}

// Status prints a plain status line.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s\n", msg)
}

// Statusf prints a formatted status line.
func (w *Writer) Statusf(format string, args ...any) {
	w.Status(fmt.Sprintf(format, args...))
}

// Success prints a success message with a checkmark.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.warning.Render("⚠"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.failure.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Detail prints an indented, dimmed detail line.
func (w *Writer) Detail(msg string) {
	_, _ = fmt.Fprintf(w.out, "  %s\n", w.styles.dim.Render(msg))
}

// Detailf prints a formatted detail line.
func (w *Writer) Detailf(format string, args ...any) {
	w.Detail(fmt.Sprintf(format, args...))
}

// Field prints an aligned label/value pair for status listings.
func (w *Writer) Field(label string, value any) {
	padded := fmt.Sprintf("%-16s", label+":")
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.label.Render(padded), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON, for --json flags.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// IsTTY checks if output is a terminal.
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
