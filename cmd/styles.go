package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// printer writes styled progress messages. Colours are dropped automatically
// when out is not a terminal.
type printer struct {
	out io.Writer

	title   lipgloss.Style
	step    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	r := lipgloss.NewRenderer(out)
	return &printer{
		out:     out,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		step:    r.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		success: r.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		warning: r.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#6C7086")),
	}
}

func (p *printer) Title(format string, args ...any) {
	p.render(p.title, "\n"+format, args...)
}

func (p *printer) Step(format string, args ...any) {
	p.render(p.step, "\n"+format, args...)
}

func (p *printer) Success(format string, args ...any) {
	p.render(p.success, format, args...)
}

func (p *printer) Warn(format string, args ...any) {
	p.render(p.warning, format, args...)
}

func (p *printer) Error(format string, args ...any) {
	p.render(p.failure, format, args...)
}

func (p *printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) Muted(format string, args ...any) {
	p.render(p.muted, format, args...)
}

// render styles the message, keeping leading blank lines outside the style.
func (p *printer) render(style lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	trimmed := strings.TrimLeft(msg, "\n")
	fmt.Fprint(p.out, msg[:len(msg)-len(trimmed)])
	fmt.Fprintln(p.out, style.Render(trimmed))
}
