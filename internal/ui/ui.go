// Package ui renders CLI output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
)

var (
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	sqlStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor).
			Padding(0, 1)
)

// Printer writes styled output to Out and errors to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// Stdout prints to the process's standard streams.
var Stdout = &Printer{Out: os.Stdout, Err: os.Stderr}

// New returns a printer writing to out and err.
func New(out, err io.Writer) *Printer {
	return &Printer{Out: out, Err: err}
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error prints an error message.
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.Err, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning.
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintln(p.Out, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Section prints a titled rule.
func (p *Printer) Section(title string) {
	fmt.Fprintln(p.Out, lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(SecondaryColor).
		Render(TitleStyle.Render(title)))
}

// KeyValue prints aligned key/value lines.
func (p *Printer) KeyValue(pairs [][2]string) {
	width := 0
	for _, kv := range pairs {
		if len(kv[0]) > width {
			width = len(kv[0])
		}
	}
	for _, kv := range pairs {
		key := SecondaryStyle.Render(kv[0] + ":" + strings.Repeat(" ", width-len(kv[0])))
		fmt.Fprintf(p.Out, "  %s %s\n", key, kv[1])
	}
}

// Statement prints one compiled statement and its bound parameters.
func (p *Printer) Statement(n int, sql string, params []interface{}) {
	fmt.Fprintln(p.Out, SecondaryStyle.Render(fmt.Sprintf("statement %d", n)))
	fmt.Fprintln(p.Out, sqlStyle.Render(sql))

	if len(params) == 0 {
		return
	}
	index := color.New(color.FgCyan)
	for i, v := range params {
		fmt.Fprintf(p.Out, "  %s %s\n", index.Sprintf("$%d", i+1), formatParam(v))
	}
}

func formatParam(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return color.New(color.Faint).Sprint("NULL")
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Table prints rows with a header using pterm.
func (p *Printer) Table(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithWriter(p.Out).WithData(data).Render()
}

// Markdown renders markdown for the terminal.
func (p *Printer) Markdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(content)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(p.Out, out)
	return err
}

// Header prints a boxed banner.
func (p *Printer) Header(title, subtitle string) {
	fmt.Fprintln(p.Out, lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), SecondaryStyle.Render(subtitle))))
}

// DisableColor turns off styling, for non-terminal output.
func DisableColor() {
	color.NoColor = true
	pterm.DisableColor()
	lipgloss.SetColorProfile(termenv.Ascii)
}
