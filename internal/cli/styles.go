package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("10")
	colorWarning = lipgloss.Color("11")
	colorError   = lipgloss.Color("9")
	colorMuted   = lipgloss.Color("8")
	colorWhite   = lipgloss.Color("15")
)

// Badge styles for changeset states.
var (
	badgeApplied = lipgloss.NewStyle().
			Background(colorSuccess).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1).
			Bold(true)

	badgePending = lipgloss.NewStyle().
			Background(colorWarning).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1).
			Bold(true)

	badgeMissing = lipgloss.NewStyle().
			Background(colorError).
			Foreground(colorWhite).
			Padding(0, 1).
			Bold(true)
)

var (
	panelSuccess = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSuccess).
			Padding(1, 2)

	panelError = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(1, 2)
)

// RenderBadge renders a state badge, falling back to [TEXT] in plain mode.
func RenderBadge(text string, style lipgloss.Style) string {
	if !EnableColors() {
		return "[" + text + "]"
	}
	return style.Render(text)
}

// RenderAppliedBadge renders an "applied" badge.
func RenderAppliedBadge() string {
	return RenderBadge("APPLIED", badgeApplied)
}

// RenderPendingBadge renders a "pending" badge.
func RenderPendingBadge() string {
	return RenderBadge("PENDING", badgePending)
}

// RenderMissingBadge renders a "missing" badge for applied versions whose
// changeset is gone from the repository.
func RenderMissingBadge() string {
	return RenderBadge("MISSING", badgeMissing)
}

// RenderSuccessPanel renders content in a success-styled panel.
func RenderSuccessPanel(title, content string) string {
	if !EnableColors() {
		return fmt.Sprintf("✓ %s\n%s", title, content)
	}
	titleRendered := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorSuccess).
		Render("✓ " + title)
	return panelSuccess.Render(titleRendered + "\n\n" + content)
}

// RenderErrorPanel renders content in an error-styled panel.
func RenderErrorPanel(title, content string) string {
	if !EnableColors() {
		return fmt.Sprintf("✗ %s\n%s", title, content)
	}
	titleRendered := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorError).
		Render("✗ " + title)
	return panelError.Render(titleRendered + "\n\n" + content)
}

// Table renders aligned columns with a plain/styled split like the rest
// of the package.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{headers: headers, widths: widths}
}

// AddRow appends a row, padding short rows with empty cells.
func (t *Table) AddRow(cells ...string) {
	for len(cells) < len(t.headers) {
		cells = append(cells, "")
	}
	for i, cell := range cells {
		if i < len(t.widths) {
			if w := len(stripAnsi(cell)); w > t.widths[i] {
				t.widths[i] = w
			}
		}
	}
	t.rows = append(t.rows, cells)
}

// String renders the table.
func (t *Table) String() string {
	if len(t.headers) == 0 {
		return ""
	}
	var b strings.Builder

	for i, h := range t.headers {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(Header(padRight(h, t.widths[i])))
	}
	b.WriteString("\n")

	for i, w := range t.widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(Dim(strings.Repeat("-", w)))
	}
	b.WriteString("\n")

	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(t.widths) {
				break
			}
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(padRightAnsi(cell, t.widths[i]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// KeyValue renders a key-value pair.
func KeyValue(key, value string) string {
	if !EnableColors() {
		return fmt.Sprintf("%s: %s", key, value)
	}
	return Dim(key+":") + " " + value
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// padRightAnsi pads a string that may contain ANSI codes.
func padRightAnsi(s string, width int) string {
	plainLen := len(stripAnsi(s))
	if plainLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-plainLen)
}

// stripAnsi removes escape sequences for width calculation.
func stripAnsi(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == 'm' {
				inEscape = false
			}
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}
