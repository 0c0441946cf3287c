package table

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// MaxCellWidth caps the width of non-address cells when rendering.
const MaxCellWidth = 32

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	cellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	errorCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6347"))

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
)

// Options controls rendering.
type Options struct {
	// FullAddresses prints pubkey cells in full instead of shortened.
	FullAddresses bool
	MaxCellWidth  int
}

// Render draws the current page as a bordered text grid with a footer
// showing the page position and filter.
func (t *Table) Render(opt Options) string {
	maxWidth := opt.MaxCellWidth
	if maxWidth <= 0 {
		maxWidth = MaxCellWidth
	}

	page := t.Page()
	grid := make([][]string, len(page))
	for i, r := range page {
		grid[i] = make([]string, len(t.Columns))
		for j, col := range t.Columns {
			text := r.cells[j]
			switch {
			case r.Err != nil && col.ID != AddressColumn:
				if j == 1 {
					text = "decode error: " + r.Err.Error()
				}
			case col.IsPubkey() && !opt.FullAddresses:
				text = Shorten(text)
			}
			if !col.IsPubkey() || opt.FullAddresses {
				text = clip(text, maxWidth)
			}
			grid[i][j] = text
		}
	}

	widths := make([]int, len(t.Columns))
	for j, col := range t.Columns {
		widths[j] = lipgloss.Width(col.Header)
		for i, r := range page {
			if r.Err != nil && j == 1 {
				// the error spans the remaining columns
				continue
			}
			widths[j] = max(widths[j], lipgloss.Width(grid[i][j]))
		}
	}

	sep := borderStyle.Render(" │ ")
	var b strings.Builder

	headers := make([]string, len(t.Columns))
	for j, col := range t.Columns {
		headers[j] = headerStyle.Width(widths[j]).Render(col.Header)
	}
	b.WriteString(strings.Join(headers, sep))
	b.WriteByte('\n')

	rules := make([]string, len(widths))
	for j, w := range widths {
		rules[j] = strings.Repeat("─", w)
	}
	b.WriteString(borderStyle.Render(strings.Join(rules, "─┼─")))
	b.WriteByte('\n')

	for i, r := range page {
		if r.Err != nil {
			addr := cellStyle.Width(widths[0]).Render(grid[i][0])
			if len(t.Columns) > 1 {
				b.WriteString(addr + sep + errorCellStyle.Render(grid[i][1]))
			} else {
				b.WriteString(addr)
			}
			b.WriteByte('\n')
			continue
		}
		cells := make([]string, len(t.Columns))
		for j := range t.Columns {
			cells[j] = cellStyle.Width(widths[j]).Render(grid[i][j])
		}
		b.WriteString(strings.Join(cells, sep))
		b.WriteByte('\n')
	}

	b.WriteString(footerStyle.Render(t.footer()))
	return b.String()
}

func (t *Table) footer() string {
	s := fmt.Sprintf("Page %d of %d · %d rows", t.page+1, t.PageCount(), len(t.view))
	if len(t.view) != len(t.rows) {
		s += fmt.Sprintf(" (filtered from %d)", len(t.rows))
	}
	if t.filter != "" {
		s += fmt.Sprintf(" · filter %q", t.filter)
	}
	return s
}
