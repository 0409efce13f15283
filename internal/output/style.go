package output

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/MimeLyc/convertctl/internal/formats"
)

// Styler colors hint text by tone. A zero Styler renders plain text.
type Styler struct {
	color  bool
	muted  lipgloss.Style
	danger lipgloss.Style
	title  lipgloss.Style
	cell   lipgloss.Style
}

func NewStyler(w io.Writer, color bool) Styler {
	r := lipgloss.NewRenderer(w)
	return Styler{
		color:  color,
		muted:  r.NewStyle().Faint(true),
		danger: r.NewStyle().Foreground(lipgloss.Color("1")),
		title:  r.NewStyle().Bold(true),
		cell:   r.NewStyle().PaddingRight(2),
	}
}

func (s Styler) Hint(h formats.Hint) string {
	if !s.color {
		return h.Text
	}
	switch h.Tone {
	case formats.ToneDanger:
		return s.danger.Render(h.Text)
	default:
		return s.muted.Render(h.Text)
	}
}

func (s Styler) Title(text string) string {
	if !s.color {
		return text
	}
	return s.title.Render(text)
}

// Targets renders target labels as an option list.
func (s Styler) Targets(labels []string) string {
	if len(labels) == 0 {
		return "-"
	}
	return strings.Join(labels, ", ")
}

// headerRow is the StyleFunc row of the header; data rows start at 1.
const headerRow = 0

// Table renders t without outer borders, with a bold header when colored.
func (s Styler) Table(t *table.Table) string {
	return t.
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		StyleFunc(func(row, _ int) lipgloss.Style { return s.tableCell(row) }).
		String()
}

func (s Styler) tableCell(row int) lipgloss.Style {
	if row == headerRow && s.color {
		return s.title.PaddingRight(2)
	}
	return s.cell
}
