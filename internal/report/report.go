// Package report renders selection statistics and score histograms for terminals.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"yashubustudio/papersift/selection"
)

// Theme defines the colors used by a Formatter.
type Theme struct {
	Accent   lipgloss.Color
	Muted    lipgloss.Color
	Selected lipgloss.Color
	Rejected lipgloss.Color
	Border   lipgloss.Border
}

// DefaultTheme returns the default color theme.
func DefaultTheme() Theme {
	return Theme{
		Accent:   lipgloss.Color("39"),
		Muted:    lipgloss.Color("245"),
		Selected: lipgloss.Color("142"),
		Rejected: lipgloss.Color("240"),
		Border:   lipgloss.RoundedBorder(),
	}
}

// Formatter renders report sections.
type Formatter struct {
	// Width is the widest histogram bar in cells.
	Width int
	// NoColor disables styling so output is plain text.
	NoColor bool
	Theme   Theme
}

// New creates a Formatter with default settings.
func New() *Formatter {
	return &Formatter{Width: 40, Theme: DefaultTheme()}
}

func (f *Formatter) style() lipgloss.Style {
	return lipgloss.NewStyle()
}

func (f *Formatter) color(text string, c lipgloss.Color, bold bool) string {
	if f.NoColor {
		return text
	}
	return f.style().Foreground(c).Bold(bold).Render(text)
}

func (f *Formatter) box(content string) string {
	if f.NoColor {
		return content
	}
	return f.style().
		Border(f.Theme.Border).
		BorderForeground(f.Theme.Accent).
		Padding(0, 1).
		Render(content)
}

// Statistics renders a statistics snapshot; strategy labels how the cutoff was chosen.
func (f *Formatter) Statistics(st selection.Statistics, strategy string) string {
	type row struct {
		label string
		value string
	}
	rows := []row{
		{"Papers", fmt.Sprintf("%d", st.Count)},
		{"Mean", fmt.Sprintf("%.4f", st.Mean)},
		{"Std", fmt.Sprintf("%.4f", st.Std)},
		{"Min", fmt.Sprintf("%.4f", st.Min)},
		{"Q25", fmt.Sprintf("%.4f", st.Q25)},
		{"Median", fmt.Sprintf("%.4f", st.Median)},
		{"Q75", fmt.Sprintf("%.4f", st.Q75)},
		{"Q90", fmt.Sprintf("%.4f", st.Q90)},
		{"Q95", fmt.Sprintf("%.4f", st.Q95)},
		{"Max", fmt.Sprintf("%.4f", st.Max)},
	}
	if st.HasCutoff {
		label := "Threshold"
		if strategy != "" {
			label += " (" + strategy + ")"
		}
		rows = append(rows,
			row{label, fmt.Sprintf("%.4f", st.Cutoff)},
			row{"Selected", fmt.Sprintf("%d (%.1f%%)", st.SelectedCount, st.SelectedPercentage)},
		)
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r.label))
	}
	var sb strings.Builder
	sb.WriteString(f.color("Similarity statistics", f.Theme.Accent, true))
	sb.WriteString("\n")
	for _, r := range rows {
		label := fmt.Sprintf("%-*s", width, r.label)
		sb.WriteString(f.color(label, f.Theme.Muted, false))
		sb.WriteString("  ")
		sb.WriteString(r.value)
		sb.WriteString("\n")
	}
	return f.box(strings.TrimRight(sb.String(), "\n"))
}

// Histogram renders one bar per bin; bins at or above cutoff are highlighted
// and the bin containing the cutoff is marked.
func (f *Formatter) Histogram(scores []float64, bins int, cutoff float64) string {
	hist := selection.Histogram(scores, bins)
	if len(hist) == 0 {
		return f.color("(no scores)", f.Theme.Muted, false)
	}
	peak := 0
	for _, b := range hist {
		peak = max(peak, b.Count)
	}
	width := f.Width
	if width <= 0 {
		width = 40
	}
	var sb strings.Builder
	for i, b := range hist {
		n := 0
		if peak > 0 {
			n = b.Count * width / peak
		}
		if b.Count > 0 && n == 0 {
			n = 1
		}
		bar := strings.Repeat("█", n)
		c := f.Theme.Rejected
		if b.Lo >= cutoff {
			c = f.Theme.Selected
		}
		marker := " "
		last := i == len(hist)-1
		if cutoff >= b.Lo && (cutoff < b.Hi || (last && cutoff <= b.Hi)) {
			marker = "◀"
		}
		fmt.Fprintf(&sb, "%6.3f %s %s %d\n", b.Lo, marker, f.color(fmt.Sprintf("%-*s", width, bar), c, false), b.Count)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// TopPapers lists up to n selected papers, highest score first.
func (f *Formatter) TopPapers(res selection.Result, titles func(index int) string, n int) string {
	items := append([]selection.Scored(nil), res.Selected...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	if len(items) == 0 {
		return f.color("(no papers selected)", f.Theme.Muted, false)
	}
	var sb strings.Builder
	for rank, it := range items {
		title := it.ID
		if titles != nil {
			if t := strings.TrimSpace(titles(it.Index)); t != "" {
				title = t
			}
		}
		fmt.Fprintf(&sb, "%2d. %s %s\n", rank+1, f.color(fmt.Sprintf("%.4f", it.Score), f.Theme.Selected, true), truncate(title, 80))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
