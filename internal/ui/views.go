package ui

import (
	"fmt"
	"strings"

	"querydeck/internal/chart"
	"querydeck/internal/tabular"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	altBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	chartTitleSt = lipgloss.NewStyle().Bold(true)
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// renderTable draws the current page of the result grid as fixed-width text.
func renderTable(view *tabular.View, width int) string {
	if view == nil || len(view.Columns) == 0 {
		return hintStyle.Render("No result table yet.")
	}

	cols := view.Columns
	rows := view.PageRows()

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = displayWidth(c)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(cols))
		for i := range cols {
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			s := tabular.Classify(cell).String()
			s = clampCell(s, 32)
			cells[r][i] = s
			if w := displayWidth(s); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	head := make([]string, len(cols))
	for i, c := range cols {
		head[i] = padRight(c, widths[i])
	}
	b.WriteString(headerStyle.Render(strings.Join(head, "  ")) + "\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", min(width, totalWidth(widths)))) + "\n")

	for _, row := range cells {
		line := make([]string, len(row))
		for i, s := range row {
			line[i] = padRight(s, widths[i])
		}
		b.WriteString(strings.Join(line, "  ") + "\n")
	}

	footer := fmt.Sprintf("page %d/%d  rows %d", view.Page()+1, view.PageCount(), view.MatchCount())
	if view.Query() != "" {
		footer += fmt.Sprintf("  (of %d, search: %s)", view.TotalRows(), view.Query())
	}
	b.WriteString(dimStyle.Render(footer))
	return b.String()
}

// renderChart draws a chart spec with terminal cells. Insufficient
// configuration is an explicit state, not an error.
func renderChart(spec *chart.Spec, cfg *chart.Config, width int) string {
	if spec == nil {
		return hintStyle.Render("No chart: pick an x or y field (keys x/y), or wait for the server suggestion.")
	}

	var b strings.Builder
	if spec.Title != "" {
		b.WriteString(chartTitleSt.Render(spec.Title) + "\n\n")
	}

	switch {
	case len(spec.Series) > 0 && len(spec.Series[0].Slices) > 0:
		b.WriteString(renderPie(spec.Series[0].Slices, width))
	case len(spec.Series) > 0 && len(spec.Series[0].Points) > 0:
		b.WriteString(renderScatter(spec, width))
	case len(spec.Categories) > 0:
		b.WriteString(renderCategorySeries(spec, width))
	default:
		b.WriteString(hintStyle.Render("Server chart received; no drawable data decoded."))
	}

	if cfg != nil {
		b.WriteString("\n\n" + dimStyle.Render(configSummary(cfg)))
	}
	return b.String()
}

func renderPie(slices []chart.Slice, width int) string {
	var total float64
	nameW := 0
	for _, s := range slices {
		total += s.Value
		if w := displayWidth(s.Name); w > nameW {
			nameW = w
		}
	}
	if total == 0 {
		total = 1
	}

	barW := width - nameW - 20
	if barW < 8 {
		barW = 8
	}
	var b strings.Builder
	for i, s := range slices {
		frac := s.Value / total
		filled := int(frac*float64(barW) + 0.5)
		if filled > barW {
			filled = barW
		}
		style := barStyle
		if i%2 == 1 {
			style = altBarStyle
		}
		b.WriteString(padRight(s.Name, nameW))
		b.WriteString("  " + style.Render(strings.Repeat("█", filled)))
		b.WriteString(fmt.Sprintf("  %s (%.1f%%)\n", tabular.FormatNumber(s.Value), frac*100))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderScatter(spec *chart.Spec, width int) string {
	points := spec.Series[0].Points
	const rows = 14
	cols := width - 12
	if cols < 20 {
		cols = 20
	}
	if cols > 72 {
		cols = 72
	}

	minX, maxX := points[0][0], points[0][0]
	minY, maxY := points[0][1], points[0][1]
	for _, p := range points {
		minX, maxX = minFloat(minX, p[0]), maxFloat(maxX, p[0])
		minY, maxY = minFloat(minY, p[1]), maxFloat(maxY, p[1])
	}
	spanX, spanY := maxX-minX, maxY-minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}

	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", cols))
	}
	for _, p := range points {
		c := int((p[0] - minX) / spanX * float64(cols-1))
		r := rows - 1 - int((p[1]-minY)/spanY*float64(rows-1))
		grid[r][c] = '•'
	}

	var b strings.Builder
	for r, line := range grid {
		label := "          "
		if r == 0 {
			label = padLeft(tabular.FormatNumber(maxY), 10)
		} else if r == rows-1 {
			label = padLeft(tabular.FormatNumber(minY), 10)
		}
		b.WriteString(dimStyle.Render(label+" │") + string(line) + "\n")
	}
	b.WriteString(dimStyle.Render(strings.Repeat(" ", 11) + "└" + strings.Repeat("─", cols)))
	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("%s%s → %s  (%d points)",
		strings.Repeat(" ", 12), tabular.FormatNumber(minX), tabular.FormatNumber(maxX), len(points))))
	return b.String()
}

func renderCategorySeries(spec *chart.Spec, width int) string {
	lineish := spec.Kind == chart.TypeLine || spec.Kind == chart.TypeArea
	if lineish {
		return renderSparklines(spec, width)
	}
	return renderBars(spec, width)
}

func renderBars(spec *chart.Spec, width int) string {
	nameW := 0
	for _, c := range spec.Categories {
		if w := displayWidth(c); w > nameW {
			nameW = w
		}
	}

	var maxVal float64
	for _, sr := range spec.Series {
		for _, v := range sr.Data {
			if v > maxVal {
				maxVal = v
			}
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}
	barW := width - nameW - 18
	if barW < 8 {
		barW = 8
	}

	var b strings.Builder
	for ci, cat := range spec.Categories {
		for si, sr := range spec.Series {
			v := 0.0
			if ci < len(sr.Data) {
				v = sr.Data[ci]
			}
			filled := int(v/maxVal*float64(barW) + 0.5)
			if filled < 0 {
				filled = 0
			}
			style := barStyle
			if si%2 == 1 {
				style = altBarStyle
			}
			label := cat
			if si > 0 {
				label = ""
			}
			b.WriteString(padRight(label, nameW))
			b.WriteString("  " + style.Render(strings.Repeat("█", filled)))
			b.WriteString("  " + tabular.FormatNumber(v))
			if len(spec.Series) > 1 {
				b.WriteString(dimStyle.Render("  " + sr.Name))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSparklines(spec *chart.Spec, width int) string {
	var b strings.Builder
	for si, sr := range spec.Series {
		var maxVal float64
		for _, v := range sr.Data {
			if v > maxVal {
				maxVal = v
			}
		}
		if maxVal == 0 {
			maxVal = 1
		}
		runes := make([]rune, len(sr.Data))
		for i, v := range sr.Data {
			idx := int(v / maxVal * float64(len(sparkRunes)-1))
			if idx < 0 {
				idx = 0
			}
			runes[i] = sparkRunes[idx]
		}
		style := barStyle
		if si%2 == 1 {
			style = altBarStyle
		}
		b.WriteString(style.Render(string(runes)))
		b.WriteString("  " + sr.Name)
		if spec.Kind == chart.TypeArea {
			b.WriteString(dimStyle.Render("  (filled)"))
		}
		b.WriteString("\n")
	}

	if len(spec.Categories) > 0 {
		first, last := spec.Categories[0], spec.Categories[len(spec.Categories)-1]
		b.WriteString(dimStyle.Render(first + " → " + last))
	}
	return b.String()
}

func configSummary(cfg *chart.Config) string {
	parts := []string{
		"type=" + string(cfg.Type),
		"x=" + orDash(cfg.XField),
		"y=" + orDash(cfg.YField),
	}
	if cfg.SeriesField != "" {
		parts = append(parts, "series="+cfg.SeriesField)
	}
	parts = append(parts, "agg="+string(cfg.Agg))
	for _, f := range cfg.Filters {
		parts = append(parts, fmt.Sprintf("[%s %s %s]", f.Field, f.Op, f.Value))
	}
	return strings.Join(parts, "  ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func clampCell(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// displayWidth measures terminal cells, not bytes; CJK column names and
// values are common in result sets.
func displayWidth(s string) int {
	return ansi.StringWidth(s)
}

func padRight(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

func padLeft(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return strings.Repeat(" ", d) + s
	}
	return s
}

func totalWidth(widths []int) int {
	sum := 0
	for _, w := range widths {
		sum += w + 2
	}
	if sum < 10 {
		return 10
	}
	return sum
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
