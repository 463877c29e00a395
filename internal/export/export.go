package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"querydeck/internal/session"
	"querydeck/internal/tabular"
)

const maxExportRows = 200

type Exporter struct {
	overrideDir string
	cwd         string
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd}, nil
}

// ExportArtifact writes one artifact as a markdown report and returns the
// path.
func (e *Exporter) ExportArtifact(a session.Artifact, conversationID string) (string, error) {
	path := e.outputPath(fmt.Sprintf("%s-msg%d", conversationID, a.MessageID) + ".md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	md := BuildArtifactMarkdown(a, time.Now().UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// WriteServerExport stores an opaque server-encoded payload (spreadsheet or
// report document) next to the markdown exports.
func (e *Exporter) WriteServerExport(name string, data []byte) (string, error) {
	path := e.outputPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export payload: %w", err)
	}
	return path, nil
}

func BuildArtifactMarkdown(a session.Artifact, now time.Time) string {
	var b strings.Builder
	b.WriteString("# " + headingFor(a) + "\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")

	if strings.TrimSpace(a.SQL) != "" {
		b.WriteString("## SQL\n\n")
		b.WriteString("```sql\n")
		b.WriteString(strings.TrimSpace(a.SQL) + "\n")
		b.WriteString("```\n\n")
	}

	if len(a.Columns) > 0 {
		b.WriteString(fmt.Sprintf("## Result (%d rows)\n\n", len(a.Rows)))
		b.WriteString(buildResultTable(a.Columns, a.Rows))
		b.WriteString("\n")
	}

	if a.Chart != nil && a.Chart.Title != "" {
		b.WriteString("## Chart\n\n")
		b.WriteString(a.Chart.Title + " (" + string(a.Chart.Kind) + ")\n\n")
	}

	if strings.TrimSpace(a.Analysis) != "" {
		b.WriteString("## Analysis\n\n")
		b.WriteString(strings.TrimSpace(a.Analysis) + "\n")
	}

	out := strings.TrimSpace(b.String()) + "\n"
	return out
}

func headingFor(a session.Artifact) string {
	q := strings.TrimSpace(a.Question)
	if q == "" {
		return fmt.Sprintf("Query %d", a.MessageID)
	}
	return strings.Join(strings.Fields(q), " ")
}

func buildResultTable(columns []string, rows [][]any) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")

	limit := len(rows)
	if limit > maxExportRows {
		limit = maxExportRows
	}
	for _, row := range rows[:limit] {
		cells := make([]string, len(columns))
		for i := range columns {
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = escapeCell(tabular.Classify(cell).String())
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if len(rows) > limit {
		b.WriteString(fmt.Sprintf("\n_%d more rows omitted._\n", len(rows)-limit))
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func (e *Exporter) outputPath(name string) string {
	dir := e.overrideDir
	if dir == "" {
		dir = filepath.Join(e.cwd, "exports")
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	return filepath.Join(dir, safeFileName(name))
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "export"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}
