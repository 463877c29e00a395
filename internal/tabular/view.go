package tabular

import "strings"

const DefaultPageSize = 20

// View is a paginated, searchable window over the last result set. It renders
// identically whether the rows came from a live table event or a stored
// artifact.
type View struct {
	Columns []string

	rows     [][]any
	filtered [][]any
	query    string
	page     int
	pageSize int
}

func NewView(columns []string, rows [][]any, pageSize int) *View {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	v := &View{Columns: columns, rows: rows, pageSize: pageSize}
	v.filtered = rows
	return v
}

// SetQuery filters rows by case-insensitive substring match across all cells
// and resets to the first page.
func (v *View) SetQuery(q string) {
	v.query = strings.TrimSpace(q)
	v.page = 0
	v.refilter()
}

func (v *View) Query() string { return v.query }

func (v *View) refilter() {
	q := strings.ToLower(v.query)
	if q == "" {
		v.filtered = v.rows
		return
	}
	out := make([][]any, 0, len(v.rows))
	for _, row := range v.rows {
		for _, cell := range row {
			if strings.Contains(strings.ToLower(Classify(cell).String()), q) {
				out = append(out, row)
				break
			}
		}
	}
	v.filtered = out
}

func (v *View) PageSize() int { return v.pageSize }

func (v *View) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	v.pageSize = n
	v.SetPage(v.page)
}

func (v *View) PageCount() int {
	if len(v.filtered) == 0 {
		return 1
	}
	return (len(v.filtered) + v.pageSize - 1) / v.pageSize
}

func (v *View) Page() int { return v.page }

// SetPage clamps into the valid page range.
func (v *View) SetPage(p int) {
	if p < 0 {
		p = 0
	}
	if max := v.PageCount() - 1; p > max {
		p = max
	}
	v.page = p
}

func (v *View) NextPage() { v.SetPage(v.page + 1) }
func (v *View) PrevPage() { v.SetPage(v.page - 1) }

// PageRows returns the rows of the current page.
func (v *View) PageRows() [][]any {
	start := v.page * v.pageSize
	if start >= len(v.filtered) {
		return nil
	}
	end := start + v.pageSize
	if end > len(v.filtered) {
		end = len(v.filtered)
	}
	return v.filtered[start:end]
}

// MatchCount is the number of rows passing the current query.
func (v *View) MatchCount() int { return len(v.filtered) }

func (v *View) TotalRows() int { return len(v.rows) }
