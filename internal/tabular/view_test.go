package tabular

import "testing"

func sampleView(pageSize int) *View {
	rows := [][]any{
		{"east", 5.0},
		{"west", 20.0},
		{"east", 10.0},
		{"north", 7.0},
		{"South", 3.0},
	}
	return NewView([]string{"region", "sales"}, rows, pageSize)
}

func TestViewPaging(t *testing.T) {
	v := sampleView(2)
	if v.PageCount() != 3 {
		t.Fatalf("expected 3 pages, got %d", v.PageCount())
	}
	if got := len(v.PageRows()); got != 2 {
		t.Fatalf("expected 2 rows on first page, got %d", got)
	}
	v.NextPage()
	v.NextPage()
	if got := len(v.PageRows()); got != 1 {
		t.Fatalf("expected 1 row on last page, got %d", got)
	}
	v.NextPage()
	if v.Page() != 2 {
		t.Fatalf("page should clamp at last, got %d", v.Page())
	}
	v.SetPage(-5)
	if v.Page() != 0 {
		t.Fatalf("page should clamp at zero, got %d", v.Page())
	}
}

func TestViewSearch(t *testing.T) {
	v := sampleView(10)
	v.SetQuery("EAST")
	if v.MatchCount() != 2 {
		t.Fatalf("case-insensitive search expected 2 matches, got %d", v.MatchCount())
	}
	v.SetQuery("south")
	if v.MatchCount() != 1 {
		t.Fatalf("expected 1 match, got %d", v.MatchCount())
	}
	v.SetQuery("")
	if v.MatchCount() != v.TotalRows() {
		t.Fatalf("empty query should restore all rows")
	}
}

func TestViewSearchMatchesNumericCells(t *testing.T) {
	v := sampleView(10)
	v.SetQuery("20")
	if v.MatchCount() != 1 {
		t.Fatalf("expected numeric cell match, got %d", v.MatchCount())
	}
}

func TestViewSearchResetsPage(t *testing.T) {
	v := sampleView(2)
	v.NextPage()
	v.SetQuery("east")
	if v.Page() != 0 {
		t.Fatalf("search should reset to first page, got %d", v.Page())
	}
}

func TestViewEmptyResult(t *testing.T) {
	v := NewView([]string{"a"}, nil, 5)
	if v.PageCount() != 1 {
		t.Fatalf("empty view should report one page, got %d", v.PageCount())
	}
	if rows := v.PageRows(); rows != nil {
		t.Fatalf("expected no rows, got %#v", rows)
	}
}
