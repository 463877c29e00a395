package tabular

import "testing"

func rowsFromColumn(cells ...any) [][]any {
	rows := make([][]any, len(cells))
	for i, c := range cells {
		rows[i] = []any{c}
	}
	return rows
}

func profileOne(t *testing.T, cells ...any) ColumnType {
	t.Helper()
	cols := Profile([]string{"c"}, rowsFromColumn(cells...))
	if len(cols) != 1 {
		t.Fatalf("expected one column, got %#v", cols)
	}
	return cols[0].Type
}

func TestProfileNumberColumn(t *testing.T) {
	if got := profileOne(t, 1.0, 2.0, 3.0, "4"); got != Number {
		t.Fatalf("expected number, got %s", got)
	}
}

func TestProfileNumberThreshold(t *testing.T) {
	// 4 of 5 non-empty = exactly 80%
	if got := profileOne(t, 1.0, 2.0, 3.0, "4", "abc"); got != Number {
		t.Fatalf("expected number at threshold, got %s", got)
	}
	// 3 of 5 falls below
	if got := profileOne(t, 1.0, 2.0, 3.0, "abc", "def"); got != Text {
		t.Fatalf("expected text below threshold, got %s", got)
	}
}

func TestProfileDateColumn(t *testing.T) {
	if got := profileOne(t, "2024-01-01", "2024-02-01", "not a date"); got != Date {
		t.Fatalf("expected date, got %s", got)
	}
}

func TestProfileYearStringsAreNumbers(t *testing.T) {
	// values parse as both numbers and dates; numeric wins
	if got := profileOne(t, "2023", "2024", "2025"); got != Number {
		t.Fatalf("expected number for year strings, got %s", got)
	}
}

func TestProfileNullsDropFromDenominator(t *testing.T) {
	if got := profileOne(t, nil, "", 5.0); got != Number {
		t.Fatalf("expected number with nulls ignored, got %s", got)
	}
}

func TestProfileEmptyColumnIsText(t *testing.T) {
	if got := profileOne(t, nil, "", nil); got != Text {
		t.Fatalf("expected text for all-empty column, got %s", got)
	}
	cols := Profile([]string{"c"}, nil)
	if cols[0].Type != Text {
		t.Fatalf("expected text for zero-row column, got %s", cols[0].Type)
	}
}

func TestProfileDeterministic(t *testing.T) {
	rows := [][]any{{"east", 5.0, "2024-01-01"}, {"west", 20.0, "2024-01-02"}}
	cols := []string{"region", "sales", "day"}
	first := Profile(cols, rows)
	second := Profile(cols, rows)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("profile not deterministic: %#v vs %#v", first[i], second[i])
		}
	}
	if first[0].Type != Text || first[1].Type != Number || first[2].Type != Date {
		t.Fatalf("unexpected profile: %#v", first)
	}
}

func TestProfileRaggedRows(t *testing.T) {
	rows := [][]any{{"east", 5.0}, {"west"}}
	cols := Profile([]string{"region", "sales"}, rows)
	if cols[1].Type != Number {
		t.Fatalf("short rows should not break profiling: %#v", cols)
	}
}

func TestClassifyNumbers(t *testing.T) {
	if v := Classify("  12.5 "); v.Kind != KindText {
		t.Fatalf("string stays text-kind until asked as number: %#v", v)
	}
	if n, ok := Classify("12.5").Number(); !ok || n != 12.5 {
		t.Fatalf("numeric string did not parse: %v %v", n, ok)
	}
	if _, ok := Classify("12,5").Number(); ok {
		t.Fatal("comma string should not parse as number")
	}
}

func TestDateLike(t *testing.T) {
	for _, s := range []string{"2024-01-02", "2024/01/02", "2024-01-02 10:30:00", "2024-01-02T10:30:00Z"} {
		if !Classify(s).DateLike() {
			t.Fatalf("expected date-like: %q", s)
		}
	}
	for _, s := range []string{"january", "20240102", "02-01-2024"} {
		if Classify(s).DateLike() {
			t.Fatalf("expected not date-like: %q", s)
		}
	}
}
