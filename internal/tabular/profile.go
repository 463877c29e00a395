package tabular

import "math"

type ColumnType string

const (
	Number ColumnType = "number"
	Date   ColumnType = "date"
	Text   ColumnType = "text"
)

// Column is the inferred semantic type of one result column.
type Column struct {
	Name string
	Type ColumnType
}

// Profile infers a semantic type per column by scanning all rows. Null and
// empty cells drop out of the denominator. Classification precedence: number
// when numeric values reach 80% of the non-empty sample, else date at 60%,
// else text. A value that parses as both a number and a date counts toward
// numeric only, so a column of year strings is number, never date. Columns
// with no non-empty values are text. Same input always yields the same
// profile; there is no hidden state.
func Profile(columns []string, rows [][]any) []Column {
	out := make([]Column, len(columns))
	for idx, name := range columns {
		var total, numeric, dateLike int
		for _, row := range rows {
			if idx >= len(row) {
				continue
			}
			v := Classify(row[idx])
			if v.Kind == KindNull {
				continue
			}
			total++
			if _, ok := v.Number(); ok {
				numeric++
				continue
			}
			if v.DateLike() {
				dateLike++
			}
		}

		t := Text
		switch {
		case total > 0 && float64(numeric) >= math.Max(1, 0.8*float64(total)):
			t = Number
		case total > 0 && float64(dateLike) >= math.Max(1, 0.6*float64(total)):
			t = Date
		}
		out[idx] = Column{Name: name, Type: t}
	}
	return out
}
