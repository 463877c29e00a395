package chart

import (
	"strconv"
	"strings"

	"querydeck/internal/tabular"
)

type Op string

const (
	OpContains Op = "contains"
	OpEq       Op = "="
	OpNe       Op = "!="
	OpGt       Op = ">"
	OpLt       Op = "<"
	OpGe       Op = ">="
	OpLe       Op = "<="
	OpBetween  Op = "between"
)

// Filter restricts rows before synthesis. String ops compare the stringified
// cell case-sensitively; numeric ops fail the row when the cell is not
// numeric. A between value is "min,max" and a malformed or reversed bound
// pair passes every row.
type Filter struct {
	ID    string
	Field string
	Op    Op
	Value string
}

func (f Filter) Match(cell any) bool {
	v := tabular.Classify(cell)
	switch f.Op {
	case OpContains:
		return strings.Contains(v.String(), f.Value)
	case OpEq:
		return v.String() == f.Value
	case OpNe:
		return v.String() != f.Value
	case OpGt, OpLt, OpGe, OpLe:
		n, ok := v.Number()
		if !ok {
			return false
		}
		bound, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
		if err != nil {
			return false
		}
		switch f.Op {
		case OpGt:
			return n > bound
		case OpLt:
			return n < bound
		case OpGe:
			return n >= bound
		default:
			return n <= bound
		}
	case OpBetween:
		parts := strings.SplitN(f.Value, ",", 2)
		if len(parts) != 2 {
			return true
		}
		lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLo != nil || errHi != nil || lo > hi {
			// fail-open
			return true
		}
		n, ok := v.Number()
		if !ok {
			return false
		}
		return n >= lo && n <= hi
	default:
		return true
	}
}

// activeFilters drops filters with an empty value; a freshly added filter
// must not blank the chart before the user has typed anything.
func activeFilters(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func applyFilters(rows [][]any, columns []string, filters []Filter) [][]any {
	if len(filters) == 0 {
		return rows
	}
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}

	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, f := range filters {
			ci, ok := index[f.Field]
			if !ok {
				continue
			}
			var cell any
			if ci < len(row) {
				cell = row[ci]
			}
			if !f.Match(cell) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}
