package chart

import (
	"encoding/json"
	"fmt"

	"querydeck/internal/tabular"
)

// Synthesize derives a chart spec from the current table and configuration.
// With the config on auto, an available server-suggested option, and no
// active filters, the server spec is returned unmodified. Otherwise rows are
// filtered and synthesis branches on the selected type; auto with active
// filters falls through to the category/series path, since the server option
// cannot be re-filtered client-side.
//
// A nil result means the configuration is insufficient for the selected type,
// not that synthesis failed. Callers surface it as an explicit "no chart"
// state.
func Synthesize(columns []string, rows [][]any, profiles []tabular.Column, cfg *Config, serverOption json.RawMessage) *Spec {
	if cfg == nil {
		cfg = NewConfig()
	}
	active := activeFilters(cfg.Filters)
	if cfg.Type == TypeAuto && len(serverOption) > 0 && len(active) == 0 {
		return FromOption(serverOption)
	}
	if cfg.XField == "" && cfg.YField == "" {
		return nil
	}

	filtered := applyFilters(rows, columns, active)

	switch cfg.Type {
	case TypePie:
		return synthesizePie(columns, filtered, cfg)
	case TypeScatter:
		return synthesizeScatter(columns, filtered, profiles, cfg)
	default:
		return synthesizeCategory(columns, filtered, cfg)
	}
}

func columnIndex(columns []string, name string) (int, bool) {
	for i, c := range columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

func cellAt(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func synthesizePie(columns []string, rows [][]any, cfg *Config) *Spec {
	xi, ok := columnIndex(columns, cfg.XField)
	if !ok {
		return nil
	}
	yi := -1
	if cfg.YField != "" {
		yi, _ = columnIndex(columns, cfg.YField)
	}

	order := make([]string, 0, 16)
	buckets := make(map[string][]float64)
	for _, row := range rows {
		name := tabular.Classify(cellAt(row, xi)).String()
		if _, seen := buckets[name]; !seen {
			order = append(order, name)
			buckets[name] = nil
		}
		if yi >= 0 {
			if n, ok := tabular.Classify(cellAt(row, yi)).Number(); ok {
				buckets[name] = append(buckets[name], n)
			}
		} else {
			// no metric: slice value is bucket membership
			buckets[name] = append(buckets[name], 1)
		}
	}

	agg := cfg.Agg
	if yi < 0 {
		agg = AggCount
	}
	series := Series{Name: cfg.XField, Kind: TypePie}
	for _, name := range order {
		series.Slices = append(series.Slices, Slice{Name: name, Value: aggregate(buckets[name], agg)})
	}

	spec := &Spec{
		Kind:   TypePie,
		Title:  pieTitle(cfg),
		Series: []Series{series},
	}
	spec.Option = spec.buildOption()
	return spec
}

func pieTitle(cfg *Config) string {
	if cfg.YField == "" {
		return fmt.Sprintf("count by %s", cfg.XField)
	}
	return fmt.Sprintf("%s by %s", cfg.YField, cfg.XField)
}

func synthesizeScatter(columns []string, rows [][]any, profiles []tabular.Column, cfg *Config) *Spec {
	if cfg.XField == "" || cfg.YField == "" {
		return nil
	}
	if !profiledNumber(profiles, cfg.XField) || !profiledNumber(profiles, cfg.YField) {
		return nil
	}
	xi, okX := columnIndex(columns, cfg.XField)
	yi, okY := columnIndex(columns, cfg.YField)
	if !okX || !okY {
		return nil
	}

	series := Series{Name: cfg.YField, Kind: TypeScatter}
	for _, row := range rows {
		x, okX := tabular.Classify(cellAt(row, xi)).Number()
		y, okY := tabular.Classify(cellAt(row, yi)).Number()
		if !okX || !okY {
			continue
		}
		series.Points = append(series.Points, [2]float64{x, y})
	}

	spec := &Spec{
		Kind:   TypeScatter,
		Title:  fmt.Sprintf("%s vs %s", cfg.YField, cfg.XField),
		XName:  cfg.XField,
		YName:  cfg.YField,
		Series: []Series{series},
	}
	spec.Option = spec.buildOption()
	return spec
}

func profiledNumber(profiles []tabular.Column, name string) bool {
	for _, p := range profiles {
		if p.Name == name {
			return p.Type == tabular.Number
		}
	}
	return false
}

// synthesizeCategory covers bar, line, and area, and is the fallthrough for a
// filtered auto chart. The category axis is built from XField values in
// first-seen order, de-duplicated; rows group by SeriesField with a default
// series name when absent; each series x category cell aggregates YField
// values, or counts rows when no YField is set.
func synthesizeCategory(columns []string, rows [][]any, cfg *Config) *Spec {
	xi, ok := columnIndex(columns, cfg.XField)
	if !ok {
		return nil
	}
	yi := -1
	if cfg.YField != "" {
		yi, _ = columnIndex(columns, cfg.YField)
	}
	si := -1
	if cfg.SeriesField != "" {
		si, _ = columnIndex(columns, cfg.SeriesField)
	}

	defaultSeries := cfg.YField
	if defaultSeries == "" {
		defaultSeries = "count"
	}

	categories := make([]string, 0, 16)
	catSeen := make(map[string]struct{})
	seriesOrder := make([]string, 0, 4)
	cells := make(map[string]map[string][]float64)

	for _, row := range rows {
		cat := tabular.Classify(cellAt(row, xi)).String()
		if _, seen := catSeen[cat]; !seen {
			catSeen[cat] = struct{}{}
			categories = append(categories, cat)
		}

		name := defaultSeries
		if si >= 0 {
			name = tabular.Classify(cellAt(row, si)).String()
		}
		if _, seen := cells[name]; !seen {
			seriesOrder = append(seriesOrder, name)
			cells[name] = make(map[string][]float64)
		}

		if yi >= 0 {
			if n, ok := tabular.Classify(cellAt(row, yi)).Number(); ok {
				cells[name][cat] = append(cells[name][cat], n)
			}
		} else {
			cells[name][cat] = append(cells[name][cat], 1)
		}
	}

	kind := cfg.Type
	if kind == TypeAuto {
		kind = TypeBar
	}
	agg := cfg.Agg
	if yi < 0 {
		agg = AggCount
	}

	series := make([]Series, 0, len(seriesOrder))
	for _, name := range seriesOrder {
		sr := Series{Name: name, Kind: kind, Fill: kind == TypeArea}
		for _, cat := range categories {
			sr.Data = append(sr.Data, aggregate(cells[name][cat], agg))
		}
		series = append(series, sr)
	}

	spec := &Spec{
		Kind:       kind,
		Title:      categoryTitle(cfg),
		XName:      cfg.XField,
		YName:      cfg.YField,
		Categories: categories,
		Series:     series,
	}
	spec.Option = spec.buildOption()
	return spec
}

func categoryTitle(cfg *Config) string {
	y := cfg.YField
	if y == "" {
		y = "count"
	}
	if cfg.SeriesField != "" {
		return fmt.Sprintf("%s by %s & %s", y, cfg.XField, cfg.SeriesField)
	}
	return fmt.Sprintf("%s by %s", y, cfg.XField)
}

// aggregate folds one series x category cell. Count ignores values and counts
// rows; the numeric functions operate over numeric-parseable values only. An
// empty bucket yields 0 for every function, guarding max/min which are
// undefined on empty input.
func aggregate(values []float64, fn Agg) float64 {
	if fn == AggCount {
		return float64(len(values))
	}
	if len(values) == 0 {
		return 0
	}
	switch fn {
	case AggAvg:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	default:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	}
}
