package chart

import (
	"encoding/json"
	"testing"

	"querydeck/internal/tabular"
)

var (
	salesColumns = []string{"region", "sales"}
	salesRows    = [][]any{
		{"east", 5.0},
		{"west", 20.0},
		{"east", 10.0},
	}
)

func salesConfig(t Type, agg Agg) *Config {
	cfg := NewConfig()
	cfg.Type = t
	cfg.Agg = agg
	cfg.XField = "region"
	cfg.YField = "sales"
	return cfg
}

func profilesFor(columns []string, rows [][]any) []tabular.Column {
	return tabular.Profile(columns, rows)
}

func TestSynthesizeBarSum(t *testing.T) {
	cfg := salesConfig(TypeBar, AggSum)
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	if spec == nil {
		t.Fatal("expected a spec")
	}
	if spec.Kind != TypeBar {
		t.Fatalf("unexpected kind %s", spec.Kind)
	}
	if len(spec.Categories) != 2 || spec.Categories[0] != "east" || spec.Categories[1] != "west" {
		t.Fatalf("categories must keep first-seen order: %#v", spec.Categories)
	}
	if len(spec.Series) != 1 {
		t.Fatalf("expected one series, got %#v", spec.Series)
	}
	data := spec.Series[0].Data
	if len(data) != 2 || data[0] != 15 || data[1] != 20 {
		t.Fatalf("unexpected sums: %#v", data)
	}
}

func TestSynthesizeWithFilter(t *testing.T) {
	cfg := salesConfig(TypeBar, AggSum)
	cfg.Filters = []Filter{{ID: "f", Field: "sales", Op: OpGt, Value: "6"}}
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	if len(spec.Categories) != 2 {
		t.Fatalf("unexpected categories: %#v", spec.Categories)
	}
	if got := valueFor(t, spec, "east"); got != 10 {
		t.Fatalf("row (east,5) should be excluded, east = %v", got)
	}
	if got := valueFor(t, spec, "west"); got != 20 {
		t.Fatalf("unexpected west value %v", got)
	}
}

func valueFor(t *testing.T, spec *Spec, category string) float64 {
	t.Helper()
	for i, c := range spec.Categories {
		if c == category {
			return spec.Series[0].Data[i]
		}
	}
	t.Fatalf("category %q missing from %#v", category, spec.Categories)
	return 0
}

func TestSynthesizeAggregations(t *testing.T) {
	cases := []struct {
		agg  Agg
		east float64
		west float64
	}{
		{AggSum, 15, 20},
		{AggAvg, 7.5, 20},
		{AggMax, 10, 20},
		{AggMin, 5, 20},
		{AggCount, 2, 1},
	}
	for _, tc := range cases {
		cfg := salesConfig(TypeBar, tc.agg)
		spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
		data := spec.Series[0].Data
		if data[0] != tc.east || data[1] != tc.west {
			t.Fatalf("%s: want [%v %v], got %#v", tc.agg, tc.east, tc.west, data)
		}
	}
}

func TestSynthesizeCountWithoutYField(t *testing.T) {
	cfg := NewConfig()
	cfg.Type = TypeBar
	cfg.XField = "region"
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	if spec == nil {
		t.Fatal("x-only config should still chart")
	}
	data := spec.Series[0].Data
	if data[0] != 2 || data[1] != 1 {
		t.Fatalf("absent y forces row counts: %#v", data)
	}
	if spec.Series[0].Name != "count" {
		t.Fatalf("unexpected series name %q", spec.Series[0].Name)
	}
}

func TestSynthesizeSeriesSplit(t *testing.T) {
	columns := []string{"region", "quarter", "sales"}
	rows := [][]any{
		{"east", "Q1", 5.0},
		{"east", "Q2", 10.0},
		{"west", "Q1", 20.0},
	}
	cfg := NewConfig()
	cfg.Type = TypeLine
	cfg.XField = "quarter"
	cfg.YField = "sales"
	cfg.SeriesField = "region"

	spec := Synthesize(columns, rows, profilesFor(columns, rows), cfg, nil)
	if len(spec.Series) != 2 {
		t.Fatalf("expected a series per region: %#v", spec.Series)
	}
	east, west := spec.Series[0], spec.Series[1]
	if east.Name != "east" || west.Name != "west" {
		t.Fatalf("series must keep first-seen order: %q %q", east.Name, west.Name)
	}
	// west has no Q2 rows; the empty cell aggregates to 0
	if west.Data[0] != 20 || west.Data[1] != 0 {
		t.Fatalf("missing cell should be 0: %#v", west.Data)
	}
	if east.Data[0] != 5 || east.Data[1] != 10 {
		t.Fatalf("unexpected east data: %#v", east.Data)
	}
}

func TestSynthesizePie(t *testing.T) {
	cfg := salesConfig(TypePie, AggSum)
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	if spec.Kind != TypePie {
		t.Fatalf("unexpected kind %s", spec.Kind)
	}
	slices := spec.Series[0].Slices
	if len(slices) != 2 || slices[0].Name != "east" || slices[0].Value != 15 || slices[1].Value != 20 {
		t.Fatalf("unexpected slices: %#v", slices)
	}
}

func TestSynthesizePieRowCounts(t *testing.T) {
	cfg := NewConfig()
	cfg.Type = TypePie
	cfg.XField = "region"
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	slices := spec.Series[0].Slices
	if slices[0].Value != 2 || slices[1].Value != 1 {
		t.Fatalf("pie without y should count rows: %#v", slices)
	}
}

func TestSynthesizeScatter(t *testing.T) {
	columns := []string{"price", "qty"}
	rows := [][]any{
		{1.0, 10.0},
		{2.0, "oops"},
		{3.0, 30.0},
	}
	cfg := NewConfig()
	cfg.Type = TypeScatter
	cfg.XField = "price"
	cfg.YField = "qty"

	spec := Synthesize(columns, rows, profilesFor(columns, rows), cfg, nil)
	if spec == nil {
		t.Fatal("expected scatter spec")
	}
	points := spec.Series[0].Points
	if len(points) != 2 {
		t.Fatalf("non-numeric rows drop from scatter: %#v", points)
	}
	if points[0] != [2]float64{1, 10} || points[1] != [2]float64{3, 30} {
		t.Fatalf("unexpected points: %#v", points)
	}
}

func TestSynthesizeScatterRequiresNumericProfiles(t *testing.T) {
	cfg := NewConfig()
	cfg.Type = TypeScatter
	cfg.XField = "region"
	cfg.YField = "sales"
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	if spec != nil {
		t.Fatalf("text x axis cannot scatter: %#v", spec)
	}
}

func TestSynthesizeNilWhenUnconfigured(t *testing.T) {
	cfg := NewConfig()
	cfg.Type = TypeBar
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	if spec != nil {
		t.Fatalf("no axes configured should mean no chart: %#v", spec)
	}
}

func TestSynthesizeAutoUsesServerOption(t *testing.T) {
	option := json.RawMessage(`{"title":{"text":"Sales"},"xAxis":{"type":"category","data":["east","west"]},"series":[{"type":"bar","name":"sales","data":[15,20]}]}`)
	cfg := NewConfig()
	cfg.Reconcile(profilesFor(salesColumns, salesRows))

	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, option)
	if spec == nil || spec.Kind != TypeAuto {
		t.Fatalf("auto should pass through the server spec: %#v", spec)
	}
	if string(spec.Option) != string(option) {
		t.Fatal("server option must be preserved verbatim")
	}
	if spec.Title != "Sales" || len(spec.Categories) != 2 {
		t.Fatalf("server option decode incomplete: %#v", spec)
	}
}

func TestSynthesizeFilteredAutoFallsBackToLocal(t *testing.T) {
	option := json.RawMessage(`{"series":[{"type":"bar","data":[15,20]}]}`)
	cfg := NewConfig()
	cfg.Reconcile(profilesFor(salesColumns, salesRows))
	f := cfg.AddFilter(profilesFor(salesColumns, salesRows))
	field, op, value := "sales", OpGt, "6"
	cfg.UpdateFilter(f.ID, FilterPatch{Field: &field, Op: &op, Value: &value})

	if cfg.Type != TypeAuto {
		t.Fatalf("filter must not revoke auto, got %s", cfg.Type)
	}
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, option)
	if spec == nil || spec.Kind != TypeBar {
		t.Fatalf("filtered auto should synthesize locally: %#v", spec)
	}
	if got := valueFor(t, spec, "east"); got != 10 {
		t.Fatalf("filter not applied in fallback, east = %v", got)
	}
}

func TestSynthesizeEmptyValueFilterKeepsServerOption(t *testing.T) {
	option := json.RawMessage(`{"series":[{"type":"bar","data":[15,20]}]}`)
	cfg := NewConfig()
	cfg.Reconcile(profilesFor(salesColumns, salesRows))
	cfg.AddFilter(profilesFor(salesColumns, salesRows))

	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, option)
	if spec == nil || spec.Kind != TypeAuto {
		t.Fatalf("a filter with no value is inactive: %#v", spec)
	}
}

func TestSynthesizeAreaSetsFill(t *testing.T) {
	cfg := salesConfig(TypeArea, AggSum)
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	if !spec.Series[0].Fill {
		t.Fatal("area series should carry the fill hint")
	}
}

func TestBuildOptionShapes(t *testing.T) {
	cfg := salesConfig(TypePie, AggSum)
	spec := Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)

	var opt map[string]any
	if err := json.Unmarshal(spec.Option, &opt); err != nil {
		t.Fatalf("pie option should be valid JSON: %v", err)
	}
	series, ok := opt["series"].([]any)
	if !ok || len(series) != 1 {
		t.Fatalf("unexpected option series: %#v", opt["series"])
	}

	cfg = salesConfig(TypeBar, AggSum)
	spec = Synthesize(salesColumns, salesRows, profilesFor(salesColumns, salesRows), cfg, nil)
	if err := json.Unmarshal(spec.Option, &opt); err != nil {
		t.Fatalf("bar option should be valid JSON: %v", err)
	}
	xAxis, ok := opt["xAxis"].(map[string]any)
	if !ok || xAxis["type"] != "category" {
		t.Fatalf("bar option should use a category axis: %#v", opt["xAxis"])
	}
}
