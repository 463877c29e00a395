package chart

import "encoding/json"

// Spec is a renderable chart description. It is a value type: never mutated
// after creation, replaced wholesale on every synthesis. Option carries the
// renderer-consumable form; synthesized specs build it, server-suggested
// specs keep their option verbatim.
type Spec struct {
	Kind       Type
	Title      string
	XName      string
	YName      string
	Categories []string
	Series     []Series

	Option json.RawMessage
}

type Series struct {
	Name   string
	Kind   Type
	Fill   bool // area rendering hint; area is line with a filled area
	Data   []float64
	Points [][2]float64
	Slices []Slice
}

type Slice struct {
	Name  string
	Value float64
}

// buildOption encodes the spec into an echarts-style option.
func (s *Spec) buildOption() json.RawMessage {
	opt := map[string]any{}
	if s.Title != "" {
		opt["title"] = map[string]any{"text": s.Title}
	}

	switch s.Kind {
	case TypePie:
		opt["tooltip"] = map[string]any{"trigger": "item"}
		data := make([]map[string]any, 0)
		if len(s.Series) > 0 {
			for _, sl := range s.Series[0].Slices {
				data = append(data, map[string]any{"name": sl.Name, "value": sl.Value})
			}
		}
		opt["series"] = []map[string]any{{
			"type":   "pie",
			"radius": []string{"35%", "65%"},
			"data":   data,
		}}

	case TypeScatter:
		opt["tooltip"] = map[string]any{"trigger": "item"}
		opt["xAxis"] = map[string]any{"type": "value", "name": s.XName}
		opt["yAxis"] = map[string]any{"type": "value", "name": s.YName}
		series := make([]map[string]any, 0, len(s.Series))
		for _, sr := range s.Series {
			data := make([][2]float64, 0, len(sr.Points))
			data = append(data, sr.Points...)
			series = append(series, map[string]any{"type": "scatter", "name": sr.Name, "data": data})
		}
		opt["series"] = series

	default:
		opt["tooltip"] = map[string]any{"trigger": "axis"}
		opt["legend"] = map[string]any{"type": "scroll"}
		opt["xAxis"] = map[string]any{"type": "category", "data": s.Categories}
		opt["yAxis"] = map[string]any{"type": "value"}
		series := make([]map[string]any, 0, len(s.Series))
		for _, sr := range s.Series {
			entry := map[string]any{
				"type": echartsSeriesType(sr.Kind),
				"name": sr.Name,
				"data": sr.Data,
			}
			if sr.Fill {
				entry["areaStyle"] = map[string]any{}
			}
			series = append(series, entry)
		}
		opt["series"] = series
	}

	raw, err := json.Marshal(opt)
	if err != nil {
		return nil
	}
	return raw
}

func echartsSeriesType(t Type) string {
	switch t {
	case TypeLine, TypeArea:
		return "line"
	case TypeScatter:
		return "scatter"
	case TypePie:
		return "pie"
	default:
		return "bar"
	}
}

// FromOption wraps a server-suggested option, best-effort decoding its axes
// and series so the terminal renderer has something structural to draw. The
// raw option is preserved verbatim regardless of how much decodes.
func FromOption(raw json.RawMessage) *Spec {
	if len(raw) == 0 {
		return nil
	}
	spec := &Spec{Kind: TypeAuto, Option: raw}

	var opt struct {
		Title struct {
			Text string `json:"text"`
		} `json:"title"`
		XAxis struct {
			Type string `json:"type"`
			Name string `json:"name"`
			Data []any  `json:"data"`
		} `json:"xAxis"`
		YAxis struct {
			Name string `json:"name"`
		} `json:"yAxis"`
		Series []struct {
			Type string          `json:"type"`
			Name string          `json:"name"`
			Data json.RawMessage `json:"data"`
		} `json:"series"`
	}
	if err := json.Unmarshal(raw, &opt); err != nil {
		return spec
	}

	spec.Title = opt.Title.Text
	spec.XName = opt.XAxis.Name
	spec.YName = opt.YAxis.Name
	for _, v := range opt.XAxis.Data {
		spec.Categories = append(spec.Categories, stringify(v))
	}

	for _, sr := range opt.Series {
		series := Series{Name: sr.Name}
		switch sr.Type {
		case "pie":
			series.Kind = TypePie
			var slices []struct {
				Name  string  `json:"name"`
				Value float64 `json:"value"`
			}
			if err := json.Unmarshal(sr.Data, &slices); err == nil {
				for _, sl := range slices {
					series.Slices = append(series.Slices, Slice{Name: sl.Name, Value: sl.Value})
				}
			}
		case "scatter":
			series.Kind = TypeScatter
			var points [][2]float64
			if err := json.Unmarshal(sr.Data, &points); err == nil {
				series.Points = points
			}
		case "line":
			series.Kind = TypeLine
			series.Data = decodeNumbers(sr.Data)
		default:
			series.Kind = TypeBar
			series.Data = decodeNumbers(sr.Data)
		}
		spec.Series = append(spec.Series, series)
	}
	return spec
}

func decodeNumbers(raw json.RawMessage) []float64 {
	var vals []any
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		if f, ok := v.(float64); ok {
			out[i] = f
		}
	}
	return out
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
