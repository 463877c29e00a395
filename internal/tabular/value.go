package tabular

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind classifies one raw cell. Result rows arrive as decoded JSON with no
// schema, so cells are typed once here and every later comparison works on
// the tagged value instead of re-inspecting interface{} contents.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
)

type Value struct {
	Kind Kind
	Num  float64
	Text string
}

var datePrefixRe = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}`)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Classify types a raw cell. Empty strings count as null so they drop out of
// profiling denominators along with real NULLs.
func Classify(cell any) Value {
	switch v := cell.(type) {
	case nil:
		return Value{Kind: KindNull}
	case float64:
		return numberValue(v)
	case float32:
		return numberValue(float64(v))
	case int:
		return numberValue(float64(v))
	case int64:
		return numberValue(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return Value{Kind: KindNumber, Num: f, Text: v.String()}
		}
		return Value{Kind: KindText, Text: v.String()}
	case bool:
		return Value{Kind: KindText, Text: strconv.FormatBool(v)}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Value{Kind: KindNull}
		}
		return Value{Kind: KindText, Text: s}
	default:
		return Value{Kind: KindText, Text: strings.TrimSpace(fmt.Sprint(v))}
	}
}

func numberValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{Kind: KindNull}
	}
	return Value{Kind: KindNumber, Num: f, Text: FormatNumber(f)}
}

// Number reports the cell as a finite number. Numeric-looking strings parse;
// anything else fails.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// DateLike reports whether a text cell looks like a calendar date.
func (v Value) DateLike() bool {
	if v.Kind != KindText {
		return false
	}
	if datePrefixRe.MatchString(v.Text) {
		return true
	}
	s := strings.ReplaceAll(v.Text, "Z", "+00:00")
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// String renders the cell for display and string-valued filtering. Null cells
// render empty.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindNumber:
		return FormatNumber(v.Num)
	default:
		return v.Text
	}
}

func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
