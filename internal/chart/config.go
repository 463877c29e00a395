package chart

import (
	"github.com/google/uuid"

	"querydeck/internal/tabular"
)

type Type string

const (
	TypeAuto    Type = "auto"
	TypeBar     Type = "bar"
	TypeLine    Type = "line"
	TypeArea    Type = "area"
	TypePie     Type = "pie"
	TypeScatter Type = "scatter"
)

type Agg string

const (
	AggSum   Agg = "sum"
	AggAvg   Agg = "avg"
	AggMax   Agg = "max"
	AggMin   Agg = "min"
	AggCount Agg = "count"
)

type Role string

const (
	RoleAuto      Role = "auto"
	RoleDimension Role = "dimension"
	RoleMetric    Role = "metric"
)

// FieldSlot names an axis assignment in the config.
type FieldSlot string

const (
	SlotX      FieldSlot = "x"
	SlotY      FieldSlot = "y"
	SlotSeries FieldSlot = "series"
)

// Config is the user-editable visualization configuration. Type "auto" is a
// special state meaning "trust the server's suggested chart"; any manual
// field, aggregation, or type edit other than selecting auto revokes that
// trust by forcing a concrete default type.
//
// A config lives as long as one result table: it persists across re-renders
// and filter edits of the same table, and resets when a new question's table
// arrives or on explicit Reset.
type Config struct {
	Type        Type
	XField      string
	YField      string
	SeriesField string
	Agg         Agg
	Roles       map[string]Role
	Filters     []Filter
}

func NewConfig() *Config {
	return &Config{Type: TypeAuto, Agg: AggSum, Roles: make(map[string]Role)}
}

// Reconcile aligns the config with the current column set. Axis fields and
// filters referencing dropped columns are pruned silently, default roles are
// assigned per column on first sight (metric for number columns, dimension
// otherwise) and stay sticky afterward, and empty axis fields get defaults:
// XField the first non-numeric column (or the first column), YField the first
// numeric column. Reconciling twice against the same columns is a no-op.
func (c *Config) Reconcile(profiles []tabular.Column) {
	present := make(map[string]tabular.ColumnType, len(profiles))
	for _, p := range profiles {
		present[p.Name] = p.Type
	}

	if _, ok := present[c.XField]; !ok {
		c.XField = ""
	}
	if _, ok := present[c.YField]; !ok {
		c.YField = ""
	}
	if _, ok := present[c.SeriesField]; !ok {
		c.SeriesField = ""
	}

	kept := make([]Filter, 0, len(c.Filters))
	for _, f := range c.Filters {
		if _, ok := present[f.Field]; ok {
			kept = append(kept, f)
		}
	}
	c.Filters = kept

	for _, p := range profiles {
		if _, ok := c.Roles[p.Name]; ok {
			continue
		}
		if p.Type == tabular.Number {
			c.Roles[p.Name] = RoleMetric
		} else {
			c.Roles[p.Name] = RoleDimension
		}
	}

	if c.XField == "" {
		for _, p := range profiles {
			if p.Type != tabular.Number {
				c.XField = p.Name
				break
			}
		}
		if c.XField == "" && len(profiles) > 0 {
			c.XField = profiles[0].Name
		}
	}
	if c.YField == "" {
		for _, p := range profiles {
			if p.Type == tabular.Number {
				c.YField = p.Name
				break
			}
		}
	}
}

// SetField assigns a column to an axis slot. An empty column clears the slot.
func (c *Config) SetField(slot FieldSlot, column string) {
	switch slot {
	case SlotX:
		c.XField = column
	case SlotY:
		c.YField = column
	case SlotSeries:
		c.SeriesField = column
	}
	c.revokeAuto()
}

func (c *Config) SetAggregation(fn Agg) {
	c.Agg = fn
	c.revokeAuto()
}

// SetType selects a chart type. Selecting TypeAuto restores trust in the
// server-suggested chart.
func (c *Config) SetType(t Type) {
	c.Type = t
}

func (c *Config) SetRole(column string, role Role) {
	c.Roles[column] = role
}

func (c *Config) revokeAuto() {
	if c.Type == TypeAuto {
		c.Type = TypeBar
	}
}

// AddFilter appends a filter on the first available column with a default op
// appropriate to its profiled type. Returns nil when there are no columns.
// Adding a filter does not revoke auto: a filtered auto chart re-synthesizes
// locally instead.
func (c *Config) AddFilter(profiles []tabular.Column) *Filter {
	if len(profiles) == 0 {
		return nil
	}
	first := profiles[0]
	op := OpContains
	if first.Type == tabular.Number {
		op = OpEq
	}
	c.Filters = append(c.Filters, Filter{ID: uuid.NewString(), Field: first.Name, Op: op})
	return &c.Filters[len(c.Filters)-1]
}

// FilterPatch mutates a filter in place; nil fields are left untouched.
type FilterPatch struct {
	Field *string
	Op    *Op
	Value *string
}

func (c *Config) UpdateFilter(id string, patch FilterPatch) bool {
	for i := range c.Filters {
		if c.Filters[i].ID != id {
			continue
		}
		if patch.Field != nil {
			c.Filters[i].Field = *patch.Field
		}
		if patch.Op != nil {
			c.Filters[i].Op = *patch.Op
		}
		if patch.Value != nil {
			c.Filters[i].Value = *patch.Value
		}
		return true
	}
	return false
}

func (c *Config) RemoveFilter(id string) bool {
	for i := range c.Filters {
		if c.Filters[i].ID == id {
			c.Filters = append(c.Filters[:i], c.Filters[i+1:]...)
			return true
		}
	}
	return false
}

// Reset restores the default auto configuration.
func (c *Config) Reset() {
	*c = *NewConfig()
}

// OpsFor lists the filter operators valid for a column of the given type.
func OpsFor(t tabular.ColumnType) []Op {
	if t == tabular.Number {
		return []Op{OpEq, OpGt, OpLt, OpGe, OpLe, OpBetween}
	}
	return []Op{OpContains, OpEq, OpNe}
}
