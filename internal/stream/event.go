package stream

import "encoding/json"

// Event is one decoded lifecycle event for the question currently streaming.
// A single malformed frame degrades to Raw instead of failing the stream;
// decoding resumes cleanly at the next delimiter.
type Event interface {
	isEvent()
}

// Bind ties all subsequent events to a server-assigned user message id.
type Bind struct {
	UserMessageID int64
}

type Status struct {
	Stage string
}

type SQL struct {
	SQL string
}

type Table struct {
	Columns []string
	Rows    [][]any
}

// Chart carries the server-suggested renderer option. A nil Option means the
// server could not infer a chart for this result.
type Chart struct {
	Option json.RawMessage
}

// Analysis is narrative text in one of two delivery modes: incremental
// (Delta, appended to the open narrative) or final (Text with Final set,
// replacing the accumulated buffer and committing the artifact).
type Analysis struct {
	Delta string
	Text  string
	Final bool
}

type Failure struct {
	Message string
}

type Done struct {
	OK bool
}

// Raw is an unknown event name or a payload that failed to parse as JSON.
type Raw struct {
	Name string
	Text string
}

func (Bind) isEvent()     {}
func (Status) isEvent()   {}
func (SQL) isEvent()      {}
func (Table) isEvent()    {}
func (Chart) isEvent()    {}
func (Analysis) isEvent() {}
func (Failure) isEvent()  {}
func (Done) isEvent()     {}
func (Raw) isEvent()      {}

// ParseEvent maps a frame onto its typed event.
func ParseEvent(f Frame) Event {
	data := []byte(f.Data)
	switch f.Name {
	case "message":
		var p struct {
			UserMessageID int64 `json:"user_message_id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Raw{Name: f.Name, Text: f.Data}
		}
		return Bind{UserMessageID: p.UserMessageID}

	case "status":
		var p struct {
			Stage string `json:"stage"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Raw{Name: f.Name, Text: f.Data}
		}
		return Status{Stage: p.Stage}

	case "sql":
		var p struct {
			SQL string `json:"sql"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Raw{Name: f.Name, Text: f.Data}
		}
		return SQL{SQL: p.SQL}

	case "table":
		var p struct {
			Columns []string `json:"columns"`
			Rows    [][]any  `json:"rows"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Raw{Name: f.Name, Text: f.Data}
		}
		return Table{Columns: p.Columns, Rows: p.Rows}

	case "chart":
		var p struct {
			Option json.RawMessage `json:"echarts_option"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Raw{Name: f.Name, Text: f.Data}
		}
		if len(p.Option) == 0 || string(p.Option) == "null" {
			return Chart{}
		}
		return Chart{Option: p.Option}

	case "analysis":
		var p struct {
			Delta *string `json:"delta"`
			Text  *string `json:"text"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Raw{Name: f.Name, Text: f.Data}
		}
		if p.Text != nil {
			return Analysis{Text: *p.Text, Final: true}
		}
		if p.Delta != nil {
			return Analysis{Delta: *p.Delta}
		}
		return Analysis{}

	case "error":
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Raw{Name: f.Name, Text: f.Data}
		}
		return Failure{Message: p.Message}

	case "done":
		var p struct {
			OK *bool `json:"ok"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Raw{Name: f.Name, Text: f.Data}
		}
		ok := true
		if p.OK != nil {
			ok = *p.OK
		}
		return Done{OK: ok}

	default:
		return Raw{Name: f.Name, Text: f.Data}
	}
}
