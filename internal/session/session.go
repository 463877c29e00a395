package session

import (
	"encoding/json"
	"strings"

	"querydeck/internal/chart"
	"querydeck/internal/stream"
	"querydeck/internal/tabular"
)

// Artifact is the saved snapshot for one user question: the SQL that answered
// it, the result grid, the chart, and the narrative analysis. At most one
// artifact exists per message id; writes are last-write-wins and happen only
// while that message's stream is in flight or when SQL is re-run against it.
type Artifact struct {
	MessageID int64
	Question  string
	SQL       string
	Columns   []string
	Rows      [][]any
	Chart     *chart.Spec
	Analysis  string
}

// HistoryMessage is one message from persisted conversation history.
type HistoryMessage struct {
	ID       int64
	Role     string
	Content  string
	Artifact *Artifact
}

// Session holds all in-memory state for one conversation: the active message,
// the live SQL/table/narrative being streamed, the chart configuration, and
// the message-to-artifact map. It is mutated only from the event-processing
// path and explicit user edits on the same goroutine; introducing concurrent
// streams requires adding synchronization around the artifact map.
type Session struct {
	ConversationID string

	ActiveID int64
	Stage    string
	ErrText  string
	Done     bool

	SQL        string
	Columns    []string
	Rows       [][]any
	Profiles   []tabular.Column
	Config     *chart.Config
	AutoOption json.RawMessage

	narrative     string
	narrativeOpen bool

	staged    string
	questions map[int64]string
	artifacts map[int64]Artifact
}

func New(conversationID string) *Session {
	return &Session{
		ConversationID: conversationID,
		Config:         chart.NewConfig(),
		questions:      make(map[int64]string),
		artifacts:      make(map[int64]Artifact),
	}
}

// StartQuestion stages the question text for the next stream. The server
// assigns the message id; the stream's first frame binds it.
func (s *Session) StartQuestion(text string) {
	s.staged = strings.TrimSpace(text)
	s.Done = false
	s.ErrText = ""
	s.Stage = "submitting"
}

// Apply folds one stream event into the session. Events arrive strictly in
// order; only the active message's state is mutable.
func (s *Session) Apply(ev stream.Event) {
	switch ev := ev.(type) {
	case stream.Bind:
		if ev.UserMessageID != 0 {
			s.bind(ev.UserMessageID)
		}
	case stream.Status:
		s.Stage = ev.Stage
	case stream.SQL:
		s.SQL = ev.SQL
	case stream.Table:
		s.setTable(ev.Columns, ev.Rows)
	case stream.Chart:
		s.AutoOption = ev.Option
	case stream.Analysis:
		switch {
		case ev.Final:
			s.narrative = ev.Text
			s.narrativeOpen = false
			s.commit()
		case ev.Delta != "":
			s.narrative += ev.Delta
			s.narrativeOpen = true
		}
	case stream.Failure:
		s.ErrText = ev.Message
		if s.narrativeOpen {
			s.narrative = ""
			s.narrativeOpen = false
		}
	case stream.Done:
		s.Done = true
		s.Stage = ""
	case stream.Raw:
		// degraded frame; nothing to record
	}
}

func (s *Session) bind(id int64) {
	s.ActiveID = id
	s.SQL = ""
	s.Columns, s.Rows, s.Profiles = nil, nil, nil
	s.AutoOption = nil
	s.narrative = ""
	s.narrativeOpen = false
	s.ErrText = ""
	s.Config = chart.NewConfig()
	if s.staged != "" {
		s.questions[id] = s.staged
		s.staged = ""
	}
}

// setTable installs a new result table: profiling and config reconciliation
// happen here so every later chart synthesis sees consistent state.
func (s *Session) setTable(columns []string, rows [][]any) {
	s.Columns = columns
	s.Rows = rows
	s.Profiles = tabular.Profile(columns, rows)
	s.Config.Reconcile(s.Profiles)
}

// Chart synthesizes the current chart from live table state and config. Nil
// means no table yet or insufficient configuration.
func (s *Session) Chart() *chart.Spec {
	if len(s.Columns) == 0 {
		return nil
	}
	return chart.Synthesize(s.Columns, s.Rows, s.Profiles, s.Config, s.AutoOption)
}

func (s *Session) Narrative() string { return s.narrative }

func (s *Session) Question(id int64) string { return s.questions[id] }

func (s *Session) commit() {
	if s.ActiveID == 0 {
		return
	}
	s.artifacts[s.ActiveID] = Artifact{
		MessageID: s.ActiveID,
		Question:  s.questions[s.ActiveID],
		SQL:       s.SQL,
		Columns:   s.Columns,
		Rows:      s.Rows,
		Chart:     s.Chart(),
		Analysis:  s.narrative,
	}
}

// Artifact returns the stored snapshot for a message, if any.
func (s *Session) Artifact(id int64) (Artifact, bool) {
	a, ok := s.artifacts[id]
	return a, ok
}

// Replay returns the stored artifact unchanged for re-display. It never
// re-runs the stream.
func (s *Session) Replay(id int64) (Artifact, bool) {
	return s.Artifact(id)
}

// MessageIDs lists messages with stored artifacts in ascending id order.
func (s *Session) MessageIDs() []int64 {
	out := make([]int64, 0, len(s.artifacts))
	for id := range s.artifacts {
		out = append(out, id)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// SelectMessage re-displays a stored artifact as the active state without
// re-running anything.
func (s *Session) SelectMessage(id int64) bool {
	a, ok := s.artifacts[id]
	if !ok {
		return false
	}
	s.ActiveID = id
	s.Config = chart.NewConfig()
	s.restore(a)
	return true
}

func (s *Session) restore(a Artifact) {
	s.SQL = a.SQL
	s.AutoOption = nil
	if a.Chart != nil && a.Chart.Kind == chart.TypeAuto {
		s.AutoOption = a.Chart.Option
	}
	s.setTable(a.Columns, a.Rows)
	s.narrative = a.Analysis
	s.narrativeOpen = false
	s.ErrText = ""
	s.Stage = ""
}

// RecordExec records a re-run-SQL response against a message, replacing its
// artifact. The chart config survives: re-running the same question's table
// is a re-render, not a new question.
func (s *Session) RecordExec(messageID int64, sqlText string, columns []string, rows [][]any, option json.RawMessage, analysis string) Artifact {
	s.ActiveID = messageID
	s.SQL = sqlText
	s.AutoOption = option
	s.setTable(columns, rows)
	s.narrative = analysis
	s.narrativeOpen = false
	s.commit()
	return s.artifacts[messageID]
}

// SwitchConversation clears all in-memory artifacts and chart config. Server
// persisted history is untouched.
func (s *Session) SwitchConversation(conversationID string) {
	*s = *New(conversationID)
}

// LoadHistory re-derives question text and artifacts from a conversation's
// message list and activates the most recent user message.
func (s *Session) LoadHistory(msgs []HistoryMessage) {
	for _, m := range msgs {
		if m.Role == "user" {
			s.questions[m.ID] = m.Content
			s.ActiveID = m.ID
		}
		if m.Artifact != nil {
			a := *m.Artifact
			a.MessageID = m.ID
			if a.Question == "" {
				a.Question = s.questions[m.ID]
			}
			s.artifacts[m.ID] = a
		}
	}
	if a, ok := s.artifacts[s.ActiveID]; ok {
		s.restore(a)
	}
}
