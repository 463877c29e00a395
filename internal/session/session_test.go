package session

import (
	"encoding/json"
	"testing"

	"querydeck/internal/chart"
	"querydeck/internal/stream"
	"querydeck/internal/tabular"
)

func streamQuestion(s *Session, id int64, question string) {
	s.StartQuestion(question)
	s.Apply(stream.Bind{UserMessageID: id})
	s.Apply(stream.Status{Stage: "generating_sql"})
	s.Apply(stream.SQL{SQL: "SELECT region, sales FROM t"})
	s.Apply(stream.Table{
		Columns: []string{"region", "sales"},
		Rows:    [][]any{{"east", 5.0}, {"west", 20.0}, {"east", 10.0}},
	})
	s.Apply(stream.Analysis{Delta: "East is "})
	s.Apply(stream.Analysis{Delta: "behind."})
	s.Apply(stream.Analysis{Text: "East trails west.", Final: true})
	s.Apply(stream.Done{OK: true})
}

func TestSessionStreamLifecycle(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 7, "how are sales by region?")

	if s.ActiveID != 7 {
		t.Fatalf("bind should set active id, got %d", s.ActiveID)
	}
	if !s.Done || s.Stage != "" {
		t.Fatalf("done should clear stage: done=%v stage=%q", s.Done, s.Stage)
	}
	if s.Narrative() != "East trails west." {
		t.Fatalf("final text must replace accumulated deltas, got %q", s.Narrative())
	}
	if s.Question(7) != "how are sales by region?" {
		t.Fatalf("staged question should bind to id, got %q", s.Question(7))
	}

	a, ok := s.Artifact(7)
	if !ok {
		t.Fatal("final analysis should commit an artifact")
	}
	if a.SQL == "" || len(a.Rows) != 3 || a.Analysis != "East trails west." {
		t.Fatalf("incomplete artifact: %#v", a)
	}
	if a.Chart == nil {
		t.Fatal("artifact should carry the synthesized chart")
	}
}

func TestSessionDeltaAccumulation(t *testing.T) {
	s := New("conv-1")
	s.StartQuestion("q")
	s.Apply(stream.Bind{UserMessageID: 1})
	s.Apply(stream.Analysis{Delta: "one "})
	s.Apply(stream.Analysis{Delta: "two"})
	if s.Narrative() != "one two" {
		t.Fatalf("deltas should append, got %q", s.Narrative())
	}
	if _, ok := s.Artifact(1); ok {
		t.Fatal("no artifact before final analysis")
	}
}

func TestSessionErrorClearsOpenNarrative(t *testing.T) {
	s := New("conv-1")
	s.StartQuestion("q")
	s.Apply(stream.Bind{UserMessageID: 1})
	s.Apply(stream.Analysis{Delta: "partial reaso"})
	s.Apply(stream.Failure{Message: "llm timeout"})
	if s.Narrative() != "" {
		t.Fatalf("mid-stream error should drop the open narrative, got %q", s.Narrative())
	}
	if s.ErrText != "llm timeout" {
		t.Fatalf("unexpected error text %q", s.ErrText)
	}
}

func TestSessionErrorKeepsClosedNarrative(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "q")
	s.Apply(stream.Failure{Message: "late failure"})
	if s.Narrative() != "East trails west." {
		t.Fatalf("a committed narrative survives later errors, got %q", s.Narrative())
	}
}

func TestSessionTableProfilesAndReconciles(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "q")

	if len(s.Profiles) != 2 || s.Profiles[0].Type != tabular.Text || s.Profiles[1].Type != tabular.Number {
		t.Fatalf("unexpected profiles: %#v", s.Profiles)
	}
	if s.Config.XField != "region" || s.Config.YField != "sales" {
		t.Fatalf("config should reconcile to defaults: %#v", s.Config)
	}
}

func TestSessionNewQuestionResetsConfig(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "first")
	s.Config.SetType(chart.TypePie)

	streamQuestion(s, 2, "second")
	if s.Config.Type != chart.TypeAuto {
		t.Fatalf("a new question's table gets a fresh config, got %s", s.Config.Type)
	}
}

func TestSessionChartUsesServerOption(t *testing.T) {
	s := New("conv-1")
	s.StartQuestion("q")
	s.Apply(stream.Bind{UserMessageID: 1})
	s.Apply(stream.Table{Columns: []string{"region", "sales"}, Rows: [][]any{{"east", 5.0}}})
	option := json.RawMessage(`{"series":[{"type":"bar","data":[5]}]}`)
	s.Apply(stream.Chart{Option: option})

	spec := s.Chart()
	if spec == nil || spec.Kind != chart.TypeAuto {
		t.Fatalf("auto config should pass through server option: %#v", spec)
	}
	if string(spec.Option) != string(option) {
		t.Fatal("server option must be preserved")
	}
}

func TestSessionReplayRoundTrip(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "first")
	first, _ := s.Artifact(1)

	streamQuestion(s, 2, "second")

	replayed, ok := s.Replay(1)
	if !ok {
		t.Fatal("replay should find the stored artifact")
	}
	if replayed.SQL != first.SQL || replayed.Analysis != first.Analysis {
		t.Fatalf("replay must return the artifact unchanged: %#v vs %#v", replayed, first)
	}

	if !s.SelectMessage(1) {
		t.Fatal("select should activate the stored message")
	}
	if s.ActiveID != 1 || s.Narrative() != first.Analysis {
		t.Fatalf("selected state mismatch: id=%d narrative=%q", s.ActiveID, s.Narrative())
	}
	if s.Chart() == nil {
		t.Fatal("re-displayed artifact should still chart")
	}
}

func TestSessionSelectMissingMessage(t *testing.T) {
	s := New("conv-1")
	if s.SelectMessage(99) {
		t.Fatal("selecting an unknown message should fail")
	}
}

func TestSessionLastWriteWins(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "q")

	s.RecordExec(1, "SELECT 1", []string{"n"}, [][]any{{1.0}}, nil, "re-ran")
	a, _ := s.Artifact(1)
	if a.SQL != "SELECT 1" || a.Analysis != "re-ran" {
		t.Fatalf("re-run should replace the artifact: %#v", a)
	}
	if len(s.MessageIDs()) != 1 {
		t.Fatalf("still one artifact per message: %#v", s.MessageIDs())
	}
}

func TestSessionRecordExecKeepsConfig(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "q")
	s.Config.SetType(chart.TypePie)

	s.RecordExec(1, "SELECT region, sales FROM t", []string{"region", "sales"}, [][]any{{"east", 5.0}}, nil, "")
	if s.Config.Type != chart.TypePie {
		t.Fatalf("re-running SQL is a re-render; config must survive, got %s", s.Config.Type)
	}
}

func TestSessionMessageIDsSorted(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 9, "a")
	streamQuestion(s, 3, "b")
	streamQuestion(s, 5, "c")
	ids := s.MessageIDs()
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 5 || ids[2] != 9 {
		t.Fatalf("ids should sort ascending: %#v", ids)
	}
}

func TestSessionSwitchConversationClearsState(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "q")
	s.SwitchConversation("conv-2")

	if s.ConversationID != "conv-2" {
		t.Fatalf("unexpected conversation %q", s.ConversationID)
	}
	if _, ok := s.Artifact(1); ok {
		t.Fatal("artifacts must not leak across conversations")
	}
	if len(s.Columns) != 0 || s.SQL != "" {
		t.Fatal("live table state must clear on switch")
	}
}

func TestSessionLoadHistory(t *testing.T) {
	s := New("conv-1")
	s.LoadHistory([]HistoryMessage{
		{ID: 1, Role: "user", Content: "first question", Artifact: &Artifact{
			SQL:      "SELECT 1",
			Columns:  []string{"n"},
			Rows:     [][]any{{1.0}},
			Analysis: "one row",
		}},
		{ID: 2, Role: "user", Content: "second question", Artifact: &Artifact{
			SQL:      "SELECT 2",
			Columns:  []string{"n"},
			Rows:     [][]any{{2.0}},
			Analysis: "another row",
		}},
	})

	if s.ActiveID != 2 {
		t.Fatalf("most recent user message should activate, got %d", s.ActiveID)
	}
	if s.SQL != "SELECT 2" || s.Narrative() != "another row" {
		t.Fatalf("active artifact not restored: sql=%q narrative=%q", s.SQL, s.Narrative())
	}
	a, ok := s.Artifact(1)
	if !ok || a.Question != "first question" {
		t.Fatalf("question text should attach to artifact: %#v", a)
	}
}

func TestSessionIgnoresZeroBind(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "q")
	s.Apply(stream.Bind{UserMessageID: 0})
	if s.ActiveID != 1 {
		t.Fatalf("zero bind must not reset state, got %d", s.ActiveID)
	}
}

func TestSessionRawEventIsNoOp(t *testing.T) {
	s := New("conv-1")
	streamQuestion(s, 1, "q")
	before := s.Narrative()
	s.Apply(stream.Raw{Name: "table", Text: "{broken"})
	if s.Narrative() != before || len(s.Columns) != 2 {
		t.Fatal("raw events must not mutate session state")
	}
}
