package ui

import (
	"encoding/json"
	"fmt"

	"querydeck/internal/api"
	"querydeck/internal/chart"
	"querydeck/internal/session"
	"querydeck/internal/store"
)

// historyFromAPI converts a server message list into session history.
func historyFromAPI(msgs []api.Message) []session.HistoryMessage {
	out := make([]session.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		h := session.HistoryMessage{ID: m.ID, Role: m.Role, Content: m.Content}
		if m.Artifact != nil {
			var spec *chart.Spec
			if string(m.Artifact.Chart) != "null" {
				spec = chart.FromOption(m.Artifact.Chart)
			}
			h.Artifact = &session.Artifact{
				MessageID: m.ID,
				SQL:       m.Artifact.SQL,
				Columns:   m.Artifact.Columns,
				Rows:      m.Artifact.Rows,
				Chart:     spec,
				Analysis:  m.Artifact.Analysis,
			}
		}
		out = append(out, h)
	}
	return out
}

func storeMessagesFromAPI(conversationID string, msgs []api.Message) []store.Message {
	out := make([]store.Message, 0, len(msgs))
	for i, m := range msgs {
		out = append(out, store.Message{
			ID:             m.ID,
			ConversationID: conversationID,
			Role:           m.Role,
			Content:        m.Content,
			CreatedTS:      int64(i),
		})
	}
	return out
}

func historyFromStore(msgs []store.Message, arts map[int64]store.Artifact) []session.HistoryMessage {
	out := make([]session.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		h := session.HistoryMessage{ID: m.ID, Role: m.Role, Content: m.Content}
		if rec, ok := arts[m.ID]; ok {
			if a, err := artifactFromStore(rec); err == nil {
				h.Artifact = a
			}
		}
		out = append(out, h)
	}
	return out
}

// storeArtifact flattens a session artifact into the cache row shape.
func storeArtifact(a session.Artifact, conversationID string) (store.Artifact, error) {
	cols, err := json.Marshal(a.Columns)
	if err != nil {
		return store.Artifact{}, fmt.Errorf("encode columns: %w", err)
	}
	rows, err := json.Marshal(a.Rows)
	if err != nil {
		return store.Artifact{}, fmt.Errorf("encode rows: %w", err)
	}
	chartJSON := ""
	if a.Chart != nil && len(a.Chart.Option) > 0 {
		chartJSON = string(a.Chart.Option)
	}
	return store.Artifact{
		MessageID:      a.MessageID,
		ConversationID: conversationID,
		SQLText:        a.SQL,
		ColumnsJSON:    string(cols),
		RowsJSON:       string(rows),
		ChartJSON:      chartJSON,
		AnalysisText:   a.Analysis,
	}, nil
}

func artifactFromStore(rec store.Artifact) (*session.Artifact, error) {
	a := &session.Artifact{
		MessageID: rec.MessageID,
		SQL:       rec.SQLText,
		Analysis:  rec.AnalysisText,
	}
	if rec.ColumnsJSON != "" {
		if err := json.Unmarshal([]byte(rec.ColumnsJSON), &a.Columns); err != nil {
			return nil, fmt.Errorf("decode cached columns: %w", err)
		}
	}
	if rec.RowsJSON != "" {
		if err := json.Unmarshal([]byte(rec.RowsJSON), &a.Rows); err != nil {
			return nil, fmt.Errorf("decode cached rows: %w", err)
		}
	}
	if rec.ChartJSON != "" {
		a.Chart = chart.FromOption(json.RawMessage(rec.ChartJSON))
	}
	return a, nil
}
