package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"querydeck/internal/api"
	"querydeck/internal/config"
	"querydeck/internal/export"
	"querydeck/internal/store"
	"querydeck/internal/ui"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, "querydeck:", err)
		os.Exit(2)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "querydeck:", err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.Replay {
		if err := replay(st, cfg.Conversation); err != nil {
			fmt.Fprintln(os.Stderr, "querydeck:", err)
			os.Exit(1)
		}
		return
	}

	exp, err := export.New(cfg.ExportDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "querydeck:", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.ServerURL, cfg.Token)
	m := ui.NewModel(cfg, client, st, exp)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "querydeck:", err)
		os.Exit(1)
	}
}

// replay prints every cached artifact of a conversation to stdout, oldest
// first, without touching the server.
func replay(st *store.Store, conversationID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msgs, err := st.Messages(ctx, conversationID)
	if err != nil {
		return err
	}
	arts, err := st.Artifacts(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(arts) == 0 {
		return fmt.Errorf("no cached artifacts for conversation %s", conversationID)
	}

	questions := make(map[int64]string)
	for _, m := range msgs {
		if m.Role == "user" {
			questions[m.ID] = m.Content
		}
	}

	ids := make([]int64, 0, len(arts))
	for id := range arts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		rec := arts[id]
		fmt.Printf("=== message %d ===\n", id)
		if q := strings.TrimSpace(questions[id]); q != "" {
			fmt.Println("Q:", q)
		}
		if rec.SQLText != "" {
			fmt.Println("SQL:", rec.SQLText)
		}
		if rec.ColumnsJSON != "" {
			fmt.Println("Columns:", rec.ColumnsJSON)
		}
		if rec.RowsJSON != "" {
			fmt.Println("Rows:", rec.RowsJSON)
		}
		if rec.AnalysisText != "" {
			fmt.Println(rec.AnalysisText)
		}
		fmt.Println()
	}
	return nil
}
