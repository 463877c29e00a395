package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const DefaultGlamourStyle = "dark"

const defaultServerURL = "http://127.0.0.1:8000/api"

type AppConfig struct {
	ServerURL    string
	Token        string
	DBPath       string
	ExportDir    string
	PageSize     int
	Conversation string
	Replay       bool
}

func Parse() (AppConfig, error) {
	var cfg AppConfig

	// .env mirrors the backend's settings loader; a missing file is fine
	_ = godotenv.Load()

	flag.StringVar(&cfg.ServerURL, "server", envOr("QUERYDECK_SERVER", defaultServerURL), "base URL of the SQL chat backend")
	flag.StringVar(&cfg.Token, "token", os.Getenv("QUERYDECK_TOKEN"), "bearer token passed through to the backend")
	flag.StringVar(&cfg.DBPath, "db-path", "", "path to the local SQLite history cache")
	flag.StringVar(&cfg.ExportDir, "export-dir", "", "override export output directory")
	flag.IntVar(&cfg.PageSize, "page-size", 20, "result grid rows per page")
	flag.StringVar(&cfg.Conversation, "conversation", "", "open this conversation id directly")
	flag.BoolVar(&cfg.Replay, "replay", false, "print stored artifacts for -conversation and exit")
	flag.Parse()

	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}

	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".local", "share", "querydeck", "history.sqlite")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return cfg, fmt.Errorf("create db dir: %w", err)
	}

	if cfg.Replay && cfg.Conversation == "" {
		return cfg, fmt.Errorf("-replay requires -conversation")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
