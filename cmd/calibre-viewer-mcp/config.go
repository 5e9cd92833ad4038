package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/benoute/calibre-viewer-mcp/pkg/calibre"
	"github.com/benoute/calibre-viewer-mcp/pkg/viewer"
)

type config struct {
	Transport   string
	Port        string
	LibraryPath string
	StorePath   string
	LogLevel    string
	PrettyLog   bool
}

// parseFlags reads the command line with environment-variable fallbacks
// (CALIBRE_TRANSPORT, PORT, CALIBRE_LIBRARY_PATH, VIEWER_DB_PATH,
// LOG_LEVEL). Flags win over the environment.
func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.Transport, "transport", envOr("CALIBRE_TRANSPORT", "stdio"), "Transport mode: stdio or http")
	flag.StringVar(&cfg.Port, "port", envOr("PORT", "8080"), "Port to listen on for http mode")
	flag.StringVar(&cfg.LibraryPath, "library-path", envOr("CALIBRE_LIBRARY_PATH", "."), "Path to the Calibre library directory")
	flag.StringVar(&cfg.StorePath, "viewer-db", envOr("VIEWER_DB_PATH", ""), "Path to the viewer record database (default: <library>/viewer.db)")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.BoolVar(&cfg.PrettyLog, "pretty-log", false, "Human-readable console log output")
	flag.Parse()

	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(cfg.LibraryPath, "viewer.db")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// app owns every long-lived dependency: the Calibre database, the viewer
// manager, metrics, and the tool-result caches. Nothing here is a package
// global; handlers receive the app explicitly.
type app struct {
	cfg     config
	log     zerolog.Logger
	db      *calibre.DB
	viewers *viewer.Manager
	metrics *serverMetrics

	searchCache *resultCache
}

func newApp(cfg config, logger zerolog.Logger) (*app, error) {
	db, err := calibre.OpenLibrary(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:         cfg,
		log:         logger,
		db:          db,
		viewers:     viewer.NewManager(cfg.StorePath, logger),
		metrics:     newServerMetrics(),
		searchCache: newResultCache(),
	}, nil
}

func (a *app) shutdown() {
	a.viewers.CloseAll()
	a.db.Close()
}
