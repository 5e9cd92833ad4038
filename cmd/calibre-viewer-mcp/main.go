package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func main() {
	// A .env beside the binary may supply any of the flag defaults.
	_ = godotenv.Load()

	cfg := parseFlags()
	logger := newLogger(cfg)

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.shutdown()

	server := app.setupMCPServer()

	switch cfg.Transport {
	case "http":
		handler := mcp.NewStreamableHTTPHandler(
			func(*http.Request) *mcp.Server { return server },
			nil,
		)
		corsHandler := cors.New(cors.Options{
			AllowOriginFunc: func(origin string) bool {
				return true
			},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"}, // OPTIONS for preflight
			AllowedHeaders: []string{
				"Content-Type",
				"Authorization",
				"Mcp-Session-Id",
				"mcp-protocol-version",
			},
			ExposedHeaders:   []string{"Mcp-Session-Id"}, // Allow clients to read session ID
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler(app.routes(handler))

		logger.Info().Str("port", cfg.Port).Msg("serving http")
		if err := http.ListenAndServe(":"+cfg.Port, corsHandler); err != nil {
			logger.Fatal().Err(err).Msg("http server stopped")
		}
	case "stdio":
		if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
			logger.Fatal().Err(err).Msg("stdio server stopped")
		}
	default:
		logger.Fatal().Err(errors.New("invalid transport")).Str("transport", cfg.Transport).Send()
	}
}

func newLogger(cfg config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.PrettyLog {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "calibre-viewer-mcp").Logger()
}
