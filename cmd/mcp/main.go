package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/moonctl/pkg/config"
	"github.com/urmzd/moonctl/pkg/db"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
	moonmcp "github.com/urmzd/moonctl/pkg/mcp"
	"github.com/urmzd/moonctl/pkg/session"
)

func main() {
	// Logging must go to stderr, stdout is the MCP transport
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := flag.String("config", "", "Path to YAML config file")
	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/moonctl/moonctl.db)")
	endpoint := flag.String("endpoint", "", "Moonraker endpoint; overrides the stored default printer")
	flag.Parse()

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx := context.Background()

	if cfg.Endpoint == "" {
		cfg.Endpoint = storedEndpoint(ctx, *dbPath)
	}

	var controller device.Controller = device.NewNullController()
	if cfg.Endpoint == "" {
		log.Warn().Msg("No printer endpoint configured, tools will report disconnected")
	} else if opts, err := cfg.SessionOptions(); err != nil {
		log.Fatal().Err(err).Msg("Invalid session options")
	} else if sess, err := session.Dial(ctx, cfg.Endpoint, opts); err != nil {
		log.Warn().Err(err).Str("endpoint", cfg.Endpoint).Msg("Printer unavailable, using null controller")
	} else {
		controller = sess
		defer sess.Close()
	}

	mcpServer := moonmcp.NewServer(controller, schema.NewValidator())

	log.Info().Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}

// storedEndpoint reads the default printer saved by the API server, if any.
func storedEndpoint(ctx context.Context, path string) string {
	database, err := db.Open(path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open database")
		return ""
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	if err := database.Migrate(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to run database migrations")
		return ""
	}
	stored, err := database.ActiveConfig(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("No stored configuration")
		return ""
	}
	return stored.Endpoint()
}
