package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/moonctl/pkg/api"
	"github.com/urmzd/moonctl/pkg/config"
	"github.com/urmzd/moonctl/pkg/db"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
	"github.com/urmzd/moonctl/pkg/discovery"
	"github.com/urmzd/moonctl/pkg/session"

	_ "github.com/urmzd/moonctl/docs"
)

// @title           moonctl API
// @version         1.0
// @description     REST API for monitoring and controlling a Klipper printer through Moonraker

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/moonctl/moonctl.db)")
	endpoint := flag.String("endpoint", "", "Moonraker endpoint, e.g. ws://printer.local:7125/websocket or unix:///tmp/moonraker.sock")
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

	// Open database
	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Str("path", database.Path()).Msg("Database opened")

	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check bootstrap status")
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := database.Bootstrap(ctx, cfg.Endpoint); err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap database")
		}
		log.Info().Msg("Database bootstrapped successfully")
	}

	stored, err := database.ActiveConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load stored configuration")
	}
	printerRow, err := resolvePrinter(ctx, database, stored, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve printer")
	}

	log.Info().
		Str("profile", stored.Profile.Name).
		Str("api_address", stored.APIAddress()).
		Msg("Configuration loaded")

	var controller device.Controller
	var subscriber device.EventSubscriber
	var routerOpts []api.Option

	sess, err := connect(ctx, cfg, printerRow)
	if err != nil {
		log.Warn().Err(err).Msg("Printer unavailable, using null controller")
		controller = device.NewNullController()
		subscriber = device.NewNullEventSubscriber()
	} else {
		controller = sess
		subscriber = sess

		recordCtx, stopRecording := context.WithCancel(ctx)
		defer stopRecording()
		events := sess.SubscribeBuffered(recorderBuffer)
		go database.RecordGCodes(recordCtx, printerRow.ID, events, persistedGCodeLines)
		routerOpts = append(routerOpts, api.WithHistory(database.History(printerRow.ID)))
	}
	routerOpts = append(routerOpts, api.WithScanner(&discovery.Browser{}))

	validator := schema.NewValidator()
	router := api.NewRouter(controller, subscriber, validator, routerOpts...)

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		controller.Close()
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
		os.Exit(0)
	}()

	addr := stored.APIAddress()
	log.Info().Str("address", addr).Msg("Starting API server")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// persistedGCodeLines bounds the stored console log per printer.
const persistedGCodeLines = 10000

// recorderBuffer is the capacity of the recorder's event channel.
const recorderBuffer = 4096

var errNoEndpoint = errors.New("no printer endpoint configured")

// resolvePrinter picks the printer row to connect to. An endpoint from flags,
// the config file or the environment wins over the stored default and is
// saved when no stored printer has it yet.
func resolvePrinter(ctx context.Context, database *db.DB, stored *db.Config, cfg config.Config) (*db.Printer, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" || (stored.Printer != nil && stored.Printer.Endpoint == endpoint) {
		return stored.Printer, nil
	}

	printers, err := database.Printers().List(ctx, stored.Profile.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range printers {
		if p.Endpoint == endpoint {
			return p, nil
		}
	}

	p := &db.Printer{
		ProfileID: stored.Profile.ID,
		Name:      endpoint,
		Endpoint:  endpoint,
		Policy:    cfg.Policy,
	}
	if err := database.Printers().Create(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Str("endpoint", endpoint).Msg("Saved printer")
	return p, nil
}

func connect(ctx context.Context, cfg config.Config, p *db.Printer) (*session.Session, error) {
	if p == nil {
		return nil, errNoEndpoint
	}
	cfg = cfg.WithSavedPolicy(p.Policy)
	opts, err := cfg.SessionOptions()
	if err != nil {
		return nil, err
	}
	sess, err := session.Dial(ctx, p.Endpoint, opts)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("printer", p.Name).
		Str("endpoint", p.Endpoint).
		Str("policy", opts.RPC.Policy.String()).
		Msg("Connecting to printer")
	return sess, nil
}
