// Command moonctl is an interactive console for a Klipper printer reached
// through Moonraker.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/moonctl/cmd/moonctl/interactive"
	"github.com/urmzd/moonctl/pkg/config"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/discovery"
	"github.com/urmzd/moonctl/pkg/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := flag.String("config", "", "Path to YAML config file")
	endpoint := flag.String("endpoint", "", "Moonraker endpoint (ws://, unix:// or serial://)")
	scanFor := flag.Duration("discover", 3*time.Second, "mDNS scan time when no endpoint is configured; 0 disables")
	wait := flag.Duration("wait", 10*time.Second, "How long to wait for the printer to become ready")
	flag.Parse()

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	scanner := &discovery.Browser{}
	if cfg.Endpoint == "" && *scanFor > 0 {
		cfg.Endpoint = discover(ctx, scanner, *scanFor)
	}

	var controller device.Controller = device.NewNullController()
	var subscriber device.EventSubscriber = device.NewNullEventSubscriber()
	if cfg.Endpoint == "" {
		log.Warn().Msg("No printer endpoint, running disconnected")
	} else if opts, err := cfg.SessionOptions(); err != nil {
		log.Fatal().Err(err).Msg("Invalid session options")
	} else if sess, err := session.Dial(ctx, cfg.Endpoint, opts); err != nil {
		log.Warn().Err(err).Str("endpoint", cfg.Endpoint).Msg("Printer unavailable, running disconnected")
	} else {
		defer sess.Close()
		controller, subscriber = sess, sess

		waitCtx, stop := context.WithTimeout(ctx, *wait)
		if err := sess.WaitState(waitCtx, device.StateReady); err != nil {
			log.Warn().Str("state", sess.ConnectionState().String()).Msg("Printer not ready yet")
		} else {
			log.Info().Str("endpoint", cfg.Endpoint).Msg("Printer ready")
		}
		stop()
	}

	console, err := interactive.New(controller, subscriber, scanner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start console")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: console.Stdout()})

	console.Run(ctx, cancel)
}

func discover(ctx context.Context, scanner *discovery.Browser, timeout time.Duration) string {
	log.Info().Dur("timeout", timeout).Msg("Scanning for Moonraker hosts")
	hosts, err := scanner.Scan(ctx, timeout)
	if err != nil {
		log.Warn().Err(err).Msg("Discovery failed")
		return ""
	}
	if len(hosts) == 0 {
		return ""
	}
	if len(hosts) > 1 {
		log.Info().Int("count", len(hosts)).Msg("Several printers found, using the first; pass -endpoint to choose")
	}
	url := hosts[0].WebSocketURL()
	log.Info().Str("instance", hosts[0].Instance).Str("endpoint", url).Msg("Found printer")
	return url
}
