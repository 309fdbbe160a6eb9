package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoActiveProfile = errors.New("no active profile found")

// Config is the runtime configuration stored for the active profile.
type Config struct {
	Profile   *Profile
	APIServer *APIServer
	// Printer is the profile's default printer, nil when none is saved.
	Printer *Printer
}

func (c *Config) APIAddress() string {
	if c.APIServer == nil {
		return (&APIServer{Host: DefaultAPIHost, Port: DefaultAPIPort}).Address()
	}
	return c.APIServer.Address()
}

// Endpoint returns the default printer endpoint, or "" when none is saved.
func (c *Config) Endpoint() string {
	if c.Printer == nil {
		return ""
	}
	return c.Printer.Endpoint
}

// ActiveConfig loads the active profile with its API address and default printer.
func (db *DB) ActiveConfig(ctx context.Context) (*Config, error) {
	profile, err := db.Profiles().GetActive(ctx)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrNoActiveProfile
		}
		return nil, fmt.Errorf("failed to get active profile: %w", err)
	}

	config := &Config{Profile: profile}

	config.APIServer, err = db.APIServers().Get(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrAPIServerNotFound) {
		return nil, fmt.Errorf("failed to get API server config: %w", err)
	}

	config.Printer, err = db.Printers().GetDefault(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrPrinterNotFound) {
		return nil, fmt.Errorf("failed to get default printer: %w", err)
	}

	return config, nil
}
