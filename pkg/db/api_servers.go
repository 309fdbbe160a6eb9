package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
)

var ErrAPIServerNotFound = errors.New("api server config not found")

const (
	DefaultAPIHost = "0.0.0.0"
	DefaultAPIPort = 8080
)

// APIServer is the listen address of the HTTP API for a profile.
type APIServer struct {
	ProfileID int64
	Host      string
	Port      int
}

// Address returns host:port, bracketing IPv6 hosts.
func (a *APIServer) Address() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

type APIServerStore interface {
	Get(ctx context.Context, profileID int64) (*APIServer, error)
	// Put creates or replaces the profile's address.
	Put(ctx context.Context, a *APIServer) error
}

func (db *DB) APIServers() APIServerStore {
	return &apiServerStore{db: db}
}

type apiServerStore struct {
	db *DB
}

func (s *apiServerStore) Get(ctx context.Context, profileID int64) (*APIServer, error) {
	a := &APIServer{ProfileID: profileID}
	err := s.db.QueryRowContext(ctx,
		`SELECT host, port FROM api_servers WHERE profile_id = ?`, profileID,
	).Scan(&a.Host, &a.Port)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAPIServerNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *apiServerStore) Put(ctx context.Context, a *APIServer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_servers (profile_id, host, port) VALUES (?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET host = excluded.host, port = excluded.port
	`, a.ProfileID, a.Host, a.Port)
	if err != nil {
		return fmt.Errorf("failed to save API server config: %w", err)
	}
	return nil
}
