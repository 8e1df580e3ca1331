package storage

import (
	"fmt"
	"net/url"
	"time"
)

// DefaultPostgresConfig returns settings for a local development database.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:           "localhost",
		Port:           5432,
		Database:       "lca",
		User:           "lca",
		Password:       "lca",
		SSLMode:        "disable",
		MaxConns:       5,
		MinConns:       1,
		AcquireTimeout: 500 * time.Millisecond,
		SearchTimeout:  1500 * time.Millisecond,
		SampleTimeout:  800 * time.Millisecond,
		HubTimeout:     3 * time.Second,
	}
}

// DSN builds a postgres:// connection string from the config.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q.Set("sslmode", sslMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// withDefaults fills zero-valued pool and timeout settings.
func (c PostgresConfig) withDefaults() PostgresConfig {
	def := DefaultPostgresConfig()
	if c.MaxConns <= 0 {
		c.MaxConns = def.MaxConns
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		c.MinConns = def.MinConns
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = def.AcquireTimeout
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = def.SearchTimeout
	}
	if c.SampleTimeout <= 0 {
		c.SampleTimeout = def.SampleTimeout
	}
	if c.HubTimeout <= 0 {
		c.HubTimeout = def.HubTimeout
	}
	return c
}
