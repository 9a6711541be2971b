// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS capabilities (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS persons (
	uuid      TEXT PRIMARY KEY,
	username  TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT '',
	secret    TEXT NOT NULL
);
`

// Config holds the parameters for opening a catalog.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// PoolSize is passed through to the connection pool.
	PoolSize int

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger

	// Seed is inserted (if absent) on open. Deployments list their
	// full capability set here so a fresh database starts complete.
	Seed []Capability
}

// Capability is one catalog entry.
type Capability struct {
	ID          ref.CapabilityID
	Description string
}

// Person is one registry entry. Secret is an opaque credential
// established elsewhere; the catalog neither hashes nor interprets it.
type Person struct {
	ID       uuid.UUID
	UserName string
	FullName string
	Secret   string
}

// Catalog is the SQLite-backed capability catalog and person registry.
// Safe for concurrent use.
type Catalog struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if necessary) the catalog database and inserts
// any missing seed capabilities.
func Open(cfg Config) (*Catalog, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	c := &Catalog{pool: pool, logger: logger.With("component", "catalog")}
	if len(cfg.Seed) > 0 {
		if err := c.seed(context.Background(), cfg.Seed); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close releases the underlying connection pool.
func (c *Catalog) Close() error {
	return c.pool.Close()
}

func (c *Catalog) seed(ctx context.Context, seed []Capability) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: seeding: %w", err)
	}
	defer c.pool.Put(conn)

	for _, capability := range seed {
		err := sqlitex.Execute(conn,
			"INSERT OR IGNORE INTO capabilities (name, description) VALUES (?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{capability.ID.String(), capability.Description},
			})
		if err != nil {
			return fmt.Errorf("catalog: seeding %s: %w", capability.ID, err)
		}
	}
	c.logger.Info("catalog seeded", "capabilities", len(seed))
	return nil
}

// Capabilities returns every catalog capability, sorted by name.
func (c *Catalog) Capabilities(ctx context.Context) ([]ref.CapabilityID, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer c.pool.Put(conn)

	var capabilities []ref.CapabilityID
	err = sqlitex.Execute(conn, "SELECT name FROM capabilities ORDER BY name", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			capability, err := ref.ParseCapabilityID(stmt.ColumnText(0))
			if err != nil {
				return fmt.Errorf("bad catalog row %q: %w", stmt.ColumnText(0), err)
			}
			capabilities = append(capabilities, capability)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: listing capabilities: %w", err)
	}
	return capabilities, nil
}

// Contains reports whether the capability is in the catalog.
func (c *Catalog) Contains(ctx context.Context, capability ref.CapabilityID) (bool, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("catalog: %w", err)
	}
	defer c.pool.Put(conn)

	var found bool
	err = sqlitex.Execute(conn, "SELECT 1 FROM capabilities WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{capability.String()},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("catalog: checking %s: %w", capability, err)
	}
	return found, nil
}

// AddCapability inserts a capability, a no-op when already present.
func (c *Catalog) AddCapability(ctx context.Context, capability Capability) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO capabilities (name, description) VALUES (?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{capability.ID.String(), capability.Description},
		})
	if err != nil {
		return fmt.Errorf("catalog: adding %s: %w", capability.ID, err)
	}
	return nil
}

// LookupPerson fetches a person by username. The second return is
// false when no such person exists.
func (c *Catalog) LookupPerson(ctx context.Context, username string) (*Person, bool, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("catalog: %w", err)
	}
	defer c.pool.Put(conn)

	var person *Person
	err = sqlitex.Execute(conn,
		"SELECT uuid, username, full_name, secret FROM persons WHERE username = ?",
		&sqlitex.ExecOptions{
			Args: []any{username},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id, err := uuid.Parse(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("bad person row %q: %w", stmt.ColumnText(0), err)
				}
				person = &Person{
					ID:       id,
					UserName: stmt.ColumnText(1),
					FullName: stmt.ColumnText(2),
					Secret:   stmt.ColumnText(3),
				}
				return nil
			},
		})
	if err != nil {
		return nil, false, fmt.Errorf("catalog: looking up %q: %w", username, err)
	}
	if person == nil {
		return nil, false, nil
	}
	return person, true, nil
}

// AddPerson inserts a person. A zero ID gets a fresh UUID. Fails on a
// duplicate username.
func (c *Catalog) AddPerson(ctx context.Context, person *Person) error {
	if person.UserName == "" {
		return fmt.Errorf("catalog: adding person with empty username")
	}
	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}

	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO persons (uuid, username, full_name, secret) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{person.ID.String(), person.UserName, person.FullName, person.Secret},
		})
	if err != nil {
		return fmt.Errorf("catalog: adding person %q: %w", person.UserName, err)
	}
	return nil
}
