package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jvolkova/autoquest/internal/character"
	"github.com/jvolkova/autoquest/internal/faults"
)

// Store persists character records in a SQLite database
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates the database at the given path and ensures the
// schema is current.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite works best with a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &Store{conn: conn, path: dbPath}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS characters (
		name       TEXT PRIMARY KEY,
		level      INTEGER NOT NULL,
		hp         INTEGER NOT NULL,
		max_hp     INTEGER NOT NULL,
		energy     INTEGER NOT NULL,
		max_energy INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SaveCharacter upserts the character record. The record is validated
// before any write.
func (s *Store) SaveCharacter(c *character.Character) error {
	if err := c.Validate(); err != nil {
		return err
	}

	_, err := s.conn.Exec(`
		INSERT INTO characters (name, level, hp, max_hp, energy, max_energy, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			level = excluded.level,
			hp = excluded.hp,
			max_hp = excluded.max_hp,
			energy = excluded.energy,
			max_energy = excluded.max_energy,
			updated_at = excluded.updated_at`,
		c.Name, c.Level, c.HP, c.MaxHP, c.Energy, c.MaxEnergy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save character %s: %w", c.Name, err)
	}
	return nil
}

// LoadCharacter retrieves a character record by name. A missing record is a
// ResourceError; a stored record violating the invariants is surfaced as-is
// from validation.
func (s *Store) LoadCharacter(name string) (*character.Character, error) {
	row := s.conn.QueryRow(`
		SELECT name, level, hp, max_hp, energy, max_energy
		FROM characters WHERE name = ?`, name)

	c := &character.Character{}
	err := row.Scan(&c.Name, &c.Level, &c.HP, &c.MaxHP, &c.Energy, &c.MaxEnergy)
	if err == sql.ErrNoRows {
		return nil, faults.NewResourceError("character record", name, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load character %s: %w", name, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadOrDefault returns the stored record when present, otherwise a fresh
// default character for the name.
func (s *Store) LoadOrDefault(name string) (*character.Character, error) {
	c, err := s.LoadCharacter(name)
	if err == nil {
		return c, nil
	}
	var rerr *faults.ResourceError
	if errors.As(err, &rerr) {
		return character.NewDefault(name), nil
	}
	return nil, err
}
