package profile

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	sex        TEXT NOT NULL,
	age        INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	weight     INTEGER NOT NULL,
	topic      TEXT,
	created_at TIMESTAMP NOT NULL
);
`

// Store persists completed profiles in a local SQLite database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens (and creates if needed) the database at path.
func NewStore(logger zerolog.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "profile-store").Logger(),
	}, nil
}

// Save inserts a completed profile.
func (s *Store) Save(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, sex, age, height, weight, topic, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Sex, p.Age, p.Height, p.Weight, p.Topic, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	s.logger.Info().Str("id", p.ID).Str("name", p.Name).Msg("Profile saved")
	return nil
}

// List returns all stored profiles, newest first.
func (s *Store) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, sex, age, height, weight, topic, created_at
		 FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		var p Profile
		var topic sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Sex, &p.Age, &p.Height, &p.Weight, &topic, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Topic = topic.String
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
