package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Player is a persistent profile. Nothing about rounds is stored.
type Player struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Sessions  int       `json:"sessions"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

type PlayerStore struct {
	db *pgxpool.Pool
}

func NewPlayerStore(db *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{db: db}
}

// Upsert registers a session for name, creating the profile on first use.
func (s *PlayerStore) Upsert(ctx context.Context, name string) (*Player, error) {
	p := &Player{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO players (name, sessions) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE
		SET sessions = players.sessions + 1, last_seen = now()
		RETURNING id, name, sessions, created_at, last_seen
	`, name).Scan(&p.ID, &p.Name, &p.Sessions, &p.CreatedAt, &p.LastSeen)
	return p, err
}

func (s *PlayerStore) Get(ctx context.Context, id int64) (*Player, error) {
	p := &Player{}
	err := s.db.QueryRow(ctx, `
		SELECT id, name, sessions, created_at, last_seen
		FROM players WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Sessions, &p.CreatedAt, &p.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// Touch records that name was seen just now.
func (s *PlayerStore) Touch(ctx context.Context, name string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE players SET last_seen = now() WHERE name = $1
	`, name)
	return err
}
