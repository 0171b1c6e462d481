package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"virtual-clinic/pkg"
)

// DefaultFixationTTL is how long an admin fixation stays active.
const DefaultFixationTTL = 2 * time.Hour

// FixationStore persists admin fixations (scenario, behavior, feedback
// mode) in Postgres so they survive restarts and apply across replicas.
// Expired rows are treated as absent and cleaned up lazily.
type FixationStore struct {
	DB  *sql.DB
	TTL time.Duration
}

// NewFixationStore constructs a FixationStore. A non-positive ttl falls
// back to DefaultFixationTTL.
func NewFixationStore(db *sql.DB, ttl time.Duration) *FixationStore {
	if ttl <= 0 {
		ttl = DefaultFixationTTL
	}
	return &FixationStore{DB: db, TTL: ttl}
}

// Set creates or refreshes a fixation. Setting restarts the expiry window.
func (s *FixationStore) Set(ctx context.Context, name, value string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO fixations (name, value, fixed_at)
         VALUES ($1, $2, NOW())
         ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, fixed_at = NOW()`,
		name, value)
	return err
}

// Fixation returns the live value for a name. Expired fixations are
// deleted and reported as absent.
func (s *FixationStore) Fixation(ctx context.Context, name string) (string, bool, error) {
	var value string
	var fixedAt time.Time
	err := s.DB.QueryRowContext(ctx,
		`SELECT value, fixed_at FROM fixations WHERE name = $1`, name,
	).Scan(&value, &fixedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if time.Since(fixedAt) > s.TTL {
		if err := s.ClearFixation(ctx, name); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return value, true, nil
}

// ClearFixation removes a fixation. Clearing an absent name is a no-op.
func (s *FixationStore) ClearFixation(ctx context.Context, name string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM fixations WHERE name = $1`, name)
	return err
}

// List returns all live fixations with their remaining lifetime.
func (s *FixationStore) List(ctx context.Context) ([]pkg.Fixation, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name, value, fixed_at FROM fixations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pkg.Fixation
	var expired []string
	now := time.Now()
	for rows.Next() {
		var f pkg.Fixation
		if err := rows.Scan(&f.Name, &f.Value, &f.FixedAt); err != nil {
			return nil, err
		}
		remaining := s.TTL - now.Sub(f.FixedAt)
		if remaining <= 0 {
			expired = append(expired, f.Name)
			continue
		}
		f.Remaining = remaining
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, name := range expired {
		if err := s.ClearFixation(ctx, name); err != nil {
			return nil, err
		}
	}
	return out, nil
}
