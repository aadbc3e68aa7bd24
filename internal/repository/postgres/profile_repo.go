package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/repository"
	"github.com/jackc/pgx/v5"
)

// ProfileRepo implements repository.ProfileStore on a JSONB documents table.
type ProfileRepo struct{ db *DB }

var _ repository.ProfileStore = (*ProfileRepo)(nil)

// NewProfileRepo constructs a profile document repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Get loads a profile document.
func (r *ProfileRepo) Get(ctx context.Context, id string) (repository.Document, bool, error) {
	const q = `SELECT doc FROM profiles WHERE id=$1`
	var raw []byte
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var doc repository.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return doc, true, nil
}

// Set writes the whole document (insert or replace).
func (r *ProfileRepo) Set(ctx context.Context, id string, doc repository.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", id, err)
	}
	const q = `
INSERT INTO profiles (id, doc)
VALUES ($1, $2::jsonb)
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`
	_, err = r.db.Pool.Exec(ctx, q, id, string(raw))
	return err
}

// Update merges fields into the stored document in a single statement,
// so either every field lands or none does.
func (r *ProfileRepo) Update(ctx context.Context, id string, fields repository.Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields %s: %w", id, err)
	}
	const q = `
UPDATE profiles
SET doc = doc || $2::jsonb, updated_at = now()
WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id, string(raw))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
