package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/ishara/internal/gesture"
)

// Token is a recognizable letter or word key.
type Token struct {
	Key       string         `json:"key"`
	Kind      gesture.Source `json:"kind"`
	Emoji     string         `json:"emoji,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TokenRepository provides CRUD operations for tokens.
type TokenRepository struct {
	db *sql.DB
}

// Tokens returns the token repository for this store.
func (s *Store) Tokens() *TokenRepository {
	return &TokenRepository{db: s.db}
}

// Upsert inserts a token or updates its kind and emoji.
func (r *TokenRepository) Upsert(t *Token) error {
	return upsertToken(r.db, t)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertToken(db execer, t *Token) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := db.Exec(
		`INSERT INTO tokens (key, kind, emoji, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, emoji = excluded.emoji, updated_at = excluded.updated_at`,
		t.Key, t.Kind.String(), t.Emoji, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByKey retrieves a token by its key.
func (r *TokenRepository) GetByKey(key string) (*Token, error) {
	t := &Token{}
	var kind string

	err := r.db.QueryRow(
		`SELECT key, kind, emoji, created_at, updated_at FROM tokens WHERE key = ?`,
		key,
	).Scan(&t.Key, &kind, &t.Emoji, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if t.Kind, err = gesture.ParseSource(kind); err != nil {
		return nil, err
	}
	return t, nil
}

// List retrieves all tokens ordered by key.
func (r *TokenRepository) List() ([]*Token, error) {
	rows, err := r.db.Query(`SELECT key, kind, emoji, created_at, updated_at FROM tokens ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		t := &Token{}
		var kind string
		if err := rows.Scan(&t.Key, &kind, &t.Emoji, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if t.Kind, err = gesture.ParseSource(kind); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}

// Delete removes a token and its translations.
func (r *TokenRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM tokens WHERE key = ?`, key)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// KindForKey guesses the kind of a key: a single letter is a letter,
// anything longer is a word.
func KindForKey(key string) gesture.Source {
	if len([]rune(key)) == 1 {
		return gesture.SourceLetter
	}
	return gesture.SourceWord
}
