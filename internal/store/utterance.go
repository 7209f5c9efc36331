package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Utterance is a phrase that was sent to the speech synthesizer.
type Utterance struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Lang      string    `json:"lang"`
	Tokens    []string  `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// UtteranceRepository records spoken phrases.
type UtteranceRepository struct {
	db *sql.DB
}

// Utterances returns the utterance repository for this store.
func (s *Store) Utterances() *UtteranceRepository {
	return &UtteranceRepository{db: s.db}
}

// Create stores u, assigning an ID and timestamp when unset.
func (r *UtteranceRepository) Create(u *Utterance) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Tokens == nil {
		u.Tokens = []string{}
	}

	tokens, err := json.Marshal(u.Tokens)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO utterances (id, text, lang, tokens, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Text, u.Lang, string(tokens), u.CreatedAt,
	)
	return err
}

// GetByID retrieves an utterance by its ID.
func (r *UtteranceRepository) GetByID(id string) (*Utterance, error) {
	u := &Utterance{}
	var tokens string

	err := r.db.QueryRow(
		`SELECT id, text, lang, tokens, created_at FROM utterances WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Text, &u.Lang, &tokens, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(tokens), &u.Tokens); err != nil {
		return nil, err
	}
	return u, nil
}

// List returns the most recent utterances, newest first. limit <= 0
// returns all of them.
func (r *UtteranceRepository) List(limit int) ([]*Utterance, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, text, lang, tokens, created_at FROM utterances
		 ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Utterance
	for rows.Next() {
		u := &Utterance{}
		var tokens string
		if err := rows.Scan(&u.ID, &u.Text, &u.Lang, &tokens, &u.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tokens), &u.Tokens); err != nil {
			return nil, err
		}
		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Delete removes an utterance by its ID.
func (r *UtteranceRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM utterances WHERE id = ?`, id)
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
