package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ayusman/ishara/internal/phrase"
)

// ErrInvalidTranslations is returned by ImportTranslations for malformed
// documents.
var ErrInvalidTranslations = errors.New("invalid translations document")

// Translation is the text of a token in one language.
type Translation struct {
	TokenKey string `json:"token_key"`
	Lang     string `json:"lang"`
	Text     string `json:"text"`
}

// TranslationRepository provides CRUD operations for translations.
type TranslationRepository struct {
	db *sql.DB
}

// Translations returns the translation repository for this store.
func (s *Store) Translations() *TranslationRepository {
	return &TranslationRepository{db: s.db}
}

// Set stores the text of key in lang. The token must exist.
func (r *TranslationRepository) Set(key, lang, text string) error {
	return setTranslation(r.db, key, lang, text)
}

func setTranslation(db execer, key, lang, text string) error {
	_, err := db.Exec(
		`INSERT INTO translations (token_key, lang, text) VALUES (?, ?, ?)
		 ON CONFLICT(token_key, lang) DO UPDATE SET text = excluded.text`,
		key, lang, text,
	)
	return err
}

// Get returns the text of key in lang.
func (r *TranslationRepository) Get(key, lang string) (string, error) {
	var text string
	err := r.db.QueryRow(
		`SELECT text FROM translations WHERE token_key = ? AND lang = ?`,
		key, lang,
	).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return text, nil
}

// ListByToken returns every translation of key ordered by language.
func (r *TranslationRepository) ListByToken(key string) ([]Translation, error) {
	rows, err := r.db.Query(
		`SELECT token_key, lang, text FROM translations WHERE token_key = ? ORDER BY lang`,
		key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Translation
	for rows.Next() {
		var t Translation
		if err := rows.Scan(&t.TokenKey, &t.Lang, &t.Text); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes the text of key in lang.
func (r *TranslationRepository) Delete(key, lang string) error {
	result, err := r.db.Exec(`DELETE FROM translations WHERE token_key = ? AND lang = ?`, key, lang)
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

// ImportTranslations reads a translations document and stores every entry
// in a single transaction. The document maps each key to its texts per
// language plus an optional "emoji":
//
//	{"bonjour": {"fr": "Bonjour", "en": "Hello", "ar": "مرحبا", "emoji": "👋"}}
//
// It returns the number of tokens imported.
func (s *Store) ImportTranslations(r io.Reader) (int, error) {
	var doc map[string]map[string]string
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTranslations, err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		if strings.TrimSpace(k) == "" {
			return 0, fmt.Errorf("%w: empty key", ErrInvalidTranslations)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, key := range keys {
		fields := doc[key]
		tok := &Token{Key: key, Kind: KindForKey(key), Emoji: fields["emoji"]}
		if err := upsertToken(tx, tok); err != nil {
			return 0, fmt.Errorf("import %q: %w", key, err)
		}
		for lang, text := range fields {
			if lang == "emoji" {
				continue
			}
			if err := setTranslation(tx, key, lang, text); err != nil {
				return 0, fmt.Errorf("import %q/%s: %w", key, lang, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Lexicon loads every token and translation into an in-memory lexicon.
func (s *Store) Lexicon() (*phrase.Lexicon, error) {
	tokens, err := s.Tokens().List()
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*phrase.Entry, len(tokens))
	entries := make([]phrase.Entry, 0, len(tokens))
	for _, t := range tokens {
		entries = append(entries, phrase.Entry{Key: t.Key, Emoji: t.Emoji, Texts: map[string]string{}})
	}
	for i := range entries {
		byKey[entries[i].Key] = &entries[i]
	}

	rows, err := s.db.Query(`SELECT token_key, lang, text FROM translations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, lang, text string
		if err := rows.Scan(&key, &lang, &text); err != nil {
			return nil, err
		}
		if e, ok := byKey[key]; ok {
			e.Texts[lang] = text
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return phrase.NewLexicon(entries), nil
}
