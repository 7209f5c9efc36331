package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Tokens table - every recognizable letter or word key
		`CREATE TABLE IF NOT EXISTS tokens (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('letter', 'word')),
			emoji TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Translations table - display text of a token per language
		`CREATE TABLE IF NOT EXISTS translations (
			token_key TEXT NOT NULL REFERENCES tokens(key) ON DELETE CASCADE,
			lang TEXT NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (token_key, lang)
		)`,

		// Utterances table - phrases that were spoken aloud
		`CREATE TABLE IF NOT EXISTS utterances (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			lang TEXT NOT NULL,
			tokens TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_translations_lang ON translations(lang)`,
		`CREATE INDEX IF NOT EXISTS idx_utterances_created_at ON utterances(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
