package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	// _time_format=sqlite keeps timestamps in a form the date functions
	// can parse; the weekly stats roll up with strftime.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		path TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		note_id INTEGER NOT NULL,
		knowledge_tag TEXT NOT NULL DEFAULT '',
		q_type TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		options TEXT NOT NULL DEFAULT '[]',
		answer TEXT NOT NULL DEFAULT '',
		analysis TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (note_id) REFERENCES notes(id)
	);

	CREATE TABLE IF NOT EXISTS user_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL,
		user_answer TEXT NOT NULL DEFAULT '',
		is_correct INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	-- Question content is the dedup key across the whole bank. The index
	-- backs up the per-batch check so concurrent uploads cannot both land
	-- the same content.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_questions_content
		ON questions(content) WHERE content <> '';

	CREATE INDEX IF NOT EXISTS idx_questions_note ON questions(note_id);
	CREATE INDEX IF NOT EXISTS idx_user_answers_question ON user_answers(question_id);
	`
	_, err := s.db.Exec(schema)
	return err
}
