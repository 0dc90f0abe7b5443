package store

import (
	"database/sql"
	"time"

	"github.com/liutao/notequiz/internal/model"
)

// InsertNote stores an uploaded note and returns its ID.
func (s *Store) InsertNote(title, path string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO notes (title, path, created_at) VALUES (?, ?, ?)`,
		title, path, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotes returns the most recent notes, newest first.
func (s *Store) ListNotes(limit int) ([]model.Note, error) {
	rows, err := s.db.Query(
		`SELECT id, title, path, created_at FROM notes ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Path, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// LatestNoteID returns the ID of the most recently created note,
// or 0 if no notes exist.
func (s *Store) LatestNoteID() (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`SELECT id FROM notes ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

// DeleteNote removes a note together with its questions and their
// answer records, in dependency order, as one transaction.
func (s *Store) DeleteNote(noteID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM user_answers WHERE question_id IN
			(SELECT id FROM questions WHERE note_id = ?)`, noteID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM questions WHERE note_id = ?`, noteID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, noteID); err != nil {
		return err
	}

	return tx.Commit()
}
