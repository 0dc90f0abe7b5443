package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/liutao/notequiz/internal/model"
)

// InsertQuestionBatch persists generated drafts for a note, skipping
// drafts with empty content and drafts whose content already exists
// anywhere in the question bank. The dedup snapshot is taken once per
// call and updated in-memory as rows are added, so a batch cannot
// duplicate itself; the unique index on content catches races between
// concurrent batches. Returns the number of questions inserted.
func (s *Store) InsertQuestionBatch(noteID int64, drafts []model.QuestionDraft) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	existing, err := existingContents(tx)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, d := range drafts {
		if d.Content == "" || existing[d.Content] {
			continue
		}
		opts, err := json.Marshal(d.Options)
		if err != nil {
			return 0, err
		}
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO questions
				(note_id, knowledge_tag, q_type, content, options, answer, analysis, difficulty, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			noteID, d.KnowledgeTag, string(d.QType), d.Content, string(opts),
			d.Answer, d.Analysis, d.Difficulty, time.Now(),
		)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
		existing[d.Content] = true
	}

	return inserted, tx.Commit()
}

func existingContents(tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.Query(`SELECT content FROM questions WHERE content <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	existing := make(map[string]bool)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		existing[content] = true
	}
	return existing, rows.Err()
}

// QuestionsByKnowledge samples questions matching the query in
// randomized order. The effective note scope is the explicit NoteID if
// set, else the newest note when Scope is "latest", else unscoped.
func (s *Store) QuestionsByKnowledge(q model.QuestionQuery) ([]model.Question, error) {
	noteID := q.NoteID
	if noteID == 0 && q.Scope == model.ScopeLatest {
		latest, err := s.LatestNoteID()
		if err != nil {
			return nil, err
		}
		noteID = latest
	}

	query := `SELECT id, note_id, knowledge_tag, q_type, content, options, answer, analysis, difficulty, created_at
		FROM questions WHERE 1=1`
	var args []any
	if noteID != 0 {
		query += ` AND note_id = ?`
		args = append(args, noteID)
	}
	if len(q.Tags) > 0 {
		query += ` AND knowledge_tag IN (?` + strings.Repeat(",?", len(q.Tags)-1) + `)`
		for _, tag := range q.Tags {
			args = append(args, tag)
		}
	}
	if q.QType.Valid() {
		query += ` AND q_type = ?`
		args = append(args, q.QType)
	}
	// Random order for practice variety.
	query += ` ORDER BY RANDOM() LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuestions(rows)
}

// GetQuestion returns a question by ID. Returns sql.ErrNoRows when the
// question does not exist.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	row := s.db.QueryRow(
		`SELECT id, note_id, knowledge_tag, q_type, content, options, answer, analysis, difficulty, created_at
		 FROM questions WHERE id = ?`, id,
	)
	return scanQuestion(row)
}

// WrongQuestions returns questions that have at least one incorrect
// answer record, one row per question, ordered by the most recent
// wrong-answer time descending.
func (s *Store) WrongQuestions(limit int) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT q.id, q.note_id, q.knowledge_tag, q.q_type, q.content, q.options, q.answer, q.analysis, q.difficulty, q.created_at
		 FROM questions q
		 JOIN user_answers a ON q.id = a.question_id
		 WHERE a.is_correct = 0
		 GROUP BY q.id
		 ORDER BY MAX(a.created_at) DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuestions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (model.Question, error) {
	var q model.Question
	var qType, opts string
	err := row.Scan(&q.ID, &q.NoteID, &q.KnowledgeTag, &qType, &q.Content,
		&opts, &q.Answer, &q.Analysis, &q.Difficulty, &q.CreatedAt)
	if err != nil {
		return q, err
	}
	q.QType = model.QType(qType)
	if opts == "" {
		opts = "[]"
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return q, err
	}
	return q, nil
}

func scanQuestions(rows *sql.Rows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
