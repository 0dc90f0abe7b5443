package store

import (
	"time"

	"github.com/liutao/notequiz/internal/model"
)

// InsertAnswer records one practice submission. Append-only: the store
// trusts the caller to reference an existing question.
func (s *Store) InsertAnswer(questionID int64, userAnswer string, isCorrect bool) (int64, error) {
	return s.insertAnswerAt(questionID, userAnswer, isCorrect, time.Now())
}

func (s *Store) insertAnswerAt(questionID int64, userAnswer string, isCorrect bool, at time.Time) (int64, error) {
	correct := 0
	if isCorrect {
		correct = 1
	}
	res, err := s.db.Exec(
		`INSERT INTO user_answers (question_id, user_answer, is_correct, created_at) VALUES (?, ?, ?, ?)`,
		questionID, userAnswer, correct, at,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// StatsOverview computes the aggregate practice report from all answer
// records: overall accuracy plus per-week buckets in ascending week
// order. Accuracy is 0 when there is nothing to divide by.
func (s *Store) StatsOverview() (model.StatsOverview, error) {
	var overview model.StatsOverview

	err := s.db.QueryRow(`SELECT COUNT(*) FROM user_answers`).Scan(&overview.TotalAnswers)
	if err != nil {
		return overview, err
	}
	err = s.db.QueryRow(`SELECT COUNT(*) FROM user_answers WHERE is_correct = 1`).Scan(&overview.CorrectAnswers)
	if err != nil {
		return overview, err
	}
	if overview.TotalAnswers > 0 {
		overview.Accuracy = float64(overview.CorrectAnswers) / float64(overview.TotalAnswers)
	}

	byWeek, err := s.statsByWeek()
	if err != nil {
		return overview, err
	}
	overview.ByWeek = byWeek
	return overview, nil
}

// statsByWeek groups answer records by a year-week key, e.g. "2025-35".
func (s *Store) statsByWeek() ([]model.WeekStat, error) {
	rows, err := s.db.Query(
		`SELECT strftime('%Y-%W', created_at) AS week,
		        COUNT(*) AS total,
		        SUM(is_correct) AS correct
		 FROM user_answers
		 GROUP BY week
		 ORDER BY week`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []model.WeekStat
	for rows.Next() {
		var ws model.WeekStat
		if err := rows.Scan(&ws.Week, &ws.Total, &ws.Correct); err != nil {
			return nil, err
		}
		if ws.Total > 0 {
			ws.Accuracy = float64(ws.Correct) / float64(ws.Total)
		}
		stats = append(stats, ws)
	}
	return stats, rows.Err()
}
