// Package grader decides whether a submitted answer is correct.
// Single-choice answers are compared letter to letter; short answers
// are delegated to a scorer and pass at or above the threshold.
package grader

import (
	"context"
	"strings"
	"unicode"

	"github.com/liutao/notequiz/internal/model"
)

// PassScore is the minimum normalized score a short answer needs to
// count as correct.
const PassScore = 0.6

// Scorer grades free-form answers against a stored reference answer.
type Scorer interface {
	ScoreAnswer(ctx context.Context, q model.Question, userAnswer string) (float64, string)
}

// Result is the outcome of grading one submission.
type Result struct {
	IsCorrect bool
	Score     float64
	Comment   string
}

// Grader grades submissions of both question types.
type Grader struct {
	scorer Scorer
}

func New(scorer Scorer) *Grader {
	return &Grader{scorer: scorer}
}

// Grade evaluates a user answer for the given question. Single-choice
// answers score 1 or 0 with no comment; short answers carry the
// scorer's score and comment.
func (g *Grader) Grade(ctx context.Context, q model.Question, userAnswer string) Result {
	if q.QType == model.QTypeSingleChoice {
		correct := NormalizeChoice(userAnswer) == NormalizeChoice(q.Answer)
		score := 0.0
		if correct {
			score = 1.0
		}
		return Result{IsCorrect: correct, Score: score}
	}

	score, comment := g.scorer.ScoreAnswer(ctx, q, userAnswer)
	return Result{
		IsCorrect: score >= PassScore,
		Score:     score,
		Comment:   comment,
	}
}

// NormalizeChoice reduces a choice answer to a comparable form: the
// first character uppercased when it is a Latin letter, otherwise the
// trimmed string as a whole. "C. Option text" and "c" both become "C".
func NormalizeChoice(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r := unicode.ToUpper(rune(s[0]))
	if r >= 'A' && r <= 'Z' {
		return string(r)
	}
	return s
}
