package grader

import (
	"context"
	"testing"

	"github.com/liutao/notequiz/internal/model"
)

func TestNormalizeChoice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare letter", "C", "C"},
		{"lowercase letter", "c", "C"},
		{"full option text", "C. 梯度消失", "C"},
		{"padded", "  b  ", "B"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"non letter answer", "判断题不适用", "判断题不适用"},
		{"digit leading", "42", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeChoice(tt.in); got != tt.want {
				t.Errorf("NormalizeChoice(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

type stubScorer struct {
	score   float64
	comment string
}

func (s stubScorer) ScoreAnswer(ctx context.Context, q model.Question, userAnswer string) (float64, string) {
	return s.score, s.comment
}

func TestGradeSingleChoice(t *testing.T) {
	q := model.Question{QType: model.QTypeSingleChoice, Answer: "C"}
	g := New(stubScorer{})

	tests := []struct {
		name    string
		answer  string
		correct bool
	}{
		{"exact", "C", true},
		{"lowercase", "c", true},
		{"full option text", "C. 梯度消失", true},
		{"wrong letter", "A", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Grade(context.Background(), q, tt.answer)
			if res.IsCorrect != tt.correct {
				t.Errorf("Grade(%q).IsCorrect = %v, want %v", tt.answer, res.IsCorrect, tt.correct)
			}
			wantScore := 0.0
			if tt.correct {
				wantScore = 1.0
			}
			if res.Score != wantScore {
				t.Errorf("Grade(%q).Score = %v, want %v", tt.answer, res.Score, wantScore)
			}
			if res.Comment != "" {
				t.Errorf("Grade(%q).Comment = %q, want empty", tt.answer, res.Comment)
			}
		})
	}
}

func TestGradeShortAnswer(t *testing.T) {
	q := model.Question{QType: model.QTypeShortAnswer, Answer: "参考答案"}

	tests := []struct {
		name    string
		score   float64
		correct bool
	}{
		{"above threshold", 0.85, true},
		{"at threshold", 0.6, true},
		{"below threshold", 0.59, false},
		{"zero", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(stubScorer{score: tt.score, comment: "点评"})
			res := g.Grade(context.Background(), q, "作答")
			if res.IsCorrect != tt.correct {
				t.Errorf("score %v: IsCorrect = %v, want %v", tt.score, res.IsCorrect, tt.correct)
			}
			if res.Score != tt.score {
				t.Errorf("score %v: Score = %v", tt.score, res.Score)
			}
			if res.Comment != "点评" {
				t.Errorf("score %v: Comment = %q, want 点评", tt.score, res.Comment)
			}
		})
	}
}
