package model

import "time"

// QType represents a question type.
type QType string

const (
	// QTypeSingleChoice is a multiple-choice question with one correct option.
	QTypeSingleChoice QType = "single_choice"
	// QTypeShortAnswer is a free-text question graded by the LLM.
	QTypeShortAnswer QType = "short_answer"
)

// Valid reports whether t is one of the recognized question types.
func (t QType) Valid() bool {
	return t == QTypeSingleChoice || t == QTypeShortAnswer
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Note represents an uploaded study note. A note owns the questions
// generated from it; deleting a note deletes them and their answers.
type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// QuestionDraft is a question as produced by the generation client,
// before it is persisted and assigned an ID.
type QuestionDraft struct {
	KnowledgeTag string   `json:"knowledge_tag"`
	QType        QType    `json:"q_type"`
	Content      string   `json:"content"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
	Analysis     string   `json:"analysis"`
	Difficulty   string   `json:"difficulty"`
}

// Question represents a stored quiz question. Questions are immutable
// after creation and removed only by cascade from their note.
type Question struct {
	ID           int64     `json:"id"`
	NoteID       int64     `json:"note_id"`
	KnowledgeTag string    `json:"knowledge_tag"`
	QType        QType     `json:"q_type"`
	Content      string    `json:"content"`
	Options      []string  `json:"options"`
	Answer       string    `json:"answer"`
	Analysis     string    `json:"analysis"`
	Difficulty   string    `json:"difficulty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnswerRecord represents one practice submission. A question may
// accumulate many records over repeated practice.
type AnswerRecord struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	UserAnswer string    `json:"user_answer"`
	IsCorrect  bool      `json:"is_correct"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScopeLatest restricts a question query to the most recently created note.
const ScopeLatest = "latest"

// QuestionQuery narrows the set of questions returned for practice.
type QuestionQuery struct {
	Tags   []string // knowledge tags; empty means all
	Limit  int      // maximum number of questions returned
	NoteID int64    // restrict to one note; 0 means not set
	Scope  string   // ScopeLatest restricts to the newest note
	QType  QType    // filters only when it names a recognized question type
}

// WeekStat is one weekly bucket of answer statistics.
type WeekStat struct {
	Week     string  `json:"week"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// StatsOverview is the aggregate practice report, computed on demand
// from answer records.
type StatsOverview struct {
	TotalAnswers   int        `json:"total_answers"`
	CorrectAnswers int        `json:"correct_answers"`
	Accuracy       float64    `json:"accuracy"`
	ByWeek         []WeekStat `json:"by_week"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	UploadDir    string // directory for uploaded note files
	DefaultLimit int    // default question count for practice queries
	Lang         string // default message language tag
}
