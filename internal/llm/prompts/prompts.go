// Package prompts builds the instruction text sent to the remote
// text-generation model.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"strings"
	"sync"
	"text/template"

	"github.com/liutao/notequiz/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// NoteExcerptLimit bounds the note text included in a generation
// prompt, in runes.
const NoteExcerptLimit = 8000

var (
	loadOnce     sync.Once
	loadErr      error
	generateTmpl *template.Template
	scoreTmpl    *template.Template
)

func load() error {
	loadOnce.Do(func() {
		parse := func(name string) (*template.Template, error) {
			data, err := templateFS.ReadFile("templates/" + name)
			if err != nil {
				return nil, errors.New("read prompt template " + name + ": " + err.Error())
			}
			return template.New(name).Parse(string(data))
		}
		if generateTmpl, loadErr = parse("generate.tmpl"); loadErr != nil {
			return
		}
		scoreTmpl, loadErr = parse("score.tmpl")
	})
	return loadErr
}

// GenerateData holds template data for question-generation prompts.
type GenerateData struct {
	TypeList     string
	MaxQuestions int // 0 means let the model size output to content
	Note         string
}

// ScoreData holds template data for short-answer grading prompts.
type ScoreData struct {
	Content      string
	KnowledgeTag string
	Answer       string
	UserAnswer   string
}

var typeDescriptions = map[model.QType]string{
	model.QTypeSingleChoice: "单选题 (single_choice)",
	model.QTypeShortAnswer:  "简答题 (short_answer)",
}

// BuildGeneratePrompt builds the instruction asking the model to turn a
// note into a JSON array of questions of the given types.
func BuildGeneratePrompt(types []model.QType, maxQuestions int, noteText string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}

	descs := make([]string, 0, len(types))
	for _, t := range types {
		if desc, ok := typeDescriptions[t]; ok {
			descs = append(descs, desc)
		} else {
			descs = append(descs, string(t))
		}
	}

	data := GenerateData{
		TypeList:     strings.Join(descs, "、"),
		MaxQuestions: maxQuestions,
		Note:         TruncateNote(noteText),
	}

	var buf bytes.Buffer
	if err := generateTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildScorePrompt builds the grading instruction for a short-answer
// submission.
func BuildScorePrompt(q model.Question, userAnswer string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}

	data := ScoreData{
		Content:      q.Content,
		KnowledgeTag: q.KnowledgeTag,
		Answer:       q.Answer,
		UserAnswer:   userAnswer,
	}

	var buf bytes.Buffer
	if err := scoreTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TruncateNote bounds note text to NoteExcerptLimit runes. Notes are
// predominantly CJK, so the cut is by runes, not bytes.
func TruncateNote(s string) string {
	runes := []rune(s)
	if len(runes) <= NoteExcerptLimit {
		return s
	}
	return string(runes[:NoteExcerptLimit])
}
