// Package llm talks to the DashScope text-generation service. Both
// operations fail soft: anything coming back from the remote model —
// transport errors, bad status, unparsable payloads — collapses to an
// empty question list or a zero score, never an error for the caller.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/liutao/notequiz/internal/i18n"
	"github.com/liutao/notequiz/internal/llm/prompts"
	"github.com/liutao/notequiz/internal/model"
)

const (
	// DefaultBaseURL is the DashScope text-generation endpoint.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	// DefaultModel is the default Qwen model name.
	DefaultModel = "qwen-turbo"
	// DefaultTimeout bounds one remote call, including reading the body.
	DefaultTimeout = 120 * time.Second
)

// Config holds the remote model settings, built once at process start.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is a synchronous client for the remote text-generation model.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client, filling unset Config fields with defaults.
// An empty APIKey is allowed: every call then soft-fails to its default.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type request struct {
	Model string       `json:"model"`
	Input requestInput `json:"input"`
}

type requestInput struct {
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateQuestions asks the model to turn note text into question
// drafts of the given types. An empty types slice means both. Returns
// an empty slice on any failure.
func (c *Client) GenerateQuestions(ctx context.Context, noteText string, types []model.QType, maxQuestions int) []model.QuestionDraft {
	if c.cfg.APIKey == "" {
		slog.Warn("question generation skipped: no API key configured")
		return nil
	}
	if len(types) == 0 {
		types = []model.QType{model.QTypeSingleChoice, model.QTypeShortAnswer}
	}

	prompt, err := prompts.BuildGeneratePrompt(types, maxQuestions, noteText)
	if err != nil {
		slog.Error("build generation prompt", "error", err)
		return nil
	}

	text, err := c.complete(ctx, prompt)
	if err != nil {
		slog.Error("question generation call failed", "error", err)
		return nil
	}

	drafts := ParseDrafts(text)
	slog.Info("generated questions", "count", len(drafts))
	return drafts
}

// ParseDrafts extracts question drafts from model output text. The text
// must decode to a JSON array after fence stripping; elements that are
// not objects are skipped, and missing fields default to empty values.
func ParseDrafts(text string) []model.QuestionDraft {
	cleaned := stripCodeFence(text)

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &elems); err != nil {
		slog.Warn("model output is not a JSON array", "error", err)
		return nil
	}

	var drafts []model.QuestionDraft
	for _, elem := range elems {
		var d model.QuestionDraft
		if err := json.Unmarshal(elem, &d); err != nil {
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts
}

// ScoreAnswer grades a short-answer submission against the stored
// reference answer. Returns a score in [0,1] and a comment; on any
// failure the score is 0 and the comment explains why.
func (c *Client) ScoreAnswer(ctx context.Context, q model.Question, userAnswer string) (float64, string) {
	if c.cfg.APIKey == "" {
		return 0, i18n.T(ctx, "score.no_key")
	}

	prompt, err := prompts.BuildScorePrompt(q, userAnswer)
	if err != nil {
		slog.Error("build scoring prompt", "error", err)
		return 0, i18n.T(ctx, "score.failed")
	}

	text, err := c.complete(ctx, prompt)
	if err != nil {
		slog.Error("scoring call failed", "question_id", q.ID, "error", err)
		if errors.Is(err, errNoText) {
			return 0, i18n.T(ctx, "score.no_output")
		}
		return 0, i18n.T(ctx, "score.failed")
	}

	var result struct {
		Score   float64 `json:"score"`
		Comment string  `json:"comment"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &result); err != nil {
		slog.Warn("scoring output is not the expected JSON object", "error", err)
		return 0, i18n.T(ctx, "score.failed")
	}

	comment := result.Comment
	if comment == "" {
		comment = i18n.T(ctx, "score.no_comment")
	}
	return NormalizeScore(result.Score), comment
}

// NormalizeScore maps a raw model score onto [0,1]. Scores well above 1
// are read as a 0-100 scale and divided by 100; slight overshoots above
// 1 clamp rather than collapse to near zero.
func NormalizeScore(raw float64) float64 {
	if raw > 2 {
		raw = raw / 100
	}
	if raw < 0 {
		return 0
	}
	if raw > 1 {
		return 1
	}
	return raw
}

var errNoText = errors.New("response contained no text payload")

// complete sends one prompt and returns the extracted output text.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload := request{
		Model: c.cfg.Model,
		Input: requestInput{Messages: []message{{Role: "user", Content: prompt}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, excerpt(data))
	}

	text := ExtractText(data)
	if text == "" {
		slog.Warn("response without obvious text field", "body", excerpt(data))
		return "", errNoText
	}
	return strings.TrimSpace(text), nil
}

// envelope covers the known DashScope response shapes.
type envelope struct {
	Output struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
		Text string `json:"text"`
	} `json:"output"`
}

// ExtractText locates the output text inside a response body. Known
// field paths are tried first (output.choices[0].text, then
// output.text); as a last resort the decoded tree is scanned
// depth-first for any string value, since the remote schema is not
// formally contracted.
func ExtractText(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if len(env.Output.Choices) > 0 && env.Output.Choices[0].Text != "" {
			return env.Output.Choices[0].Text
		}
		if env.Output.Text != "" {
			return env.Output.Text
		}
	}

	var tree any
	if err := json.Unmarshal(body, &tree); err != nil {
		return ""
	}
	return firstString(tree)
}

// firstString walks the tree depth-first and returns the first
// non-empty string. Map keys are visited in sorted order so the result
// is stable for a given payload.
func firstString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := firstString(val[k]); s != "" {
				return s
			}
		}
	case []any:
		for _, elem := range val {
			if s := firstString(elem); s != "" {
				return s
			}
		}
	}
	return ""
}

// stripCodeFence removes a wrapping Markdown code fence and a leading
// language tag, which models add despite being told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.Trim(s, "`")
	s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
	return s
}

func excerpt(data []byte) string {
	const max = 512
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
