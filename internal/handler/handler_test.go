package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/liutao/notequiz/internal/grader"
	"github.com/liutao/notequiz/internal/model"
	"github.com/liutao/notequiz/internal/store"
)

type stubGenerator struct {
	drafts []model.QuestionDraft
	// captured arguments from the last call
	noteText string
	types    []model.QType
	max      int
}

func (g *stubGenerator) GenerateQuestions(ctx context.Context, noteText string, types []model.QType, maxQuestions int) []model.QuestionDraft {
	g.noteText = noteText
	g.types = types
	g.max = maxQuestions
	return g.drafts
}

type stubScorer struct {
	score   float64
	comment string
}

func (s stubScorer) ScoreAnswer(ctx context.Context, q model.Question, userAnswer string) (float64, string) {
	return s.score, s.comment
}

func newTestServer(t *testing.T, gen Generator, scorer grader.Scorer) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := model.AppConfig{UploadDir: t.TempDir(), DefaultLimit: 10, Lang: "zh"}
	h := New(s, gen, grader.New(scorer), cfg)

	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, s
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func uploadRequest(t *testing.T, url string, fields map[string][]string, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	for key, vals := range fields {
		for _, v := range vals {
			mw.WriteField(key, v)
		}
	}
	mw.Close()

	resp, err := http.Post(url+"/api/notes/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestUploadNote(t *testing.T) {
	gen := &stubGenerator{drafts: []model.QuestionDraft{
		{KnowledgeTag: "反向传播", QType: model.QTypeSingleChoice, Content: "题干一",
			Options: []string{"A. 一", "B. 二"}, Answer: "A"},
		{KnowledgeTag: "梯度下降", QType: model.QTypeShortAnswer, Content: "题干二", Answer: "参考"},
	}}
	srv, s := newTestServer(t, gen, stubScorer{})

	fields := map[string][]string{
		"title":          {"深度学习笔记"},
		"question_types": {"single_choice", "short_answer"},
		"max_questions":  {"5"},
	}
	resp := uploadRequest(t, srv.URL, fields, "notes.txt", "笔记正文")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		NoteID        int64 `json:"note_id"`
		QuestionCount int   `json:"question_count"`
	}
	decodeJSON(t, resp, &body)
	if body.NoteID == 0 {
		t.Error("expected a note_id")
	}
	if body.QuestionCount != 2 {
		t.Errorf("question_count = %d, want 2", body.QuestionCount)
	}

	if gen.noteText != "笔记正文" {
		t.Errorf("generator got note text %q", gen.noteText)
	}
	if len(gen.types) != 2 || gen.max != 5 {
		t.Errorf("generator got types %v max %d", gen.types, gen.max)
	}

	questions, err := s.QuestionsByKnowledge(model.QuestionQuery{NoteID: body.NoteID, Limit: 10})
	if err != nil {
		t.Fatalf("query questions: %v", err)
	}
	if len(questions) != 2 {
		t.Errorf("stored %d questions, want 2", len(questions))
	}
}

func TestUploadNoteMissingFile(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{}, stubScorer{})

	resp := uploadRequest(t, srv.URL, map[string][]string{"title": {"t"}}, "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadNoteGeneratorReturnsNothing(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{}, stubScorer{})

	resp := uploadRequest(t, srv.URL, nil, "notes.txt", "正文")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		QuestionCount int `json:"question_count"`
	}
	decodeJSON(t, resp, &body)
	if body.QuestionCount != 0 {
		t.Errorf("question_count = %d, want 0", body.QuestionCount)
	}
}

func TestListAndDeleteNotes(t *testing.T) {
	gen := &stubGenerator{drafts: []model.QuestionDraft{
		{KnowledgeTag: "tag", QType: model.QTypeShortAnswer, Content: "Q", Answer: "A"},
	}}
	srv, s := newTestServer(t, gen, stubScorer{})

	resp := uploadRequest(t, srv.URL, map[string][]string{"title": {"笔记"}}, "n.txt", "正文")
	var up struct {
		NoteID int64 `json:"note_id"`
	}
	decodeJSON(t, resp, &up)

	listResp, err := http.Get(srv.URL + "/api/notes")
	if err != nil {
		t.Fatalf("get notes: %v", err)
	}
	var list struct {
		Notes []model.Note `json:"notes"`
	}
	decodeJSON(t, listResp, &list)
	if len(list.Notes) != 1 || list.Notes[0].Title != "笔记" {
		t.Fatalf("unexpected notes: %+v", list.Notes)
	}

	delResp, err := http.Post(srv.URL+"/api/notes/"+strconv.FormatInt(up.NoteID, 10)+"/delete", "application/json", nil)
	if err != nil {
		t.Fatalf("delete note: %v", err)
	}
	var del struct {
		Status string `json:"status"`
	}
	decodeJSON(t, delResp, &del)
	if del.Status != "ok" {
		t.Errorf("status = %q, want ok", del.Status)
	}

	notes, err := s.ListNotes(50)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("expected no notes after delete, got %d", len(notes))
	}
}

func TestQuestionsByKnowledgeEndpoint(t *testing.T) {
	gen := &stubGenerator{drafts: []model.QuestionDraft{
		{KnowledgeTag: "反向传播", QType: model.QTypeSingleChoice, Content: "Q1", Answer: "A"},
		{KnowledgeTag: "梯度下降", QType: model.QTypeShortAnswer, Content: "Q2", Answer: "参考"},
	}}
	srv, _ := newTestServer(t, gen, stubScorer{})
	uploadRequest(t, srv.URL, nil, "n.txt", "正文").Body.Close()

	resp, err := http.Get(srv.URL + "/api/questions/by_knowledge?knowledge_tags=" + "%E5%8F%8D%E5%90%91%E4%BC%A0%E6%92%AD")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		Questions []model.Question `json:"questions"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Questions) != 1 || body.Questions[0].KnowledgeTag != "反向传播" {
		t.Fatalf("unexpected questions: %+v", body.Questions)
	}
}

func submitAnswer(t *testing.T, url string, questionID int64, answer string) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"question_id": questionID, "user_answer": answer})
	resp, err := http.Post(url+"/api/answers/submit", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post answer: %v", err)
	}
	return resp
}

type submitResponse struct {
	Status         string      `json:"status"`
	IsCorrect      bool        `json:"is_correct"`
	Score          int         `json:"score"`
	Comment        string      `json:"comment"`
	StandardAnswer string      `json:"standard_answer"`
	Analysis       string      `json:"analysis"`
	QType          model.QType `json:"q_type"`
}

func TestSubmitAnswer(t *testing.T) {
	gen := &stubGenerator{drafts: []model.QuestionDraft{
		{KnowledgeTag: "t", QType: model.QTypeSingleChoice, Content: "选择题",
			Options: []string{"A. 一", "B. 二", "C. 三"}, Answer: "C", Analysis: "解析"},
		{KnowledgeTag: "t", QType: model.QTypeShortAnswer, Content: "简答题", Answer: "参考答案"},
	}}
	srv, s := newTestServer(t, gen, stubScorer{score: 0.85, comment: "基本正确"})
	uploadRequest(t, srv.URL, nil, "n.txt", "正文").Body.Close()

	questions, err := s.QuestionsByKnowledge(model.QuestionQuery{Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	byType := map[model.QType]model.Question{}
	for _, q := range questions {
		byType[q.QType] = q
	}

	t.Run("single choice correct with option text", func(t *testing.T) {
		q := byType[model.QTypeSingleChoice]
		resp := submitAnswer(t, srv.URL, q.ID, "c. 三")
		var body submitResponse
		decodeJSON(t, resp, &body)
		if !body.IsCorrect || body.Score != 100 {
			t.Errorf("got is_correct=%v score=%d, want correct with 100", body.IsCorrect, body.Score)
		}
		if body.StandardAnswer != "C" || body.Analysis != "解析" || body.QType != model.QTypeSingleChoice {
			t.Errorf("unexpected echo fields: %+v", body)
		}
	})

	t.Run("single choice wrong", func(t *testing.T) {
		q := byType[model.QTypeSingleChoice]
		resp := submitAnswer(t, srv.URL, q.ID, "A")
		var body submitResponse
		decodeJSON(t, resp, &body)
		if body.IsCorrect || body.Score != 0 {
			t.Errorf("got is_correct=%v score=%d, want wrong with 0", body.IsCorrect, body.Score)
		}
	})

	t.Run("short answer scored", func(t *testing.T) {
		q := byType[model.QTypeShortAnswer]
		resp := submitAnswer(t, srv.URL, q.ID, "我的作答")
		var body submitResponse
		decodeJSON(t, resp, &body)
		if !body.IsCorrect || body.Score != 85 || body.Comment != "基本正确" {
			t.Errorf("unexpected grading: %+v", body)
		}
	})

	t.Run("missing question_id", func(t *testing.T) {
		resp := submitAnswer(t, srv.URL, 0, "x")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("unknown question", func(t *testing.T) {
		resp := submitAnswer(t, srv.URL, 99999, "x")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/answers/submit", "application/json", strings.NewReader("{"))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestWrongReviewAndStats(t *testing.T) {
	gen := &stubGenerator{drafts: []model.QuestionDraft{
		{KnowledgeTag: "t", QType: model.QTypeSingleChoice, Content: "Q1",
			Options: []string{"A. 一", "B. 二"}, Answer: "A"},
	}}
	srv, s := newTestServer(t, gen, stubScorer{})
	uploadRequest(t, srv.URL, nil, "n.txt", "正文").Body.Close()

	questions, err := s.QuestionsByKnowledge(model.QuestionQuery{Limit: 10})
	if err != nil || len(questions) != 1 {
		t.Fatalf("query: %v (%d questions)", err, len(questions))
	}
	qID := questions[0].ID

	submitAnswer(t, srv.URL, qID, "B").Body.Close() // wrong
	submitAnswer(t, srv.URL, qID, "A").Body.Close() // correct

	wrongResp, err := http.Get(srv.URL + "/api/review/wrong")
	if err != nil {
		t.Fatalf("get wrong: %v", err)
	}
	var wrong struct {
		Questions []model.Question `json:"questions"`
	}
	decodeJSON(t, wrongResp, &wrong)
	if len(wrong.Questions) != 1 || wrong.Questions[0].ID != qID {
		t.Errorf("unexpected wrong list: %+v", wrong.Questions)
	}

	statsResp, err := http.Get(srv.URL + "/api/stats/overview")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	var stats model.StatsOverview
	decodeJSON(t, statsResp, &stats)
	if stats.TotalAnswers != 2 || stats.CorrectAnswers != 1 {
		t.Errorf("stats = %+v, want 2 total 1 correct", stats)
	}
	if stats.Accuracy != 0.5 {
		t.Errorf("accuracy = %v, want 0.5", stats.Accuracy)
	}
}

