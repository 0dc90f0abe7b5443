// Package handler implements the JSON API for note upload, question
// practice, and review.
package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liutao/notequiz/internal/extract"
	"github.com/liutao/notequiz/internal/grader"
	"github.com/liutao/notequiz/internal/i18n"
	"github.com/liutao/notequiz/internal/model"
	"github.com/liutao/notequiz/internal/store"
)

// Generator produces question drafts from note text.
type Generator interface {
	GenerateQuestions(ctx context.Context, noteText string, types []model.QType, maxQuestions int) []model.QuestionDraft
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	generator Generator
	grader    *grader.Grader
	config    model.AppConfig
}

// New creates a new Handler.
func New(s *store.Store, gen Generator, g *grader.Grader, cfg model.AppConfig) *Handler {
	return &Handler{store: s, generator: gen, grader: g, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/notes/upload", h.handleUploadNote)
	r.Get("/api/notes", h.handleListNotes)
	r.Post("/api/notes/{noteID}/delete", h.handleDeleteNote)
	r.Get("/api/questions/by_knowledge", h.handleQuestionsByKnowledge)
	r.Post("/api/answers/submit", h.handleSubmitAnswer)
	r.Get("/api/review/wrong", h.handleWrongQuestions)
	r.Get("/api/stats/overview", h.handleStatsOverview)
}

func (h *Handler) handleUploadNote(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, i18n.T(r.Context(), "api.no_file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	path, err := h.saveUpload(header.Filename, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text, err := extract.Text(path, data)
	if err != nil {
		slog.Warn("text extraction failed, using raw bytes", "file", header.Filename, "error", err)
		text = string(data)
	}

	noteID, err := h.store.InsertNote(title, path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var types []model.QType
	for _, t := range r.Form["question_types"] {
		qt := model.QType(t)
		if qt.Valid() {
			types = append(types, qt)
		}
	}
	maxQuestions, _ := strconv.Atoi(r.FormValue("max_questions"))

	drafts := h.generator.GenerateQuestions(r.Context(), text, types, maxQuestions)
	if _, err := h.store.InsertQuestionBatch(noteID, drafts); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"note_id":        noteID,
		"question_count": len(drafts),
	})
}

// saveUpload writes the uploaded bytes under the upload dir using a
// timestamped name so repeated uploads of the same file never collide.
func (h *Handler) saveUpload(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(h.config.UploadDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(filename))
	path := filepath.Join(h.config.UploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (h *Handler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.ListNotes(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (h *Handler) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, i18n.T(r.Context(), "api.invalid_note_id"))
		return
	}
	if err := h.store.DeleteNote(noteID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleQuestionsByKnowledge(w http.ResponseWriter, r *http.Request) {
	q := model.QuestionQuery{
		Limit: h.config.DefaultLimit,
		Scope: r.URL.Query().Get("scope"),
		QType: model.QType(r.URL.Query().Get("q_type")),
	}
	if tags := r.URL.Query().Get("knowledge_tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				q.Tags = append(q.Tags, tag)
			}
		}
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		q.Limit = limit
	}
	if noteID, err := strconv.ParseInt(r.URL.Query().Get("note_id"), 10, 64); err == nil && noteID > 0 {
		q.NoteID = noteID
	}

	questions, err := h.store.QuestionsByKnowledge(q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

type submitRequest struct {
	QuestionID int64  `json:"question_id"`
	UserAnswer string `json:"user_answer"`
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, i18n.T(r.Context(), "api.invalid_body"))
		return
	}
	if req.QuestionID == 0 {
		writeError(w, http.StatusBadRequest, i18n.T(r.Context(), "api.question_id_required"))
		return
	}

	q, err := h.store.GetQuestion(req.QuestionID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "api.question_not_found"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res := h.grader.Grade(r.Context(), q, req.UserAnswer)

	if _, err := h.store.InsertAnswer(q.ID, req.UserAnswer, res.IsCorrect); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"is_correct":      res.IsCorrect,
		"score":           int(math.Round(res.Score * 100)),
		"comment":         res.Comment,
		"standard_answer": q.Answer,
		"analysis":        q.Analysis,
		"q_type":          q.QType,
	})
}

func (h *Handler) handleWrongQuestions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	questions, err := h.store.WrongQuestions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (h *Handler) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.StatsOverview()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
