// Package handler exposes the shuffling engine over a small JSON API, so an
// exam file can be shuffled without touching the local filesystem.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/wyllianbs/QuizRandomShuffle/internal/i18n"
	"github.com/wyllianbs/QuizRandomShuffle/internal/model"
	"github.com/wyllianbs/QuizRandomShuffle/internal/parser"
	"github.com/wyllianbs/QuizRandomShuffle/internal/shuffle"
	"github.com/wyllianbs/QuizRandomShuffle/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
}

// New creates a new Handler.
func New(s *store.Store) *Handler {
	return &Handler{store: s}
}

// Routes registers the API routes. The health probe is registered separately
// so it can stay outside any auth middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/runs", h.handleRuns)
	r.Post("/shuffle", h.handleShuffle)
}

// Health answers liveness probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ShuffleRequest is the POST /shuffle payload. Nil booleans default to true,
// matching the CLI flag defaults.
type ShuffleRequest struct {
	Document         string `json:"document"`
	Versions         int    `json:"versions"`
	SuffixStart      string `json:"suffix_start"`
	ShuffleQuestions *bool  `json:"shuffle_questions"`
	ShuffleAnswers   *bool  `json:"shuffle_answers"`
	MaxConsecutive   int    `json:"max_consecutive"`
	Seed             int64  `json:"seed"`
}

// VersionPayload is one generated version in a shuffle response.
type VersionPayload struct {
	Suffix              string `json:"suffix"`
	Document            string `json:"document"`
	Attempts            int    `json:"attempts"`
	ConstraintSatisfied bool   `json:"constraint_satisfied"`
	AnswerKey           string `json:"answer_key"`
}

// ShuffleResponse is the POST /shuffle result.
type ShuffleResponse struct {
	QuestionCount  int              `json:"question_count"`
	MultipleChoice int              `json:"multiple_choice"`
	TrueFalse      int              `json:"true_false"`
	Warnings       []string         `json:"warnings,omitempty"`
	Versions       []VersionPayload `json:"versions"`
}

func (h *Handler) handleRuns(w http.ResponseWriter, _ *http.Request) {
	export, err := h.store.ExportHistory()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleShuffle(w http.ResponseWriter, r *http.Request) {
	var req ShuffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Document == "" {
		http.Error(w, "document is required", http.StatusBadRequest)
		return
	}

	cfg := requestConfig(req)
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, warnings := parser.Parse(req.Document)
	versions, err := shuffle.GenerateVersions(doc, cfg, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mc, tf := doc.CountKinds()
	resp := ShuffleResponse{
		QuestionCount:  len(doc.Questions),
		MultipleChoice: mc,
		TrueFalse:      tf,
	}
	for _, warn := range warnings {
		resp.Warnings = append(resp.Warnings, appI18n.Td(r.Context(), "MalformedBlock",
			map[string]any{"Line": warn.Line, "ID": warn.ID}))
	}
	var records []model.VersionRecord
	for _, v := range versions {
		if !v.ConstraintSatisfied {
			resp.Warnings = append(resp.Warnings, appI18n.Td(r.Context(), "ConstraintUnsatisfied",
				map[string]any{"Attempts": v.AttemptsUsed}))
		}
		resp.Versions = append(resp.Versions, VersionPayload{
			Suffix:              v.Suffix,
			Document:            v.DocumentText,
			Attempts:            v.AttemptsUsed,
			ConstraintSatisfied: v.ConstraintSatisfied,
			AnswerKey:           v.Key(),
		})
		records = append(records, model.VersionRecord{
			Suffix:              v.Suffix,
			Attempts:            v.AttemptsUsed,
			ConstraintSatisfied: v.ConstraintSatisfied,
			AnswerKey:           v.Key(),
		})
	}

	if _, err := h.store.RecordRun(model.Run{
		Source:           "api",
		NumVersions:      cfg.NumVersions,
		ShuffleQuestions: cfg.ShuffleQuestions,
		ShuffleAnswers:   cfg.ShuffleAnswers,
		MaxConsecutive:   cfg.MaxConsecutive,
		Seed:             cfg.Seed,
		QuestionCount:    len(doc.Questions),
		MCCount:          mc,
		TFCount:          tf,
	}, records); err != nil {
		slog.Error("record run", "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

// requestConfig maps a request to a RunConfig with the same defaults the CLI
// flags use.
func requestConfig(req ShuffleRequest) model.RunConfig {
	cfg := model.RunConfig{
		NumVersions:      req.Versions,
		SuffixStart:      'A',
		ShuffleQuestions: true,
		ShuffleAnswers:   true,
		MaxConsecutive:   req.MaxConsecutive,
		MaxAttempts:      model.DefaultMaxAttempts,
		Seed:             req.Seed,
	}
	if cfg.NumVersions == 0 {
		cfg.NumVersions = 1
	}
	if cfg.MaxConsecutive == 0 {
		cfg.MaxConsecutive = 3
	}
	if req.SuffixStart != "" {
		cfg.SuffixStart = rune(req.SuffixStart[0])
	}
	if req.ShuffleQuestions != nil {
		cfg.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleAnswers != nil {
		cfg.ShuffleAnswers = *req.ShuffleAnswers
	}
	return cfg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
