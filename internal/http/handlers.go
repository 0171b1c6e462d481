// Package http implements the web surface: the student wizard API, the
// protocol download and the token-protected admin endpoints.
package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"virtual-clinic/internal/core"
	"virtual-clinic/internal/db"
	"virtual-clinic/internal/llm"
	"virtual-clinic/internal/session"
	"virtual-clinic/pkg"
)

//go:embed templates/*.html
var templateFS embed.FS

// Repository covers the database operations the HTTP layer performs
// directly. *db.Repository satisfies it.
type Repository interface {
	core.CaseSource
	ListCases(ctx context.Context) ([]pkg.Case, error)
	AddCase(ctx context.Context, c *pkg.Case) error
	DeleteCase(ctx context.Context, scenario string) error
	Export(ctx context.Context) ([]pkg.ExportRow, error)
	CountFeedback(ctx context.Context) (int, error)
}

// FixationAdmin manages persisted fixations. *db.FixationStore
// satisfies it.
type FixationAdmin interface {
	core.FixationSource
	Set(ctx context.Context, name, value string) error
	List(ctx context.Context) ([]pkg.Fixation, error)
}

// FeedbackStream yields freshly persisted feedback row IDs for the
// admin live stream. *db.Notifier satisfies it.
type FeedbackStream interface {
	Listen(ctx context.Context) (<-chan int64, error)
}

// Server bundles the dependencies of all HTTP handlers and implements
// http.Handler.
type Server struct {
	Sessions *session.Store
	Cases    *core.CaseService
	Chat     *core.ChatService
	Exam     *core.ExamService
	Findings *core.FindingsService
	Feedback *core.FeedbackService

	Repo      Repository
	Fixations FixationAdmin
	Stream    FeedbackStream
	Vault     *Vault

	AdminToken string
	Offline    bool

	Templates *template.Template
	Logger    *zap.Logger
}

// NewServer constructs a Server with the embedded HTML templates parsed.
func NewServer(deps Server) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	srv := deps
	srv.Templates = tmpl
	return &srv, nil
}

// ServeHTTP dispatches incoming requests based on the URL path. Routing
// stays hand-rolled to keep dependencies light.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/" && r.Method == http.MethodGet:
		s.handleIndex(w, r)
	case path == "/healthz" && r.Method == http.MethodGet:
		w.WriteHeader(http.StatusNoContent)
	case path == "/api/encounters" && r.Method == http.MethodPost:
		s.handleCreateEncounter(w, r)
	case strings.HasPrefix(path, "/api/encounters/"):
		s.routeEncounter(w, r, strings.TrimPrefix(path, "/api/encounters/"))
	case path == "/admin" || strings.HasPrefix(path, "/api/admin/"):
		s.routeAdmin(w, r)
	default:
		http.NotFound(w, r)
	}
}

// routeEncounter handles /api/encounters/{id}[/{action}...].
func (s *Server) routeEncounter(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	enc, err := s.Sessions.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	action := strings.Join(parts[1:], "/")
	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleEncounterState(w, r, enc)
	case action == "" && r.Method == http.MethodDelete:
		s.Sessions.Delete(enc.ID)
		w.WriteHeader(http.StatusNoContent)
	case action == "messages" && r.Method == http.MethodPost:
		s.handlePostMessage(w, r, enc)
	case action == "exam" && r.Method == http.MethodPost:
		s.handleExam(w, r, enc)
	case action == "exam/special" && r.Method == http.MethodPost:
		s.handleSpecialExam(w, r, enc)
	case action == "assessment" && r.Method == http.MethodPost:
		s.handleAssessment(w, r, enc)
	case action == "rounds/request" && r.Method == http.MethodPost:
		s.handleRoundRequest(w, r, enc)
	case action == "rounds" && r.Method == http.MethodPost:
		s.handleRound(w, r, enc)
	case action == "conclusion" && r.Method == http.MethodPost:
		s.handleConclusion(w, r, enc)
	case action == "feedback" && r.Method == http.MethodPost:
		s.handleFeedback(w, r, enc)
	case action == "evaluation" && r.Method == http.MethodPost:
		s.handleEvaluation(w, r, enc)
	case action == "protocol" && r.Method == http.MethodGet:
		s.handleProtocol(w, r, enc)
	case action == "restart" && r.Method == http.MethodPost:
		s.handleRestart(w, r, enc)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.Templates.ExecuteTemplate(w, "encounter.html", nil); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// encounterView is the state snapshot the frontend polls.
type encounterView struct {
	ID             string                `json:"encounter_id"`
	Persona        pkg.Persona           `json:"persona"`
	Messages       []visibleMessage      `json:"messages"`
	Questions      int                   `json:"questions"`
	ExamDone       bool                  `json:"exam_done"`
	PhysicalReport string                `json:"physical_report,omitempty"`
	Differentials  string                `json:"differentials,omitempty"`
	Rounds         []pkg.DiagnosticRound `json:"rounds"`
	RoundArmed     bool                  `json:"round_armed"`
	Concluded      bool                  `json:"concluded"`
	FinalDiagnosis string                `json:"final_diagnosis,omitempty"`
	Therapy        string                `json:"therapy,omitempty"`
	Feedback       string                `json:"feedback,omitempty"`
	EvaluationDone bool                  `json:"evaluation_done"`
	Offline        bool                  `json:"offline"`
}

type visibleMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) viewOf(enc *core.Encounter) encounterView {
	snap := enc.Snapshot()
	var visible []visibleMessage
	for _, m := range snap.Messages {
		if m.Role == "system" {
			continue
		}
		visible = append(visible, visibleMessage{Role: m.Role, Content: m.Content})
	}
	return encounterView{
		ID:             enc.ID,
		Persona:        enc.Persona,
		Messages:       visible,
		Questions:      snap.Questions,
		ExamDone:       snap.PhysicalReport != "",
		PhysicalReport: snap.PhysicalReport,
		Differentials:  snap.Differentials,
		Rounds:         snap.Rounds,
		RoundArmed:     snap.RoundArmed,
		Concluded:      snap.Concluded,
		FinalDiagnosis: snap.FinalDiagnosis,
		Therapy:        snap.Therapy,
		Feedback:       snap.Feedback,
		EvaluationDone: snap.EvaluationDone,
		Offline:        s.Offline,
	}
}

func (s *Server) handleCreateEncounter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scenario string `json:"scenario"`
	}
	// The body is optional; an empty body starts a random case.
	_ = json.NewDecoder(r.Body).Decode(&req)

	enc, err := s.Cases.Prepare(r.Context(), strings.TrimSpace(req.Scenario))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Sessions.Put(enc)
	s.writeJSON(w, http.StatusCreated, s.viewOf(enc))
}

func (s *Server) handleEncounterState(w http.ResponseWriter, _ *http.Request, enc *core.Encounter) {
	s.writeJSON(w, http.StatusOK, s.viewOf(enc))
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	reply, err := s.Chat.Ask(r.Context(), enc, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleExam(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	report, err := s.Exam.Perform(r.Context(), enc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"report": report})
}

func (s *Server) handleSpecialExam(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	var req struct {
		Request string `json:"request"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	supplement, err := s.Exam.Focused(r.Context(), enc, req.Request)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"supplement": supplement,
		"report":     enc.Report(),
	})
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	var req struct {
		Differentials string `json:"differentials"`
		Plan          string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	round, err := s.Findings.SubmitAssessment(r.Context(), enc, req.Differentials, req.Plan)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"differentials": enc.Assessment(),
		"round":         round,
	})
}

func (s *Server) handleRoundRequest(w http.ResponseWriter, _ *http.Request, enc *core.Encounter) {
	if err := enc.RequestRound(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	round, err := s.Findings.SubmitRound(r.Context(), enc, req.Plan)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"round": round})
}

func (s *Server) handleConclusion(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	var req struct {
		Diagnosis string `json:"diagnosis"`
		Therapy   string `json:"therapy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.Findings.Conclude(r.Context(), enc, req.Diagnosis, req.Therapy); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	feedback, err := s.Feedback.Generate(r.Context(), enc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"feedback": feedback,
		"mode":     enc.Mode(),
	})
}

func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	var eval pkg.Evaluation
	if err := json.NewDecoder(r.Body).Decode(&eval); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	for _, g := range []int{eval.GradeRealism, eval.GradeAnamnesis, eval.GradeFeedback, eval.GradeDidactic, eval.GradeDifficulty} {
		if g < 1 || g > 6 {
			http.Error(w, "grades must be between 1 and 6", http.StatusBadRequest)
			return
		}
	}
	if eval.Matriculation != "" {
		encrypted, err := s.Vault.Encrypt(eval.Matriculation)
		if err != nil {
			s.writeError(w, err)
			return
		}
		// Without an encryption key the number is dropped entirely.
		eval.Matriculation = encrypted
	}
	if err := s.Feedback.SubmitEvaluation(r.Context(), enc, eval); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProtocol(w http.ResponseWriter, _ *http.Request, enc *core.Encounter) {
	protocol, err := core.BuildProtocol(enc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+core.ProtocolFilename(enc)+`"`)
	_, _ = w.Write([]byte(protocol))
}

// handleRestart starts a new random case in the same session slot.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request, enc *core.Encounter) {
	fresh, err := s.Cases.Prepare(r.Context(), "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Sessions.Replace(enc.ID, fresh); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewOf(fresh))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("writing response failed", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var rateLimited *llm.ErrRateLimit
	var unavailable *llm.ErrProviderUnavailable
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, db.ErrCaseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrEmptyInput):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNoQuestions),
		errors.Is(err, core.ErrExamPending),
		errors.Is(err, core.ErrAssessmentPending),
		errors.Is(err, core.ErrAssessmentDone),
		errors.Is(err, core.ErrConcluded),
		errors.Is(err, core.ErrNotConcluded),
		errors.Is(err, core.ErrNoFeedback),
		errors.Is(err, core.ErrEvaluationDone),
		errors.Is(err, core.ErrRoundNotRequested):
		status = http.StatusConflict
	case errors.Is(err, core.ErrOffline):
		status = http.StatusServiceUnavailable
	case errors.As(err, &rateLimited):
		status = http.StatusTooManyRequests
	case errors.As(err, &unavailable):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
