package http

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"virtual-clinic/internal/core"
	"virtual-clinic/pkg"
)

// routeAdmin dispatches /admin and /api/admin/* after checking the
// bearer token. An unset ADMIN_TOKEN disables the whole surface.
func (s *Server) routeAdmin(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/admin" && r.Method == http.MethodGet:
		s.handleAdminPage(w, r)
	case path == "/api/admin/status" && r.Method == http.MethodGet:
		s.handleAdminStatus(w, r)
	case path == "/api/admin/fixations" && r.Method == http.MethodGet:
		s.handleListFixations(w, r)
	case strings.HasPrefix(path, "/api/admin/fixations/"):
		name := strings.TrimPrefix(path, "/api/admin/fixations/")
		switch r.Method {
		case http.MethodPut:
			s.handleSetFixation(w, r, name)
		case http.MethodDelete:
			s.handleClearFixation(w, r, name)
		default:
			http.NotFound(w, r)
		}
	case path == "/api/admin/cases" && r.Method == http.MethodGet:
		s.handleListCases(w, r)
	case path == "/api/admin/cases" && r.Method == http.MethodPost:
		s.handleAddCase(w, r)
	case strings.HasPrefix(path, "/api/admin/cases/") && r.Method == http.MethodDelete:
		s.handleDeleteCase(w, r, strings.TrimPrefix(path, "/api/admin/cases/"))
	case path == "/api/admin/mode" && r.Method == http.MethodPost:
		s.handleSetMode(w, r)
	case path == "/api/admin/export" && r.Method == http.MethodGet:
		s.handleExport(w, r)
	case path == "/api/admin/feedback/stream" && r.Method == http.MethodGet:
		s.handleFeedbackStream(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.AdminToken == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		// The HTML page cannot set headers; accept the token as a query
		// parameter there.
		token = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminToken)) == 1
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	if err := s.Templates.ExecuteTemplate(w, "admin.html", map[string]string{
		"Token": r.URL.Query().Get("token"),
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cases, err := s.Repo.ListCases(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	feedbackCount, err := s.Repo.CountFeedback(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	fixations, err := s.Fixations.List(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cases":          len(cases),
		"feedback_rows":  feedbackCount,
		"fixations":      fixations,
		"mode_override":  s.Feedback.ModeOverride,
		"offline":        s.Offline,
		"sessions_live":  s.Sessions.Len(),
		"behavior_keys":  core.BehaviorKeys(),
		"feedback_modes": []string{pkg.ModeChatGPT, pkg.ModeAmbossChatGPT},
	})
}

func (s *Server) handleListFixations(w http.ResponseWriter, r *http.Request) {
	fixations, err := s.Fixations.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if fixations == nil {
		fixations = []pkg.Fixation{}
	}
	s.writeJSON(w, http.StatusOK, fixations)
}

func validFixation(name, value string) error {
	switch name {
	case pkg.FixScenario:
		return nil
	case pkg.FixBehavior:
		if _, ok := core.BehaviorInstructions[value]; !ok {
			return fmt.Errorf("unknown behavior %q", value)
		}
		return nil
	case pkg.FixFeedbackMode:
		if value != pkg.ModeChatGPT && value != pkg.ModeAmbossChatGPT {
			return fmt.Errorf("unknown feedback mode %q", value)
		}
		return nil
	default:
		return fmt.Errorf("unknown fixation %q", name)
	}
}

func (s *Server) handleSetFixation(w http.ResponseWriter, r *http.Request, name string) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.Value = strings.TrimSpace(req.Value)
	if req.Value == "" {
		http.Error(w, "value must not be empty", http.StatusBadRequest)
		return
	}
	if err := validFixation(name, req.Value); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if name == pkg.FixScenario {
		if _, err := s.Repo.CaseByScenario(r.Context(), req.Value); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if err := s.Fixations.Set(r.Context(), name, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("fixation set", zap.String("name", name), zap.String("value", req.Value))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearFixation(w http.ResponseWriter, r *http.Request, name string) {
	if err := s.Fixations.ClearFixation(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.Repo.ListCases(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if cases == nil {
		cases = []pkg.Case{}
	}
	s.writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleAddCase(w http.ResponseWriter, r *http.Request) {
	var c pkg.Case
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	switch c.Gender {
	case "m", "w", "n":
	default:
		http.Error(w, `gender must be "m", "w" or "n"`, http.StatusBadRequest)
		return
	}
	if err := s.Repo.AddCase(r.Context(), &c); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("case added", zap.String("scenario", c.Scenario))
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request, scenario string) {
	if err := s.Repo.DeleteCase(r.Context(), scenario); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetMode sets or clears the global feedback mode override.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	switch req.Mode {
	case "", pkg.ModeChatGPT, pkg.ModeAmbossChatGPT:
	default:
		http.Error(w, "unknown feedback mode", http.StatusBadRequest)
		return
	}
	s.Feedback.ModeOverride = req.Mode
	s.Logger.Info("feedback mode override changed", zap.String("mode", req.Mode))
	w.WriteHeader(http.StatusNoContent)
}

// handleExport returns all feedback rows with evaluations, matriculation
// numbers decrypted when a key is configured.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Repo.Export(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	for i := range rows {
		rows[i].Evaluation.Matriculation = s.Vault.Decrypt(rows[i].Evaluation.Matriculation)
	}
	if rows == nil {
		rows = []pkg.ExportRow{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// handleFeedbackStream streams IDs of newly persisted feedback rows as
// SSE events until the client disconnects.
func (s *Server) handleFeedbackStream(w http.ResponseWriter, r *http.Request) {
	if s.Stream == nil {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ids, err := s.Stream.Listen(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, "event: ready\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case id, ok := <-ids:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: feedback\ndata: {\"id\": %d}\n\n", id)
			flusher.Flush()
		}
	}
}
