package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"virtual-clinic/internal/llm"
	"virtual-clinic/pkg"
)

const (
	findingsTemperature      = 0.4
	languageCheckTemperature = 0.3
)

// FindingsService handles the diagnostics rounds: language normalization
// of the student input, the first assessment (differentials plus plan)
// and every further round of requested work-up.
type FindingsService struct {
	LLM     llm.Client
	Offline bool
	Logger  *zap.Logger
}

// NewFindingsService constructs a FindingsService.
func NewFindingsService(client llm.Client, offline bool, logger *zap.Logger) *FindingsService {
	return &FindingsService{LLM: client, Offline: offline, Logger: logger}
}

// normalize runs the language check over student input. Normalization is
// best effort: on any model error the raw input is used unchanged.
func (s *FindingsService) normalize(ctx context.Context, enc *Encounter, text string) string {
	if s.Offline {
		return text
	}
	resp, err := s.LLM.Chat(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: BuildLanguageCheckPrompt(text)}},
		Temperature: languageCheckTemperature,
	})
	if err != nil {
		s.Logger.Warn("language check failed, keeping raw input", zap.Error(err))
		return text
	}
	enc.AddUsage(resp.Usage)
	if strings.TrimSpace(resp.Content) == "" {
		return text
	}
	return resp.Content
}

// SubmitAssessment stores the normalized differential diagnoses and runs
// diagnostics round 1 for the submitted plan. It requires a completed
// physical exam and may run only once.
func (s *FindingsService) SubmitAssessment(ctx context.Context, enc *Encounter, differentials, plan string) (pkg.DiagnosticRound, error) {
	differentials = strings.TrimSpace(differentials)
	plan = strings.TrimSpace(plan)
	if differentials == "" || plan == "" {
		return pkg.DiagnosticRound{}, ErrEmptyInput
	}
	if enc.Report() == "" {
		return pkg.DiagnosticRound{}, ErrExamPending
	}
	if enc.Assessment() != "" {
		return pkg.DiagnosticRound{}, ErrAssessmentDone
	}

	enc.setAssessment(s.normalize(ctx, enc, differentials))
	requested := s.normalize(ctx, enc, plan)

	findings, err := s.generate(ctx, enc, requested)
	if err != nil {
		// Roll back so the submission can be retried cleanly.
		enc.setAssessment("")
		return pkg.DiagnosticRound{}, err
	}
	return enc.appendRound(requested, findings), nil
}

// SubmitRound runs a further diagnostics round. The round must have been
// requested explicitly via Encounter.RequestRound beforehand.
func (s *FindingsService) SubmitRound(ctx context.Context, enc *Encounter, plan string) (pkg.DiagnosticRound, error) {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		return pkg.DiagnosticRound{}, ErrEmptyInput
	}
	if enc.Concluded() {
		return pkg.DiagnosticRound{}, ErrConcluded
	}
	if enc.RoundCount() == 0 {
		return pkg.DiagnosticRound{}, ErrAssessmentPending
	}
	if !enc.RoundArmed() {
		return pkg.DiagnosticRound{}, ErrRoundNotRequested
	}

	requested := s.normalize(ctx, enc, plan)
	findings, err := s.generate(ctx, enc, requested)
	if err != nil {
		return pkg.DiagnosticRound{}, err
	}
	return enc.appendRound(requested, findings), nil
}

// Conclude normalizes and stores the final diagnosis and therapy.
func (s *FindingsService) Conclude(ctx context.Context, enc *Encounter, diagnosis, therapy string) error {
	diagnosis = strings.TrimSpace(diagnosis)
	therapy = strings.TrimSpace(therapy)
	if diagnosis == "" || therapy == "" {
		return ErrEmptyInput
	}
	diagnosis = s.normalize(ctx, enc, diagnosis)
	therapy = s.normalize(ctx, enc, therapy)
	return enc.SetConclusion(diagnosis, therapy)
}

func (s *FindingsService) generate(ctx context.Context, enc *Encounter, requested string) (string, error) {
	if s.Offline {
		return OfflineFindings(requested), nil
	}
	prompt := BuildFindingsPrompt(enc.Persona.Gender, enc.Case.Scenario, requested)
	resp, err := s.LLM.Chat(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: findingsTemperature,
	})
	if err != nil {
		s.Logger.Warn("findings generation failed", zap.Error(err))
		return "", err
	}
	enc.AddUsage(resp.Usage)
	return resp.Content, nil
}
