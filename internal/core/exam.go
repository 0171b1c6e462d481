package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"virtual-clinic/internal/llm"
)

const (
	examTemperature        = 0.5
	specialExamTemperature = 0.4
)

// ExamService generates the physical examination report and focused
// follow-up examinations.
type ExamService struct {
	LLM     llm.Client
	Offline bool
	Logger  *zap.Logger
}

// NewExamService constructs an ExamService.
func NewExamService(client llm.Client, offline bool, logger *zap.Logger) *ExamService {
	return &ExamService{LLM: client, Offline: offline, Logger: logger}
}

// Perform generates the structured examination report. It requires at
// least one anamnestic question and runs exactly once per encounter;
// repeated calls return the stored report.
func (s *ExamService) Perform(ctx context.Context, enc *Encounter) (string, error) {
	if existing := enc.Report(); existing != "" {
		return existing, nil
	}
	if enc.QuestionCount() == 0 {
		return "", ErrNoQuestions
	}

	if s.Offline {
		report := OfflineExamReport()
		enc.setReport(report)
		return report, nil
	}

	prompt := BuildExamPrompt(enc.Persona.Gender, enc.Case.Scenario, enc.Case.Description, enc.Case.ExamHint)
	resp, err := s.LLM.Chat(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: examTemperature,
	})
	if err != nil {
		s.Logger.Warn("exam report failed", zap.Error(err))
		return "", err
	}
	enc.AddUsage(resp.Usage)
	enc.setReport(resp.Content)
	return resp.Content, nil
}

// Focused generates a compact result for an explicitly requested
// follow-up examination and appends it to the stored report.
func (s *ExamService) Focused(ctx context.Context, enc *Encounter, request string) (string, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return "", ErrEmptyInput
	}
	report := enc.Report()
	if report == "" {
		return "", ErrExamPending
	}

	if s.Offline {
		supplement := OfflineExamSupplement(request)
		enc.supplementReport(request, supplement)
		return supplement, nil
	}

	prompt := BuildSpecialExamPrompt(enc.Persona.Gender, enc.Case.Scenario, enc.Case.Description, request, report)
	resp, err := s.LLM.Chat(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: specialExamTemperature,
	})
	if err != nil {
		s.Logger.Warn("focused exam failed", zap.Error(err))
		return "", err
	}
	enc.AddUsage(resp.Usage)
	enc.supplementReport(request, resp.Content)
	return resp.Content, nil
}
