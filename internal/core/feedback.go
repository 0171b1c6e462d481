package core

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"virtual-clinic/internal/kb"
	"virtual-clinic/internal/llm"
	"virtual-clinic/pkg"
)

const feedbackTemperature = 0.4

// FeedbackSink persists generated feedback and the later evaluation.
type FeedbackSink interface {
	SaveFeedback(ctx context.Context, rec *pkg.FeedbackRecord) (int64, error)
	SaveEvaluation(ctx context.Context, feedbackID int64, eval *pkg.Evaluation) error
}

// FeedbackNotifier announces a freshly persisted feedback row, e.g. to
// the admin live stream. May be nil.
type FeedbackNotifier interface {
	FeedbackSaved(ctx context.Context, id int64) error
}

// FeedbackService grades a concluded encounter and persists the result.
// In Amboss_ChatGPT mode the grading prompt is augmented with a
// summarized knowledge-base payload.
type FeedbackService struct {
	LLM       llm.Client
	KB        *kb.Client
	Summarize *kb.Summarizer
	Sink      FeedbackSink
	Notifier  FeedbackNotifier
	Fixations FixationSource
	Offline   bool
	Logger    *zap.Logger

	// ModeOverride forces a feedback mode for all sessions, set via the
	// admin surface. Empty means no override.
	ModeOverride string
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(client llm.Client, kbClient *kb.Client, sink FeedbackSink, notifier FeedbackNotifier, fixations FixationSource, offline bool, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{
		LLM:       client,
		KB:        kbClient,
		Summarize: kb.NewSummarizer(client),
		Sink:      sink,
		Notifier:  notifier,
		Fixations: fixations,
		Offline:   offline,
		Logger:    logger,
	}
}

func validMode(m string) bool {
	return m == pkg.ModeChatGPT || m == pkg.ModeAmbossChatGPT
}

// resolveMode picks the feedback mode. Priority: admin override, then a
// persisted fixation, then the mode already sticky on the session, then
// a random draw. The result sticks to the session.
func (s *FeedbackService) resolveMode(ctx context.Context, enc *Encounter) string {
	if validMode(s.ModeOverride) {
		enc.setMode(s.ModeOverride)
		return s.ModeOverride
	}
	if s.Fixations != nil {
		fixed, ok, err := s.Fixations.Fixation(ctx, pkg.FixFeedbackMode)
		if err == nil && ok && validMode(fixed) {
			enc.setMode(fixed)
			return fixed
		}
	}
	if mode := enc.Mode(); validMode(mode) {
		return mode
	}
	mode := pkg.ModeChatGPT
	if rand.Intn(2) == 1 {
		mode = pkg.ModeAmbossChatGPT
	}
	enc.setMode(mode)
	return mode
}

// kbContext fetches and condenses knowledge-base material for the
// scenario. Everything here is best effort: a failed fetch or summary
// degrades to whatever is available, never to an error.
func (s *FeedbackService) kbContext(ctx context.Context, enc *Encounter) string {
	if !s.KB.Enabled() {
		return "Keine Wissensdatenbank-Daten in der Sitzung gefunden."
	}
	payload := enc.KBPayload()
	if payload == nil {
		fetched, err := s.KB.SearchArticleSections(ctx, enc.Case.Scenario)
		if err != nil {
			s.Logger.Warn("knowledge base search failed", zap.Error(err))
			return "Keine Wissensdatenbank-Daten in der Sitzung gefunden."
		}
		enc.StoreKBPayload(fetched)
		payload = fetched
	}

	digest := kb.Digest(payload, enc.Case.Scenario, enc.Persona.Age)
	if summary, ok := enc.CachedKBSummary(digest); ok {
		return summary
	}

	summary, usage, err := s.Summarize.Summarize(ctx, payload, enc.Case.Scenario, enc.Persona.Age)
	if err != nil {
		s.Logger.Warn("knowledge base summary failed, using raw payload", zap.Error(err))
		return string(payload)
	}
	enc.AddUsage(usage)
	enc.StoreKBSummary(summary, digest)
	return summary
}

// Generate produces the grading feedback for a concluded encounter and
// persists the full record. Repeated calls return the stored feedback.
func (s *FeedbackService) Generate(ctx context.Context, enc *Encounter) (string, error) {
	if !enc.Concluded() {
		return "", ErrNotConcluded
	}

	// One grading run per encounter at a time. A concurrent request
	// blocks here and then picks up the stored text instead of calling
	// the model and persisting a second row.
	enc.feedbackOp.Lock()
	defer enc.feedbackOp.Unlock()

	if fb := enc.Feedback(); fb != "" {
		return fb, nil
	}

	if s.Offline {
		fb := OfflineFeedback(enc.Case.Scenario)
		enc.setMode(pkg.ModeChatGPT)
		enc.setFeedback(fb)
		return fb, nil
	}

	mode := s.resolveMode(ctx, enc)
	diagnosis, therapy := enc.Conclusion()

	in := FeedbackInput{
		Gender:          enc.Persona.Gender,
		Scenario:        enc.Case.Scenario,
		StudentDialogue: enc.StudentDialogue(),
		PhysicalReport:  enc.Report(),
		Findings:        enc.CumulativeFindings(),
		Differentials:   enc.Assessment(),
		Diagnostics:     enc.CumulativeDiagnostics(),
		FinalDiagnosis:  diagnosis,
		Therapy:         therapy,
		Rounds:          enc.RoundCount(),
	}
	if mode == pkg.ModeAmbossChatGPT {
		in.KBContext = s.kbContext(ctx, enc)
	}

	resp, err := s.LLM.Chat(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: BuildFeedbackPrompt(in)}},
		Temperature: feedbackTemperature,
	})
	if err != nil {
		s.Logger.Warn("feedback generation failed", zap.Error(err))
		return "", err
	}
	enc.AddUsage(resp.Usage)
	enc.setFeedback(resp.Content)

	if err := s.persist(ctx, enc); err != nil {
		// The student keeps the feedback even when persistence fails.
		s.Logger.Error("persisting feedback failed", zap.Error(err))
	}
	return resp.Content, nil
}

func (s *FeedbackService) persist(ctx context.Context, enc *Encounter) error {
	if s.Sink == nil {
		return nil
	}
	now := time.Now()
	sums := enc.TokenSums()
	diagnosis, therapy := enc.Conclusion()
	rec := &pkg.FeedbackRecord{
		CreatedAt:        now,
		DurationMinutes:  enc.DurationMinutes(now),
		Scenario:         enc.Case.Scenario,
		PatientName:      enc.Persona.Name,
		PatientAge:       enc.Persona.Age,
		PatientJob:       enc.Persona.Job,
		Behavior:         enc.Persona.Behavior,
		Differentials:    enc.Assessment(),
		Diagnostics:      enc.CumulativeDiagnostics(),
		FinalDiagnosis:   diagnosis,
		Therapy:          therapy,
		Feedback:         enc.Feedback(),
		Transcript:       enc.TranscriptText(),
		Findings:         enc.CumulativeFindings(),
		PromptTokens:     sums.Prompt,
		CompletionTokens: sums.Completion,
		TotalTokens:      sums.Total,
		Mode:             enc.Mode(),
	}
	id, err := s.Sink.SaveFeedback(ctx, rec)
	if err != nil {
		return err
	}
	enc.setFeedbackRow(id)
	if s.Notifier != nil {
		if nerr := s.Notifier.FeedbackSaved(ctx, id); nerr != nil {
			s.Logger.Warn("feedback notification failed", zap.Error(nerr))
		}
	}
	return nil
}

// SubmitEvaluation attaches the student's rating to the persisted
// feedback row. The matriculation number must already be encrypted by
// the caller.
func (s *FeedbackService) SubmitEvaluation(ctx context.Context, enc *Encounter, eval pkg.Evaluation) error {
	if s.Offline {
		return ErrOffline
	}

	enc.feedbackOp.Lock()
	defer enc.feedbackOp.Unlock()

	if strings.TrimSpace(enc.Feedback()) == "" {
		return ErrNoFeedback
	}
	if enc.EvaluationSubmitted() {
		return ErrEvaluationDone
	}
	if enc.FeedbackRow() == 0 {
		// Feedback exists in the session but was never persisted.
		if err := s.persist(ctx, enc); err != nil {
			return err
		}
	}
	if err := s.Sink.SaveEvaluation(ctx, enc.FeedbackRow(), &eval); err != nil {
		return err
	}
	enc.markEvaluated()
	return nil
}
