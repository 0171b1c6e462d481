package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"virtual-clinic/internal/llm"
	"virtual-clinic/pkg"
)

// Stage gating errors returned by the encounter services.
var (
	// ErrNoQuestions: the exam needs at least one anamnestic question first.
	ErrNoQuestions = errors.New("at least one anamnestic question is required before the examination")
	// ErrExamPending: differentials require a completed physical exam.
	ErrExamPending = errors.New("physical examination has not been performed yet")
	// ErrAssessmentPending: later stages require round-1 findings.
	ErrAssessmentPending = errors.New("differentials and diagnostic plan have not been submitted yet")
	// ErrAssessmentDone: round 1 can only be submitted once.
	ErrAssessmentDone = errors.New("differentials and diagnostic plan were already submitted")
	// ErrConcluded: no further diagnostics after the final diagnosis.
	ErrConcluded = errors.New("encounter already has a final diagnosis")
	// ErrNotConcluded: feedback requires diagnosis and therapy.
	ErrNotConcluded = errors.New("final diagnosis and therapy have not been submitted yet")
	// ErrNoFeedback: evaluation and download require generated feedback.
	ErrNoFeedback = errors.New("feedback has not been generated yet")
	// ErrEvaluationDone: the evaluation may be submitted only once.
	ErrEvaluationDone = errors.New("evaluation was already submitted")
	// ErrEmptyInput: student input must not be blank.
	ErrEmptyInput = errors.New("input must not be empty")
	// ErrRoundNotRequested: rounds beyond the first need an explicit request.
	ErrRoundNotRequested = errors.New("no further diagnostics round was requested")
	// ErrOffline: the operation needs a live backend.
	ErrOffline = errors.New("not available in offline mode")
)

// Encounter is the per-session aggregate for one simulated consultation.
// It collects everything the wizard produces: the case, the randomized
// persona, the chat transcript, the examination report, the diagnostic
// rounds and the final feedback. All exported methods are safe for
// concurrent use.
type Encounter struct {
	mu sync.Mutex

	// feedbackOp serializes feedback generation and evaluation, which
	// span a model call and a database write. mu alone cannot cover
	// them without holding it across network I/O.
	feedbackOp sync.Mutex

	ID        string
	CreatedAt time.Time

	Case    pkg.Case
	Persona pkg.Persona

	// BehaviorInstruction is the full text behind Persona.Behavior.
	BehaviorInstruction string
	SystemPrompt        string

	// Messages holds the chat history including the leading system
	// prompt and the scripted entry lines.
	Messages []llm.Message

	physicalReport string
	differentials  string
	rounds         []pkg.DiagnosticRound
	roundRequested bool

	finalDiagnosis string
	therapy        string

	feedbackMode  string
	feedback      string
	feedbackRowID int64

	evaluationDone bool

	Usage pkg.TokenUsage

	// Knowledge-base payload and its digest-cached summary.
	kbPayload json.RawMessage
	kbSummary string
	kbDigest  string
}

// Snapshot is a point-in-time view of the encounter state, taken under
// one lock so renderers never see a half-updated aggregate.
type Snapshot struct {
	Messages       []llm.Message
	Questions      int
	PhysicalReport string
	Differentials  string
	Rounds         []pkg.DiagnosticRound
	RoundArmed     bool
	FinalDiagnosis string
	Therapy        string
	Feedback       string
	FeedbackMode   string
	EvaluationDone bool
	Concluded      bool
}

// Snapshot returns a consistent copy of the mutable state.
func (e *Encounter) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	messages := make([]llm.Message, len(e.Messages))
	copy(messages, e.Messages)
	rounds := make([]pkg.DiagnosticRound, len(e.rounds))
	copy(rounds, e.rounds)

	questions := 0
	for _, m := range e.Messages {
		if m.Role == "user" {
			questions++
		}
	}

	return Snapshot{
		Messages:       messages,
		Questions:      questions,
		PhysicalReport: e.physicalReport,
		Differentials:  e.differentials,
		Rounds:         rounds,
		RoundArmed:     e.roundRequested,
		FinalDiagnosis: e.finalDiagnosis,
		Therapy:        e.therapy,
		Feedback:       e.feedback,
		FeedbackMode:   e.feedbackMode,
		EvaluationDone: e.evaluationDone,
		Concluded:      e.finalDiagnosis != "" && e.therapy != "",
	}
}

// AddUsage accumulates token consumption onto the session sums.
func (e *Encounter) AddUsage(u llm.Usage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Usage.Prompt += u.PromptTokens
	e.Usage.Completion += u.CompletionTokens
	e.Usage.Total += u.TotalTokens
}

// TokenSums returns the accumulated token usage.
func (e *Encounter) TokenSums() pkg.TokenUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Usage
}

// History returns a copy of the chat history.
func (e *Encounter) History() []llm.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]llm.Message, len(e.Messages))
	copy(out, e.Messages)
	return out
}

// AppendStudent records a student question.
func (e *Encounter) AppendStudent(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Messages = append(e.Messages, llm.Message{Role: "user", Content: content})
}

// AppendPatient records a patient reply.
func (e *Encounter) AppendPatient(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Messages = append(e.Messages, llm.Message{Role: "assistant", Content: content})
}

// QuestionCount counts the student questions asked so far.
func (e *Encounter) QuestionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.Messages {
		if m.Role == "user" {
			n++
		}
	}
	return n
}

// RoundCount returns the number of completed diagnostic rounds.
func (e *Encounter) RoundCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rounds)
}

// RequestRound arms the next diagnostics round. It fails once a final
// diagnosis exists or before round 1 was completed.
func (e *Encounter) RequestRound() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if strings.TrimSpace(e.finalDiagnosis) != "" {
		return ErrConcluded
	}
	if len(e.rounds) == 0 {
		return ErrAssessmentPending
	}
	e.roundRequested = true
	return nil
}

// RoundArmed reports whether a further diagnostics round was requested
// and not yet completed.
func (e *Encounter) RoundArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roundRequested
}

// appendRound stores a completed round and disarms the round request.
func (e *Encounter) appendRound(requested, findings string) pkg.DiagnosticRound {
	e.mu.Lock()
	defer e.mu.Unlock()
	round := pkg.DiagnosticRound{
		Round:     len(e.rounds) + 1,
		Requested: requested,
		Findings:  findings,
	}
	e.rounds = append(e.rounds, round)
	e.roundRequested = false
	return round
}

// Report returns the physical examination report, empty until the exam
// was performed.
func (e *Encounter) Report() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.physicalReport
}

func (e *Encounter) setReport(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.physicalReport = text
}

// supplementReport appends a focused follow-up block to the report.
func (e *Encounter) supplementReport(request, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.physicalReport = strings.TrimSpace(e.physicalReport) +
		"\n\n**Gezielte Untersuchung (" + strings.TrimSpace(request) + "):**\n" + strings.TrimSpace(text)
}

// Assessment returns the submitted differential diagnoses.
func (e *Encounter) Assessment() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.differentials
}

func (e *Encounter) setAssessment(differentials string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.differentials = differentials
}

// SetConclusion records the final diagnosis and therapy. It requires a
// completed first diagnostics round and may run only once.
func (e *Encounter) SetConclusion(diagnosis, therapy string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if strings.TrimSpace(diagnosis) == "" || strings.TrimSpace(therapy) == "" {
		return ErrEmptyInput
	}
	if len(e.rounds) == 0 {
		return ErrAssessmentPending
	}
	if strings.TrimSpace(e.finalDiagnosis) != "" {
		return ErrConcluded
	}
	e.finalDiagnosis = strings.TrimSpace(diagnosis)
	e.therapy = strings.TrimSpace(therapy)
	e.roundRequested = false
	return nil
}

// Conclusion returns the final diagnosis and therapy, both empty until
// SetConclusion ran.
func (e *Encounter) Conclusion() (diagnosis, therapy string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalDiagnosis, e.therapy
}

// CumulativeDiagnostics renders all diagnostic requests as one
// "### Termin i" block per round, separated by horizontal rules.
func (e *Encounter) CumulativeDiagnostics() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cumulative(e.rounds, func(r pkg.DiagnosticRound) string { return r.Requested })
}

// CumulativeFindings renders all generated findings the same way.
func (e *Encounter) CumulativeFindings() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cumulative(e.rounds, func(r pkg.DiagnosticRound) string { return r.Findings })
}

func cumulative(rounds []pkg.DiagnosticRound, pick func(pkg.DiagnosticRound) string) string {
	var b strings.Builder
	for _, r := range rounds {
		text := strings.TrimSpace(pick(r))
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n---\n### Termin %d\n%s\n", r.Round, text)
	}
	return strings.TrimSpace(b.String())
}

// StoreKBPayload keeps the raw knowledge-base search result.
func (e *Encounter) StoreKBPayload(payload json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kbPayload = payload
}

// KBPayload returns the stored knowledge-base search result, nil when
// nothing was fetched yet.
func (e *Encounter) KBPayload() json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kbPayload
}

// StoreKBSummary caches a summary under the digest of its inputs.
func (e *Encounter) StoreKBSummary(summary, digest string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kbSummary = summary
	e.kbDigest = digest
}

// CachedKBSummary returns the stored summary when it was produced for
// exactly this digest.
func (e *Encounter) CachedKBSummary(digest string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kbDigest == digest && e.kbSummary != "" {
		return e.kbSummary, true
	}
	return "", false
}

// Feedback returns the stored grading text, empty until generated.
func (e *Encounter) Feedback() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feedback
}

func (e *Encounter) setFeedback(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feedback = text
}

// Mode returns the feedback mode sticky on this session, empty until
// resolved.
func (e *Encounter) Mode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feedbackMode
}

func (e *Encounter) setMode(mode string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feedbackMode = mode
}

// FeedbackRow returns the database ID of the persisted feedback, zero
// while unpersisted.
func (e *Encounter) FeedbackRow() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feedbackRowID
}

func (e *Encounter) setFeedbackRow(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feedbackRowID = id
}

// EvaluationSubmitted reports whether the student rating was stored.
func (e *Encounter) EvaluationSubmitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluationDone
}

func (e *Encounter) markEvaluated() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluationDone = true
}

// StudentDialogue returns only the student's questions, newline-joined,
// as required by the grading prompt.
func (e *Encounter) StudentDialogue() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var lines []string
	for _, m := range e.Messages {
		if m.Role == "user" {
			lines = append(lines, m.Content)
		}
	}
	return strings.Join(lines, "\n")
}

// TranscriptText renders the visible dialogue (system prompt excluded)
// with "Du:" for the student and the patient name for replies.
func (e *Encounter) TranscriptText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var b strings.Builder
	for _, m := range e.Messages {
		switch m.Role {
		case "user":
			fmt.Fprintf(&b, "Du: %s\n", m.Content)
		case "assistant":
			fmt.Fprintf(&b, "%s: %s\n", e.Persona.Name, m.Content)
		}
	}
	return b.String()
}

// DurationMinutes returns the elapsed session time, rounded to one
// decimal, for the persisted feedback record.
func (e *Encounter) DurationMinutes(now time.Time) float64 {
	minutes := now.Sub(e.CreatedAt).Minutes()
	return float64(int(minutes*10+0.5)) / 10
}

// Concluded reports whether diagnosis and therapy were submitted.
func (e *Encounter) Concluded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.TrimSpace(e.finalDiagnosis) != "" && strings.TrimSpace(e.therapy) != ""
}
