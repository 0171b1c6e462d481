package pkg

import "time"

// Case is one row of the scenario table driving a simulated encounter.
// Gender is "m", "w" or "n"; "n" is resolved randomly when the case is
// loaded into a session.
type Case struct {
	ID          int64     `json:"id"`
	Scenario    string    `json:"scenario"`
	Description string    `json:"description"`
	ExamHint    string    `json:"exam_hint"`
	BaseAge     *int      `json:"base_age,omitempty"`
	Gender      string    `json:"gender"`
	CreatedAt   time.Time `json:"created_at"`
}

// Persona is the randomized patient identity presented to the student.
type Persona struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	Job      string `json:"job"`
	Behavior string `json:"behavior"`
}

// DiagnosticRound stores one diagnostics appointment: what the student
// requested and the findings generated for it. Round 1 is the initial
// work-up submitted together with the differentials.
type DiagnosticRound struct {
	Round     int    `json:"round"`
	Requested string `json:"requested"`
	Findings  string `json:"findings"`
}

// TokenUsage accumulates model token consumption across a session.
type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// FeedbackRecord is the persisted result of a completed encounter.
type FeedbackRecord struct {
	ID               int64     `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	DurationMinutes  float64   `json:"duration_min"`
	Scenario         string    `json:"scenario"`
	PatientName      string    `json:"patient_name"`
	PatientAge       int       `json:"patient_age"`
	PatientJob       string    `json:"patient_job"`
	Behavior         string    `json:"behavior"`
	Differentials    string    `json:"differentials"`
	Diagnostics      string    `json:"diagnostics"`
	FinalDiagnosis   string    `json:"final_diagnosis"`
	Therapy          string    `json:"therapy"`
	Feedback         string    `json:"feedback"`
	Transcript       string    `json:"transcript"`
	Findings         string    `json:"findings"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Mode             string    `json:"mode"`
}

// Evaluation is the student's rating of the simulation, attached to an
// existing FeedbackRecord. Grades use the German school scale 1 (very
// good) to 6 (insufficient). Matriculation arrives in plaintext and is
// encrypted before it reaches the database.
type Evaluation struct {
	GradeRealism    int    `json:"grade_realism"`
	GradeAnamnesis  int    `json:"grade_anamnesis"`
	GradeFeedback   int    `json:"grade_feedback"`
	GradeDidactic   int    `json:"grade_didactic"`
	GradeDifficulty int    `json:"grade_difficulty"`
	Semester        string `json:"semester"`
	Issues          string `json:"issues,omitempty"`
	Comment         string `json:"comment,omitempty"`
	Matriculation   string `json:"matriculation,omitempty"`
}

// ExportRow is one feedback row in the admin export, evaluation included.
type ExportRow struct {
	FeedbackRecord
	Evaluation Evaluation `json:"evaluation"`
}

// Fixation pins a value (scenario, behavior or feedback mode) for all new
// sessions until it expires or is cleared.
type Fixation struct {
	Name      string        `json:"name"`
	Value     string        `json:"value"`
	FixedAt   time.Time     `json:"fixed_at"`
	Remaining time.Duration `json:"remaining_ns"`
}

// Fixation names used by the admin API and the fixation table.
const (
	FixScenario     = "scenario"
	FixBehavior     = "behavior"
	FixFeedbackMode = "feedback_mode"
)

// Feedback modes. AmbossChatGPT augments the grading prompt with
// knowledge-base content; the wire values match historic exports.
const (
	ModeChatGPT       = "ChatGPT"
	ModeAmbossChatGPT = "Amboss_ChatGPT"
)
