package core

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"virtual-clinic/internal/llm"
	"virtual-clinic/pkg"
)

// CaseSource provides scenario rows for new encounters.
type CaseSource interface {
	RandomCase(ctx context.Context) (*pkg.Case, error)
	CaseByScenario(ctx context.Context, scenario string) (*pkg.Case, error)
}

// FixationSource provides persisted admin fixations. Implementations
// enforce the expiry window and report expired entries as absent.
type FixationSource interface {
	Fixation(ctx context.Context, name string) (string, bool, error)
	ClearFixation(ctx context.Context, name string) error
}

// CaseService turns a scenario row into a fully prepared Encounter:
// randomized persona, behavior profile, system prompt and the scripted
// opening of the conversation.
type CaseService struct {
	Cases     CaseSource
	Fixations FixationSource
	Roster    *Roster
	Logger    *zap.Logger
}

// NewCaseService constructs a CaseService.
func NewCaseService(cases CaseSource, fixations FixationSource, roster *Roster, logger *zap.Logger) *CaseService {
	return &CaseService{Cases: cases, Fixations: fixations, Roster: roster, Logger: logger}
}

// Prepare selects a case and builds the encounter state for it.
// Selection priority: explicit pinned scenario, then a persisted scenario
// fixation, then uniform random. A fixation pointing at a scenario that
// no longer exists is cleared and falls back to random.
func (s *CaseService) Prepare(ctx context.Context, pinned string) (*Encounter, error) {
	c, err := s.selectCase(ctx, pinned)
	if err != nil {
		return nil, err
	}

	gender := normalizeGender(c.Gender)
	age := rollAge(c.BaseAge)
	name := s.Roster.PickName(gender)
	job := s.Roster.PickJob(gender)
	behaviorKey := s.pickBehavior(ctx)
	behavior := BehaviorInstructions[behaviorKey]

	enc := &Encounter{
		CreatedAt: time.Now(),
		Case:      *c,
		Persona: pkg.Persona{
			Name:     name,
			Age:      age,
			Gender:   gender,
			Job:      job,
			Behavior: behaviorKey,
		},
		BehaviorInstruction: behavior,
	}
	enc.SystemPrompt = BuildSystemPrompt(c.Scenario, c.Description, name, age, gender, job, behavior)
	enc.Messages = []llm.Message{
		{Role: "system", Content: enc.SystemPrompt},
		{Role: "assistant", Content: EntryNarration(age, job)},
		{Role: "assistant", Content: Greeting(behaviorKey)},
	}

	s.Logger.Info("case prepared",
		zap.String("scenario", c.Scenario),
		zap.String("behavior", behaviorKey),
		zap.Int("age", age),
	)
	return enc, nil
}

func (s *CaseService) selectCase(ctx context.Context, pinned string) (*pkg.Case, error) {
	if pinned != "" {
		return s.Cases.CaseByScenario(ctx, pinned)
	}

	fixed, ok, err := s.Fixations.Fixation(ctx, pkg.FixScenario)
	if err != nil {
		return nil, err
	}
	if ok && fixed != "" {
		c, err := s.Cases.CaseByScenario(ctx, fixed)
		if err == nil {
			return c, nil
		}
		// The fixed scenario vanished from the table; drop the fixation
		// and fall back to random selection.
		s.Logger.Warn("fixed scenario no longer available, clearing fixation", zap.String("scenario", fixed))
		if clearErr := s.Fixations.ClearFixation(ctx, pkg.FixScenario); clearErr != nil {
			s.Logger.Warn("clearing scenario fixation failed", zap.Error(clearErr))
		}
	}
	return s.Cases.RandomCase(ctx)
}

func (s *CaseService) pickBehavior(ctx context.Context) string {
	fixed, ok, err := s.Fixations.Fixation(ctx, pkg.FixBehavior)
	if err == nil && ok {
		if _, known := BehaviorInstructions[fixed]; known {
			return fixed
		}
		// Unknown key in a live fixation: clean it up.
		if clearErr := s.Fixations.ClearFixation(ctx, pkg.FixBehavior); clearErr != nil {
			s.Logger.Warn("clearing behavior fixation failed", zap.Error(clearErr))
		}
	}
	keys := BehaviorKeys()
	return keys[rand.Intn(len(keys))]
}

// normalizeGender maps the case gender onto "m" or "w"; "n" is a coin
// flip, anything else stays neutral ("").
func normalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "m":
		return "m"
	case "w":
		return "w"
	case "n":
		if rand.Intn(2) == 0 {
			return "m"
		}
		return "w"
	default:
		return ""
	}
}

// rollAge jitters the case base age by ±5 with a floor of 16, or draws a
// random age between 20 and 34 when the case carries no age.
func rollAge(base *int) int {
	if base == nil {
		return 20 + rand.Intn(15)
	}
	age := *base + rand.Intn(11) - 5
	if age < 16 {
		age = 16
	}
	return age
}
