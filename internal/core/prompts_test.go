package core

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptGrammar(t *testing.T) {
	prompt := BuildSystemPrompt("Akute Appendizitis", "Beschreibung", "Julia Weber", 34, "w", "Lehrerin", BehaviorInstructions[BehaviorTerse])

	for _, want := range []string{
		"Patientensimulation – Akute Appendizitis",
		"Du bist Julia Weber, eine 34-jährige Patientin.",
		"Du arbeitest als Lehrerin.",
		NonDisclosureDirective,
		BehaviorInstructions[BehaviorTerse],
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("system prompt is missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildSystemPromptMaleForms(t *testing.T) {
	prompt := BuildSystemPrompt("Pneumonie", "B", "Jonas Bauer", 28, "m", "Elektriker", "X")
	if !strings.Contains(prompt, "ein 28-jähriger Patient") {
		t.Fatalf("expected male declension in prompt:\n%s", prompt)
	}
}

func TestBuildExamPromptStructure(t *testing.T) {
	prompt := BuildExamPrompt("m", "Pneumonie", "Husten seit drei Tagen", "Rasselgeräusche")

	for _, want := range []string{
		"Der Patient hat eine zufällig simulierte Erkrankung",
		"Blutdruck:",
		"Herzfrequenz:",
		"**Allgemeinzustand:**",
		"**Abdomen:**",
		"**Auskultation Herz/Lunge:**",
		"**Haut:**",
		"**Extremitäten:**",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("exam prompt is missing %q", want)
		}
	}
}

func TestBuildFindingsPromptSIUnits(t *testing.T) {
	prompt := BuildFindingsPrompt("w", "Anämie", "- Blutbild")
	if !strings.Contains(prompt, "Die Patientin hat laut Szenario: Anämie.") {
		t.Fatalf("findings prompt lacks scenario header:\n%s", prompt)
	}
	if !strings.Contains(prompt, "SI-Einheiten") {
		t.Fatal("findings prompt must demand SI units")
	}
	// The literal percent sign must survive the format string.
	if !strings.Contains(prompt, "µg/L oder %") {
		t.Fatal("percent sign was mangled in the findings prompt")
	}
}

func TestBuildFeedbackPromptKBContext(t *testing.T) {
	in := FeedbackInput{
		Gender:          "w",
		Scenario:        "Akute Appendizitis",
		StudentDialogue: "Wo tut es weh?",
		Differentials:   "- Appendizitis",
		Diagnostics:     "### Termin 1\nLabor",
		FinalDiagnosis:  "Akute Appendizitis",
		Therapy:         "Appendektomie",
		Rounds:          2,
	}

	plain := BuildFeedbackPrompt(in)
	if strings.Contains(plain, "Wissensdatenbank") {
		t.Fatal("prompt without KB context must not mention the knowledge base")
	}
	if !strings.Contains(plain, "Die Fallbearbeitung umfasste 2 Diagnostik-Termine.") {
		t.Fatal("round count missing from feedback prompt")
	}
	if !strings.Contains(plain, "einer Patientin") {
		t.Fatal("dative declension missing from feedback prompt")
	}

	in.KBContext = "**Diagnostik**: Sonographie zuerst."
	withKB := BuildFeedbackPrompt(in)
	if !strings.Contains(withKB, "Zusätzliche Fachinformationen (Wissensdatenbank):") {
		t.Fatal("KB section missing from augmented prompt")
	}
	if !strings.Contains(withKB, in.KBContext) {
		t.Fatal("KB context not appended to prompt")
	}
}

func TestGreetingMatchesBehavior(t *testing.T) {
	if g := Greeting(BehaviorAnxious); !strings.Contains(g, "nervös") {
		t.Fatalf("anxious greeting unexpected: %q", g)
	}
	if g := Greeting(BehaviorTerse); !strings.Contains(g, "Guten Tag") {
		t.Fatalf("default greeting unexpected: %q", g)
	}
}

func TestBehaviorKeysCoverInstructions(t *testing.T) {
	keys := BehaviorKeys()
	if len(keys) != len(BehaviorInstructions) {
		t.Fatalf("key list and instruction map diverge: %d vs %d", len(keys), len(BehaviorInstructions))
	}
	for _, k := range keys {
		if _, ok := BehaviorInstructions[k]; !ok {
			t.Fatalf("key %q has no instruction", k)
		}
	}
}
