package core

import (
	"fmt"
	"strings"
)

// BuildProtocol renders the downloadable plain-text protocol of a
// completed encounter. It requires generated feedback.
func BuildProtocol(enc *Encounter) (string, error) {
	feedback := enc.Feedback()
	if strings.TrimSpace(feedback) == "" {
		return "", ErrNoFeedback
	}
	diagnosis, therapy := enc.Conclusion()

	var b strings.Builder
	fmt.Fprintf(&b, "Fallprotokoll – %s\n", enc.Case.Scenario)
	fmt.Fprintf(&b, "Erstellt am: %s\n", enc.CreatedAt.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Patient: %s, %d Jahre, %s\n", enc.Persona.Name, enc.Persona.Age, enc.Persona.Job)
	b.WriteString("\n")

	section := func(title, body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			body = "(keine Angaben)"
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", title, body)
	}

	section("Gesprächsverlauf", enc.TranscriptText())
	section("Körperlicher Untersuchungsbefund", enc.Report())
	section("Differentialdiagnosen", enc.Assessment())
	section("Angeforderte Diagnostik", enc.CumulativeDiagnostics())
	section("Befunde", enc.CumulativeFindings())
	section("Finale Diagnose", diagnosis)
	section("Therapiekonzept", therapy)
	section("Feedback", feedback)

	return b.String(), nil
}

// ProtocolFilename derives a stable download name from the scenario.
func ProtocolFilename(enc *Encounter) string {
	slug := strings.ToLower(strings.TrimSpace(enc.Case.Scenario))
	replacer := strings.NewReplacer(" ", "_", "ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss", "/", "-")
	slug = replacer.Replace(slug)
	var clean strings.Builder
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			clean.WriteRune(r)
		}
	}
	name := clean.String()
	if name == "" {
		name = "fall"
	}
	return "protokoll_" + name + ".txt"
}
