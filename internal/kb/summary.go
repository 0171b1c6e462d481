package kb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"virtual-clinic/internal/llm"
)

// Summarizer condenses a raw knowledge-base payload into a compact German
// digest that fits into the feedback prompt. Callers cache the result per
// payload digest so identical payloads are summarized only once.
type Summarizer struct {
	LLM   llm.Client
	Model string
}

// NewSummarizer constructs a Summarizer. Model defaults to a small fast
// model since the task is pure compression.
func NewSummarizer(client llm.Client) *Summarizer {
	return &Summarizer{LLM: client, Model: "gpt-4o-mini"}
}

// Digest identifies a (payload, scenario, age) combination so callers can
// recognize already summarized content.
func Digest(payload json.RawMessage, scenario string, age int) string {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(scenario))
	h.Write([]byte(strconv.Itoa(age)))
	return hex.EncodeToString(h.Sum(nil))
}

// Summarize produces a four-section summary (Anamnese & Klinik,
// Diagnostik, Therapie, Differentialdiagnosen) of the payload.
func (s *Summarizer) Summarize(ctx context.Context, payload json.RawMessage, scenario string, age int) (string, llm.Usage, error) {
	prompt := "Du bist medizinische*r Content-Kurator*in. Verdichte die folgenden Wissensdatenbank-Daten " +
		"für einen digitalen Prüfer. Konzentriere dich auf anamnestische, diagnostische " +
		"und therapeutische Kernaussagen sowie auf die wichtigsten Differentialdiagnosen " +
		"mit ihrer Abgrenzung zur Hauptdiagnose." +
		"\n\n" +
		fmt.Sprintf("Fallkontext Szenario = %s. Nur zur Information, nicht in Antwort übernehmen: Alter = %d Jahre.", scenario, age) +
		"\n\n" +
		"Erstelle vier kurze Abschnitte mit fett formatierten Überschriften:" +
		"\n1. Anamnese & Klinik" +
		"\n2. Diagnostik" +
		"\n3. Therapie" +
		"\n4. Differentialdiagnosen" +
		"\nNutze Stichpunkte oder komprimierte Sätze, ohne inhaltliche Details zu streichen." +
		"\n\nJSON:\n" + string(payload)

	resp, err := s.LLM.Chat(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
		Model:       s.Model,
	})
	if err != nil {
		return "", llm.Usage{}, err
	}
	return resp.Content, resp.Usage, nil
}
