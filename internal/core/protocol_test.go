package core

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildProtocolRequiresFeedback(t *testing.T) {
	_, err := BuildProtocol(newTestEncounter())
	if !errors.Is(err, ErrNoFeedback) {
		t.Fatalf("expected ErrNoFeedback, got %v", err)
	}
}

func TestBuildProtocolSections(t *testing.T) {
	enc := concludedEncounter()
	enc.setFeedback("Gut gemacht.")

	protocol, err := BuildProtocol(enc)
	if err != nil {
		t.Fatalf("building protocol: %v", err)
	}

	for _, want := range []string{
		"Fallprotokoll – Akute Appendizitis",
		"Julia Weber, 34 Jahre, Lehrerin",
		"=== Gesprächsverlauf ===",
		"=== Körperlicher Untersuchungsbefund ===",
		"=== Differentialdiagnosen ===",
		"=== Angeforderte Diagnostik ===",
		"=== Befunde ===",
		"=== Finale Diagnose ===\nAkute Appendizitis",
		"=== Therapiekonzept ===\nLaparoskopische Appendektomie",
		"=== Feedback ===\nGut gemacht.",
	} {
		if !strings.Contains(protocol, want) {
			t.Fatalf("protocol is missing %q:\n%s", want, protocol)
		}
	}
}

func TestProtocolFilename(t *testing.T) {
	enc := newTestEncounter()
	if got := ProtocolFilename(enc); got != "protokoll_akute_appendizitis.txt" {
		t.Fatalf("unexpected filename %q", got)
	}

	enc.Case.Scenario = "Gastroösophageale Refluxkrankheit"
	if got := ProtocolFilename(enc); got != "protokoll_gastrooesophageale_refluxkrankheit.txt" {
		t.Fatalf("unexpected filename %q", got)
	}

	enc.Case.Scenario = "???"
	if got := ProtocolFilename(enc); got != "protokoll_fall.txt" {
		t.Fatalf("unexpected fallback filename %q", got)
	}
}
