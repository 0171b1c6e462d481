package core

import "testing"

func TestPhraseDeclension(t *testing.T) {
	cases := []struct {
		gender string
		gcase  string
		opts   []PhraseOption
		want   string
	}{
		{"m", CaseNominative, nil, "der Patient"},
		{"m", CaseDative, []PhraseOption{Indefinite()}, "einem Patienten"},
		{"m", CaseNominative, []PhraseOption{Indefinite(), WithAdjective("28-jähriger")}, "ein 28-jähriger Patient"},
		{"w", CaseGenitive, nil, "der Patientin"},
		{"w", CaseNominative, []PhraseOption{Indefinite(), WithAdjective("34-jährige")}, "eine 34-jährige Patientin"},
		{"w", CaseNominative, []PhraseOption{Capitalized()}, "Die Patientin"},
		{"", CaseNominative, nil, "die Patientin oder der Patient"},
		{"", CaseDative, []PhraseOption{Indefinite()}, "einer Patientin oder einem Patienten"},
	}
	for _, tc := range cases {
		got, err := FormsFor(tc.gender).Phrase(tc.gcase, tc.opts...)
		if err != nil {
			t.Fatalf("Phrase(%q, %q): %v", tc.gender, tc.gcase, err)
		}
		if got != tc.want {
			t.Errorf("Phrase(%q, %q) = %q, want %q", tc.gender, tc.gcase, got, tc.want)
		}
	}
}

func TestCompound(t *testing.T) {
	cases := []struct {
		gender string
		suffix string
		want   string
	}{
		{"m", "gespräch", "Patientengespräch"},
		{"w", "gespräch", "Patientinnengespräch"},
		{"", "modell", "Patient:innenmodell"},
	}
	for _, tc := range cases {
		if got := FormsFor(tc.gender).Compound(tc.suffix); got != tc.want {
			t.Errorf("Compound(%q, %q) = %q, want %q", tc.gender, tc.suffix, got, tc.want)
		}
	}
}

func TestNounForms(t *testing.T) {
	cases := []struct {
		gender   string
		plural   string
		base     string
		relCase  string
		relative string
	}{
		{"m", "Patienten", "Patient", CaseGenitive, "dessen"},
		{"w", "Patientinnen", "Patientin", CaseDative, "der"},
		{"", "Patientinnen oder Patienten", "Patient:in", CaseDative, "denen"},
	}
	for _, tc := range cases {
		f := FormsFor(tc.gender)
		if got := f.Plural(); got != tc.plural {
			t.Errorf("Plural(%q) = %q, want %q", tc.gender, got, tc.plural)
		}
		if got := f.Base(); got != tc.base {
			t.Errorf("Base(%q) = %q, want %q", tc.gender, got, tc.base)
		}
		if got := f.RelativePronoun(tc.relCase); got != tc.relative {
			t.Errorf("RelativePronoun(%q, %q) = %q, want %q", tc.gender, tc.relCase, got, tc.relative)
		}
	}
}

func TestPhraseUnknownCase(t *testing.T) {
	if _, err := FormsFor("m").Phrase("vocative"); err == nil {
		t.Fatal("expected an error for an unsupported case")
	}
}

func TestAgeAdjective(t *testing.T) {
	if got := AgeAdjective(34, "m"); got != "34-jähriger" {
		t.Fatalf("unexpected male form %q", got)
	}
	if got := AgeAdjective(34, "w"); got != "34-jährige" {
		t.Fatalf("unexpected female form %q", got)
	}
	if got := AgeAdjective(34, ""); got != "34-jährige" {
		t.Fatalf("unexpected neutral form %q", got)
	}
}
