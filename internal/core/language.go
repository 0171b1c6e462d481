package core

import (
	"fmt"
	"strings"
)

// Grammatical cases supported by PatientForms.
const (
	CaseNominative = "nom"
	CaseAccusative = "acc"
	CaseDative     = "dat"
	CaseGenitive   = "gen"
)

// PatientForms holds the German noun and pronoun forms needed to address
// the simulated patient correctly in generated prompts. Neutral forms are
// used when the gender is unknown.
type PatientForms struct {
	definite     map[string]string
	indefinite   map[string]string
	relative     map[string]string
	plural       string
	base         string
	compoundStem string
}

// FormsFor returns the language forms matching the given gender
// ("m", "w", anything else is treated as neutral).
func FormsFor(gender string) PatientForms {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "m":
		return PatientForms{
			definite: map[string]string{
				CaseNominative: "der Patient",
				CaseAccusative: "den Patienten",
				CaseDative:     "dem Patienten",
				CaseGenitive:   "des Patienten",
			},
			indefinite: map[string]string{
				CaseNominative: "ein Patient",
				CaseAccusative: "einen Patienten",
				CaseDative:     "einem Patienten",
				CaseGenitive:   "eines Patienten",
			},
			relative: map[string]string{
				CaseNominative: "der",
				CaseAccusative: "den",
				CaseDative:     "dem",
				CaseGenitive:   "dessen",
			},
			plural:       "Patienten",
			base:         "Patient",
			compoundStem: "Patienten",
		}
	case "w":
		return PatientForms{
			definite: map[string]string{
				CaseNominative: "die Patientin",
				CaseAccusative: "die Patientin",
				CaseDative:     "der Patientin",
				CaseGenitive:   "der Patientin",
			},
			indefinite: map[string]string{
				CaseNominative: "eine Patientin",
				CaseAccusative: "eine Patientin",
				CaseDative:     "einer Patientin",
				CaseGenitive:   "einer Patientin",
			},
			relative: map[string]string{
				CaseNominative: "die",
				CaseAccusative: "die",
				CaseDative:     "der",
				CaseGenitive:   "deren",
			},
			plural:       "Patientinnen",
			base:         "Patientin",
			compoundStem: "Patientinnen",
		}
	default:
		return PatientForms{
			definite: map[string]string{
				CaseNominative: "die Patientin oder der Patient",
				CaseAccusative: "die Patientin oder den Patienten",
				CaseDative:     "der Patientin oder dem Patienten",
				CaseGenitive:   "der Patientin oder des Patienten",
			},
			indefinite: map[string]string{
				CaseNominative: "eine Patientin oder ein Patient",
				CaseAccusative: "eine Patientin oder einen Patienten",
				CaseDative:     "einer Patientin oder einem Patienten",
				CaseGenitive:   "einer Patientin oder eines Patienten",
			},
			relative: map[string]string{
				CaseNominative: "die",
				CaseAccusative: "die",
				CaseDative:     "denen",
				CaseGenitive:   "deren",
			},
			plural:       "Patientinnen oder Patienten",
			base:         "Patient:in",
			compoundStem: "Patient:innen",
		}
	}
}

// PhraseOption modifies how Phrase builds its output.
type PhraseOption func(*phraseConfig)

type phraseConfig struct {
	indefinite bool
	adjective  string
	capitalize bool
}

// Indefinite selects the indefinite article ("ein Patient").
func Indefinite() PhraseOption {
	return func(c *phraseConfig) { c.indefinite = true }
}

// WithAdjective injects an adjective between article and noun
// ("einem 34-jährigen Patienten").
func WithAdjective(adj string) PhraseOption {
	return func(c *phraseConfig) { c.adjective = adj }
}

// Capitalized upper-cases the first rune, for sentence starts.
func Capitalized() PhraseOption {
	return func(c *phraseConfig) { c.capitalize = true }
}

// Phrase returns the article+noun phrase for the given grammatical case.
func (f PatientForms) Phrase(grammaticalCase string, opts ...PhraseOption) (string, error) {
	var cfg phraseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	forms := f.definite
	if cfg.indefinite {
		forms = f.indefinite
	}
	phrase, ok := forms[grammaticalCase]
	if !ok {
		return "", fmt.Errorf("unsupported grammatical case: %q", grammaticalCase)
	}

	if cfg.adjective != "" {
		parts := strings.SplitN(phrase, " ", 2)
		if len(parts) == 2 {
			phrase = parts[0] + " " + cfg.adjective + " " + parts[1]
		} else {
			phrase = cfg.adjective + " " + phrase
		}
	}

	if cfg.capitalize && phrase != "" {
		runes := []rune(phrase)
		phrase = strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
	return phrase, nil
}

// MustPhrase is Phrase for the fixed cases used in prompt builders, where
// the case constant is known at compile time.
func (f PatientForms) MustPhrase(grammaticalCase string, opts ...PhraseOption) string {
	s, err := f.Phrase(grammaticalCase, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// RelativePronoun returns the relative pronoun for the given case.
func (f PatientForms) RelativePronoun(grammaticalCase string) string {
	return f.relative[grammaticalCase]
}

// Plural returns the plural noun.
func (f PatientForms) Plural() string { return f.plural }

// Base returns the singular base noun.
func (f PatientForms) Base() string { return f.base }

// Compound joins the compound stem with a suffix into one noun
// ("Patientengespräch", "Patient:innenmodell"). The suffix is expected
// in lower case.
func (f PatientForms) Compound(suffix string) string {
	return f.compoundStem + suffix
}

// AgeAdjective builds the "34-jähriger"/"34-jährige" form matching the
// gender, used inside the persona description.
func AgeAdjective(age int, gender string) string {
	if strings.ToLower(strings.TrimSpace(gender)) == "m" {
		return fmt.Sprintf("%d-jähriger", age)
	}
	return fmt.Sprintf("%d-jährige", age)
}
