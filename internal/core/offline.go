package core

// offline.go provides clearly marked static placeholders for every
// LLM-backed stage. They keep workshops without connectivity usable; no
// tokens are counted and no feedback rows are persisted in this mode.

import "strings"

// OfflinePatientReply is the canned anamnesis answer.
func OfflinePatientReply(patientName string) string {
	name := patientName
	if name == "" {
		name = "Die simulierte Patientin"
	}
	return "(Offline) " + name + " antwortet ruhig:\n" +
		"Ich kann dir derzeit nur die Basisinformationen aus dem Szenario schildern. " +
		"Bitte prüfe den Steckbrief und die bisherigen Notizen, bis der Online-Modus wieder aktiv ist."
}

// OfflineExamReport is a generic but plausible examination report with
// the same structure as the generated one.
func OfflineExamReport() string {
	return "Offline-Modus – standardisierter Befund" +
		"\n\n" +
		"Blutdruck: 118/74 mmHg" +
		"\nHerzfrequenz: 72/Minute" +
		"\n\n**Allgemeinzustand:** wach, orientiert, kooperativ; Vitalparameter im Normbereich." +
		"\n**Abdomen:** weich, kein Druckschmerz, Darmgeräusche regelrecht." +
		"\n**Auskultation Herz/Lunge:** Herztöne rein, rhythmisch; Vesikuläratmen beidseits ohne Nebengeräusche." +
		"\n**Haut:** rosig, warm, keine Auffälligkeiten." +
		"\n**Extremitäten:** frei beweglich, keine Ödeme, periphere Pulse tastbar."
}

// OfflineFindings is the placeholder diagnostics report.
func OfflineFindings(requested string) string {
	r := strings.TrimSpace(requested)
	if r == "" {
		r = "(keine zusätzlichen Angaben gemacht)"
	}
	return "Offline-Modus – vereinfachter Befundbericht" +
		"\n\n" +
		"Angeforderte Untersuchungen:\n" + r + "\n\n" +
		"Ergebnisse (statisch generiert):\n" +
		"- Laborwerte im Referenzbereich, keine pathologischen Abweichungen.\n" +
		"- Bildgebung ohne richtungsweisende Befunde.\n" +
		"- Funktionsdiagnostik unauffällig."
}

// OfflineExamSupplement is the placeholder for a focused follow-up exam.
func OfflineExamSupplement(request string) string {
	r := strings.TrimSpace(request)
	if r == "" {
		r = "(kein Wunschtext eingegeben)"
	}
	return "Offline-Modus – ergänzter Untersuchungsblock" +
		"\n\n" +
		"Anforderung: " + r +
		"\nErgebnis: Zurzeit stehen keine dynamischen Detailbefunde zur Verfügung."
}

// OfflineFeedback replaces the generated grading with a checklist.
func OfflineFeedback(scenario string) string {
	s := scenario
	if s == "" {
		s = "dem aktuellen Szenario"
	}
	return "Offline-Modus – kein automatisches Feedback verfügbar." +
		"\n" +
		"Bewerte deine Bearbeitung von " + s + " anhand der Checkliste:" +
		"\n1. Wurden die relevanten Anamnesepunkte erfragt?" +
		"\n2. Passten Diagnostik und Differentialdiagnosen zusammen?" +
		"\n3. Ist die finale Diagnose nachvollziehbar und das Therapiekonzept begründet?" +
		"\nNutze die Lösungen oder besprich den Fall im Team, sobald der Online-Modus wieder aktiv ist."
}
