package core

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"math/rand"
	"strings"
)

//go:embed names.csv
var namesCSV string

type rosterEntry struct {
	FirstName string
	Gender    string
	LastName  string
	JobMale   string
	JobFemale string
}

// Roster is the embedded name and job list used to randomize the patient
// persona. First names and jobs are matched to the case gender; last
// names are drawn from the whole list.
type Roster struct {
	entries []rosterEntry
}

// LoadRoster parses the embedded name list.
func LoadRoster() (*Roster, error) {
	r := csv.NewReader(strings.NewReader(namesCSV))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing name list: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("name list is empty")
	}
	// Skip the header row.
	entries := make([]rosterEntry, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 5 {
			continue
		}
		entries = append(entries, rosterEntry{
			FirstName: strings.TrimSpace(rec[0]),
			Gender:    strings.ToLower(strings.TrimSpace(rec[1])),
			LastName:  strings.TrimSpace(rec[2]),
			JobMale:   strings.TrimSpace(rec[3]),
			JobFemale: strings.TrimSpace(rec[4]),
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("name list has no usable rows")
	}
	return &Roster{entries: entries}, nil
}

// PickName draws a first name matching the gender (all first names when
// no entry matches) plus a random last name.
func (r *Roster) PickName(gender string) string {
	var firsts []string
	for _, e := range r.entries {
		if gender == "" || e.Gender == gender {
			firsts = append(firsts, e.FirstName)
		}
	}
	if len(firsts) == 0 {
		for _, e := range r.entries {
			firsts = append(firsts, e.FirstName)
		}
	}
	first := firsts[rand.Intn(len(firsts))]
	last := r.entries[rand.Intn(len(r.entries))].LastName
	return first + " " + last
}

// PickJob draws a job from the gendered column with fallback to the
// other column when no gendered job exists.
func (r *Roster) PickJob(gender string) string {
	var jobs []string
	for _, e := range r.entries {
		switch gender {
		case "m":
			if e.JobMale != "" {
				jobs = append(jobs, e.JobMale)
			}
		case "w":
			if e.JobFemale != "" {
				jobs = append(jobs, e.JobFemale)
			}
		default:
			if e.JobMale != "" {
				jobs = append(jobs, e.JobMale)
			}
			if e.JobFemale != "" {
				jobs = append(jobs, e.JobFemale)
			}
		}
	}
	if len(jobs) == 0 {
		return "unbekannt"
	}
	return jobs[rand.Intn(len(jobs))]
}
