package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"virtual-clinic/pkg"
)

// ErrCaseNotFound is returned when a scenario is not in the cases table.
var ErrCaseNotFound = errors.New("case not found")

// Repository wraps all database operations: the scenario catalogue and
// the persisted feedback records with their evaluations.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a Repository from an existing sql.DB. The
// caller manages the connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

const caseColumns = `id, scenario, description, exam_hint, base_age, gender, created_at`

func scanCase(row *sql.Row) (*pkg.Case, error) {
	var c pkg.Case
	var baseAge sql.NullInt64
	err := row.Scan(&c.ID, &c.Scenario, &c.Description, &c.ExamHint, &baseAge, &c.Gender, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	if baseAge.Valid {
		age := int(baseAge.Int64)
		c.BaseAge = &age
	}
	return &c, nil
}

// RandomCase returns a uniformly random scenario row.
func (r *Repository) RandomCase(ctx context.Context) (*pkg.Case, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases ORDER BY random() LIMIT 1`)
	return scanCase(row)
}

// CaseByScenario returns the row for an exact scenario name.
func (r *Repository) CaseByScenario(ctx context.Context, scenario string) (*pkg.Case, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE scenario = $1`, scenario)
	return scanCase(row)
}

// ListCases returns all scenarios ordered by name, for the admin surface.
func (r *Repository) ListCases(ctx context.Context) ([]pkg.Case, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM cases ORDER BY scenario`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []pkg.Case
	for rows.Next() {
		var c pkg.Case
		var baseAge sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Scenario, &c.Description, &c.ExamHint, &baseAge, &c.Gender, &c.CreatedAt); err != nil {
			return nil, err
		}
		if baseAge.Valid {
			age := int(baseAge.Int64)
			c.BaseAge = &age
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// AddCase inserts a new scenario. Scenario names are unique; inserting a
// duplicate returns an error.
func (r *Repository) AddCase(ctx context.Context, c *pkg.Case) error {
	c.Scenario = strings.TrimSpace(c.Scenario)
	if c.Scenario == "" {
		return fmt.Errorf("scenario name must not be empty")
	}
	var baseAge sql.NullInt64
	if c.BaseAge != nil {
		baseAge = sql.NullInt64{Int64: int64(*c.BaseAge), Valid: true}
	}
	return r.DB.QueryRowContext(ctx,
		`INSERT INTO cases (scenario, description, exam_hint, base_age, gender)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, created_at`,
		c.Scenario, c.Description, c.ExamHint, baseAge, c.Gender,
	).Scan(&c.ID, &c.CreatedAt)
}

// DeleteCase removes a scenario from the catalogue.
func (r *Repository) DeleteCase(ctx context.Context, scenario string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM cases WHERE scenario = $1`, scenario)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// SaveFeedback inserts a completed encounter record and returns its row ID.
func (r *Repository) SaveFeedback(ctx context.Context, rec *pkg.FeedbackRecord) (int64, error) {
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO feedback_gpt (
            created_at, duration_min, scenario, patient_name, patient_age,
            patient_job, behavior, differentials, diagnostics, final_diagnosis,
            therapy, feedback, transcript, findings,
            prompt_tokens, completion_tokens, total_tokens, mode)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
         RETURNING id`,
		rec.CreatedAt, rec.DurationMinutes, rec.Scenario, rec.PatientName, rec.PatientAge,
		rec.PatientJob, rec.Behavior, rec.Differentials, rec.Diagnostics, rec.FinalDiagnosis,
		rec.Therapy, rec.Feedback, rec.Transcript, rec.Findings,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.Mode,
	).Scan(&rec.ID)
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// SaveEvaluation attaches the student rating to an existing feedback
// row. Evaluation.Matriculation must already be encrypted.
func (r *Repository) SaveEvaluation(ctx context.Context, feedbackID int64, eval *pkg.Evaluation) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE feedback_gpt SET
            grade_realism = $1, grade_anamnesis = $2, grade_feedback = $3,
            grade_didactic = $4, grade_difficulty = $5,
            semester = $6, issues = $7, comment = $8, matricule_encrypted = $9
         WHERE id = $10`,
		eval.GradeRealism, eval.GradeAnamnesis, eval.GradeFeedback,
		eval.GradeDidactic, eval.GradeDifficulty,
		eval.Semester, eval.Issues, eval.Comment, eval.Matriculation,
		feedbackID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("feedback row %d not found", feedbackID)
	}
	return nil
}

// Export returns all feedback rows with their evaluations, newest first.
// Matriculation numbers stay encrypted; decryption happens in the admin
// handler where the key lives.
func (r *Repository) Export(ctx context.Context) ([]pkg.ExportRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, created_at, duration_min, scenario, patient_name, patient_age,
                patient_job, behavior, differentials, diagnostics, final_diagnosis,
                therapy, feedback, transcript, findings,
                prompt_tokens, completion_tokens, total_tokens, mode,
                grade_realism, grade_anamnesis, grade_feedback,
                grade_didactic, grade_difficulty,
                semester, issues, comment, matricule_encrypted
         FROM feedback_gpt
         ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pkg.ExportRow
	for rows.Next() {
		var row pkg.ExportRow
		var grades [5]sql.NullInt64
		var semester, issues, comment, matricule sql.NullString
		err := rows.Scan(
			&row.ID, &row.CreatedAt, &row.DurationMinutes, &row.Scenario, &row.PatientName, &row.PatientAge,
			&row.PatientJob, &row.Behavior, &row.Differentials, &row.Diagnostics, &row.FinalDiagnosis,
			&row.Therapy, &row.Feedback, &row.Transcript, &row.Findings,
			&row.PromptTokens, &row.CompletionTokens, &row.TotalTokens, &row.Mode,
			&grades[0], &grades[1], &grades[2], &grades[3], &grades[4],
			&semester, &issues, &comment, &matricule,
		)
		if err != nil {
			return nil, err
		}
		row.Evaluation = pkg.Evaluation{
			GradeRealism:    int(grades[0].Int64),
			GradeAnamnesis:  int(grades[1].Int64),
			GradeFeedback:   int(grades[2].Int64),
			GradeDidactic:   int(grades[3].Int64),
			GradeDifficulty: int(grades[4].Int64),
			Semester:        semester.String,
			Issues:          issues.String,
			Comment:         comment.String,
			Matriculation:   matricule.String,
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountFeedback returns the number of persisted feedback rows.
func (r *Repository) CountFeedback(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_gpt`).Scan(&n)
	return n, err
}
