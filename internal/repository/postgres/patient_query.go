package postgres

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/stroke-api/internal/model"
)

const patientColumns = `id, external_id, gender, age, hypertension, ever_married, work_type,
	residence_type, avg_glucose_level, bmi, smoking_status, stroke, dataset_id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildPatientQuery translates pred into a SELECT over patients. Clauses
// are joined with AND; an empty predicate selects every row.
func buildPatientQuery(pred model.Predicate) (string, []interface{}, error) {
	query := "SELECT " + patientColumns + " FROM patients WHERE 1=1"
	args := []interface{}{}

	for _, clause := range pred {
		switch c := clause.(type) {
		case model.TextSearch:
			args = append(args, likeEscaper.Replace(c.Term))
			n := len(args)
			query += fmt.Sprintf(
				" AND (gender ILIKE '%%' || $%d || '%%' OR smoking_status ILIKE '%%' || $%d || '%%')", n, n)
		case model.ExternalIDEquals:
			args = append(args, c.ExternalID)
			query += fmt.Sprintf(" AND external_id = $%d", len(args))
		case model.GenderEquals:
			args = append(args, c.Gender)
			query += fmt.Sprintf(" AND gender = $%d", len(args))
		case model.StrokeEquals:
			args = append(args, c.Stroke)
			query += fmt.Sprintf(" AND stroke = $%d", len(args))
		case model.AgeAtLeast:
			args = append(args, c.Age)
			query += fmt.Sprintf(" AND age >= $%d", len(args))
		case model.AgeAtMost:
			args = append(args, c.Age)
			query += fmt.Sprintf(" AND age <= $%d", len(args))
		default:
			return "", nil, fmt.Errorf("unsupported patient clause %T", clause)
		}
	}

	query += " ORDER BY id"
	return query, args, nil
}
