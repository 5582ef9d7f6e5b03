package patient

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jwalitptl/stroke-api/internal/model"
)

// QueryBuilder turns raw search strings into store predicates. Malformed
// numeric filters are dropped rather than reported.
type QueryBuilder struct {
	// LegacyExternalIDUnion stops the gender, stroke and age filters from
	// applying to records matched through the external id branch.
	LegacyExternalIDUnion bool
}

// Query is a composed search. Primary always runs. ByExternalID is set when
// the search term is numeric; its matches are unioned with Primary's.
type Query struct {
	Primary      model.Predicate
	ByExternalID model.Predicate
}

func (b QueryBuilder) Build(params model.PatientSearchParams) Query {
	var filters model.Predicate

	if params.Gender != "" {
		filters = append(filters, model.GenderEquals{Gender: params.Gender})
	}
	if isDigits(params.Stroke) {
		filters = append(filters, model.StrokeEquals{Stroke: strings.Trim(params.Stroke, "0") != ""})
	}
	if age, ok := parseAge(params.AgeMin); ok {
		filters = append(filters, model.AgeAtLeast{Age: age})
	}
	if age, ok := parseAge(params.AgeMax); ok {
		filters = append(filters, model.AgeAtMost{Age: age})
	}

	search := strings.TrimSpace(params.Search)
	if search == "" {
		return Query{Primary: filters}
	}

	q := Query{
		Primary: model.Predicate{model.TextSearch{Term: search}}.And(filters...),
	}
	if id, ok := parseDigits(search); ok {
		branch := model.Predicate{model.ExternalIDEquals{ExternalID: id}}
		if !b.LegacyExternalIDUnion {
			branch = branch.And(filters...)
		}
		q.ByExternalID = branch
	}
	return q
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseDigits accepts only non-empty strings of ASCII digits that fit in
// an int64, the range of external ids.
func parseDigits(s string) (int64, bool) {
	if !isDigits(s) {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseAge clamps oversized values to the int32 range of the age column,
// which keeps the comparison meaning intact.
func parseAge(s string) (int, bool) {
	if !isDigits(s) {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return math.MaxInt32, true
	}
	return int(v), true
}

// mergeByID unions two result sets, keeping the first copy of each
// surrogate id, ordered by ascending id.
func mergeByID(a, b []*model.Patient) []*model.Patient {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]*model.Patient, 0, len(a)+len(b))
	for _, set := range [][]*model.Patient{a, b} {
		for _, p := range set {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
