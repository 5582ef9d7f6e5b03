package model

import "strings"

// Clause is a single typed condition over a patient record. Stores
// translate clauses into their own query language; Matches is the
// reference evaluation used by in-process stores.
type Clause interface {
	Matches(p *Patient) bool
}

// TextSearch matches when gender or smoking status contains Term,
// compared case-insensitively.
type TextSearch struct {
	Term string
}

func (c TextSearch) Matches(p *Patient) bool {
	term := strings.ToLower(c.Term)
	return strings.Contains(strings.ToLower(p.Gender), term) ||
		strings.Contains(strings.ToLower(p.SmokingStatus), term)
}

type ExternalIDEquals struct {
	ExternalID int64
}

func (c ExternalIDEquals) Matches(p *Patient) bool {
	return p.ExternalID == c.ExternalID
}

type GenderEquals struct {
	Gender string
}

func (c GenderEquals) Matches(p *Patient) bool {
	return p.Gender == c.Gender
}

type StrokeEquals struct {
	Stroke bool
}

func (c StrokeEquals) Matches(p *Patient) bool {
	return p.Stroke == c.Stroke
}

// AgeAtLeast is inclusive.
type AgeAtLeast struct {
	Age int
}

func (c AgeAtLeast) Matches(p *Patient) bool {
	return p.Age >= c.Age
}

// AgeAtMost is inclusive.
type AgeAtMost struct {
	Age int
}

func (c AgeAtMost) Matches(p *Patient) bool {
	return p.Age <= c.Age
}

// Predicate is a conjunction of clauses. The empty predicate matches
// every record.
type Predicate []Clause

// And returns a new predicate with the given clauses appended.
func (p Predicate) And(clauses ...Clause) Predicate {
	out := make(Predicate, 0, len(p)+len(clauses))
	out = append(out, p...)
	return append(out, clauses...)
}

func (p Predicate) Matches(patient *Patient) bool {
	for _, c := range p {
		if !c.Matches(patient) {
			return false
		}
	}
	return true
}
