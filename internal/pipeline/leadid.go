package pipeline

import (
	"strings"

	"pipeboard/internal/crm"
)

// LeadID is a lead identifier as supplied by a caller.
//
// Board rows are sometimes keyed as "<realId>-<index>", so a caller-supplied
// id may be a composite built from the real id plus a positional suffix.
// Matching therefore accepts either the literal id or its prefix before the
// first hyphen.
type LeadID string

// Base returns the identifier's prefix before the first hyphen.
func (id LeadID) Base() string {
	if i := strings.Index(string(id), "-"); i >= 0 {
		return string(id)[:i]
	}
	return string(id)
}

// Matches reports whether a stored identifier satisfies this caller-supplied
// target id under the composite-id rule.
func (id LeadID) Matches(stored string) bool {
	if id == "" || stored == "" {
		return false
	}
	return stored == string(id) || stored == id.Base()
}

// MatchesLead reports whether a lead satisfies this target id, checking both
// the primary id and the legacy "_id" alias.
func (id LeadID) MatchesLead(l *crm.Lead) bool {
	if l == nil {
		return false
	}
	return id.Matches(l.ID) || id.Matches(l.AltID)
}
