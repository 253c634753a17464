package pipeline

import (
	"time"

	"pipeboard/internal/crm"
)

// Snapshot is the full in-memory pipeline state: leads grouped by stage plus
// per-stage metrics, stamped with fetch and cache times.
//
// Snapshots are copy-on-write. Once published they are never mutated;
// every local mutation builds a new Snapshot sharing the unchanged stage
// lists, so a reference captured before a mutation stays valid as a rollback
// target no matter what happens while a gateway call is in flight.
type Snapshot struct {
	LeadsByStage map[string][]*crm.Lead
	Metrics      map[string]crm.StageMetrics
	LastUpdated  time.Time
	CachedAt     time.Time
}

// NewSnapshot creates an empty snapshot with a (possibly empty) list per
// stage. CachedAt stays zero so the snapshot always counts as expired.
func NewSnapshot(stages []string) *Snapshot {
	byStage := make(map[string][]*crm.Lead, len(stages))
	for _, s := range stages {
		byStage[s] = []*crm.Lead{}
	}
	return &Snapshot{
		LeadsByStage: byStage,
		Metrics:      map[string]crm.StageMetrics{},
	}
}

// Expired reports whether the snapshot is older than the staleness window.
func (s *Snapshot) Expired(ttl time.Duration) bool {
	if s == nil || s.CachedAt.IsZero() {
		return true
	}
	return time.Since(s.CachedAt) > ttl
}

// Find locates a lead by target id across all stages. It returns the lead,
// its stage, and its index in the stage list, or ("", -1) when absent.
func (s *Snapshot) Find(target LeadID) (*crm.Lead, string, int) {
	for stage, leads := range s.LeadsByStage {
		for i, l := range leads {
			if target.MatchesLead(l) {
				return l, stage, i
			}
		}
	}
	return nil, "", -1
}

// FindInStage locates a lead by target id within one stage list.
func (s *Snapshot) FindInStage(stage string, target LeadID) (*crm.Lead, int) {
	for i, l := range s.LeadsByStage[stage] {
		if target.MatchesLead(l) {
			return l, i
		}
	}
	return nil, -1
}

// TotalLeads returns the number of leads across all stages.
func (s *Snapshot) TotalLeads() int {
	n := 0
	for _, leads := range s.LeadsByStage {
		n += len(leads)
	}
	return n
}

// with returns a new snapshot whose stage lists are replaced by the given
// changes. Unchanged lists are shared with the receiver.
func (s *Snapshot) with(changes map[string][]*crm.Lead) *Snapshot {
	next := &Snapshot{
		LeadsByStage: make(map[string][]*crm.Lead, len(s.LeadsByStage)+len(changes)),
		Metrics:      s.Metrics,
		LastUpdated:  s.LastUpdated,
		CachedAt:     s.CachedAt,
	}
	for stage, leads := range s.LeadsByStage {
		next.LeadsByStage[stage] = leads
	}
	for stage, leads := range changes {
		next.LeadsByStage[stage] = leads
	}
	return next
}
