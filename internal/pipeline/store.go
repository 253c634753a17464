// Package pipeline implements the state-management core of the CRM kanban
// board: a staleness-controlled snapshot cache of leads grouped by stage, an
// append-only stage registry, and an optimistic mutation engine that applies
// local changes immediately and rolls them back when the remote gateway
// fails.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"pipeboard/internal/crm"
	"pipeboard/internal/logging"

	"github.com/google/uuid"
)

// Options configures a Store.
type Options struct {
	// DefaultStages are the static kanban columns, in board order.
	DefaultStages []string

	// CacheTTL is the snapshot staleness window. Zero means DefaultCacheTTL.
	CacheTTL time.Duration

	// Reporter receives mutation outcomes. Nil means no reporting.
	Reporter Reporter
}

// Store is the optimistic mutation engine. It is constructed once per
// application instance and passed by reference; there is no package-level
// singleton.
//
// Every write follows the same protocol: capture the current snapshot
// reference, publish the mutated state, call the gateway, and on failure
// (transport error or a success=false envelope) restore the captured
// reference verbatim. Operations on the same lead are not serialized; if two
// are in flight their completions race and the last writer wins, but each
// operation's rollback restores only its own pre-mutation snapshot.
type Store struct {
	gw       crm.Gateway
	registry *StageRegistry
	cache    *Cache
	reporter Reporter
}

// NewStore builds the pipeline core around a gateway.
func NewStore(gw crm.Gateway, opts Options) *Store {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}
	registry := NewStageRegistry(opts.DefaultStages...)
	return &Store{
		gw:       gw,
		registry: registry,
		cache:    NewCache(gw, registry, opts.CacheTTL),
		reporter: reporter,
	}
}

// Registry exposes the stage registry to read-only consumers.
func (s *Store) Registry() *StageRegistry {
	return s.registry
}

// Cache exposes the snapshot cache (TTL adjustment, error state).
func (s *Store) Cache() *Cache {
	return s.cache
}

// Snapshot returns the current snapshot without fetching.
func (s *Store) Snapshot() *Snapshot {
	return s.cache.Snapshot()
}

// Load fetches the pipeline, honoring the staleness window unless force is
// set.
func (s *Store) Load(ctx context.Context, force bool) (*Snapshot, error) {
	return s.cache.Load(ctx, force)
}

// Refresh is a forced Load (manual refresh button).
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	return s.cache.Load(ctx, true)
}

// runOptimistic is the transactional mutation helper: capture the current
// snapshot reference, publish the applied state, issue the remote call, and
// restore the captured reference when the gateway fails either way (thrown
// error or success=false envelope).
//
// The rollback target is the reference captured before mutating, not a clone
// taken mid-flight, so an interleaved mutation during the gateway call can
// never corrupt it.
func (s *Store) runOptimistic(ctx context.Context, op string, apply func(*Snapshot) *Snapshot, call func(context.Context) (*crm.Envelope, error), failCtx *GatewayError) (json.RawMessage, error) {
	prev := s.cache.current()
	next := apply(prev)
	if next != prev {
		s.cache.swap(next)
	}

	env, err := call(ctx)
	if err == nil {
		err = env.Err()
	}
	if err != nil {
		if next != prev {
			s.cache.swap(prev)
		}
		failCtx.Err = err
		logging.Get(logging.CategoryStore).Error("%s rolled back: %v", op, err)
		s.reporter.Failure(op, failCtx)
		return nil, failCtx
	}

	logging.StoreDebug("%s confirmed by gateway", op)
	subject := failCtx.Name
	if subject == "" {
		subject = failCtx.ID
	}
	s.reporter.Success(op, subject)
	return env.Data, nil
}

// AddLead creates a lead in the given stage. The lead appears on the board
// immediately; a failed create removes it again. The created lead (with any
// server-echoed identity) is returned.
func (s *Store) AddLead(ctx context.Context, stage string, fields map[string]any) (*crm.Lead, error) {
	const op = "add lead"
	if stage == "" {
		return nil, &ValidationError{Op: op, Reason: "stage is required"}
	}

	lead := &crm.Lead{}
	for key, value := range fields {
		lead.Set(key, value)
	}
	if lead.DisplayName() == "" {
		return nil, &ValidationError{Op: op, Reason: "lead name is required"}
	}
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	lead.Stage = stage
	lead.UpdatedAt = time.Now()

	// The CRM models kanban columns as tags, so the create payload carries
	// the target stage as a tag.
	payload := lead.Clone()
	if !containsString(payload.Tags, stage) {
		payload.Tags = append(payload.Tags, stage)
	}

	s.registry.Register(stage)

	apply := func(prev *Snapshot) *Snapshot {
		list := append(append([]*crm.Lead{}, prev.LeadsByStage[stage]...), lead)
		return prev.with(map[string][]*crm.Lead{stage: list})
	}
	failCtx := &GatewayError{Op: op, ID: lead.ID, Name: lead.DisplayName()}
	data, err := s.runOptimistic(ctx, op, apply, func(ctx context.Context) (*crm.Envelope, error) {
		return s.gw.CreateLead(ctx, payload)
	}, failCtx)
	if err != nil {
		return nil, err
	}

	if reconciled := s.reconcileCreated(lead, data); reconciled != nil {
		return reconciled, nil
	}
	return lead, nil
}

// reconcileCreated adopts the server-assigned identity of a created lead by
// swapping the optimistic copy wherever it currently lives.
func (s *Store) reconcileCreated(local *crm.Lead, data json.RawMessage) *crm.Lead {
	if len(data) == 0 {
		return nil
	}
	var created crm.Lead
	if err := json.Unmarshal(data, &created); err != nil {
		return nil
	}
	if created.ID == "" && created.AltID == "" {
		return nil
	}

	reconciled := local.Clone()
	if created.ID != "" {
		reconciled.ID = created.ID
	}
	if created.AltID != "" {
		reconciled.AltID = created.AltID
	}
	if !created.UpdatedAt.IsZero() {
		reconciled.UpdatedAt = created.UpdatedAt
	}

	cur := s.cache.current()
	for stage, leads := range cur.LeadsByStage {
		for i, l := range leads {
			if l == local {
				list := append([]*crm.Lead{}, leads...)
				list[i] = reconciled
				s.cache.swap(cur.with(map[string][]*crm.Lead{stage: list}))
				logging.StoreDebug("add lead: adopted server id %s", reconciled.ID)
				return reconciled
			}
		}
	}
	// Lead already moved or removed by a racing mutation; nothing to swap.
	return reconciled
}

// UpdateLead merges updates into the lead identified by id, stamps
// UpdatedAt, and confirms with the gateway. A lead that is unknown locally
// is not an error: the remote call still goes out with the caller-supplied
// id and only the local reconciliation is skipped.
func (s *Store) UpdateLead(ctx context.Context, id string, updates map[string]any) (json.RawMessage, error) {
	const op = "update lead"
	if id == "" {
		return nil, &ValidationError{Op: op, Reason: "lead id is required"}
	}

	target := LeadID(id)
	failCtx := &GatewayError{Op: op, ID: id}

	apply := func(prev *Snapshot) *Snapshot {
		lead, stage, idx := prev.Find(target)
		if lead == nil {
			logging.StoreDebug("%s: %s not found locally, remote update still issued", op, id)
			return prev
		}
		merged := lead.Clone()
		for key, value := range updates {
			merged.Set(key, value)
		}
		merged.UpdatedAt = time.Now()
		failCtx.Name = merged.DisplayName()

		list := append([]*crm.Lead{}, prev.LeadsByStage[stage]...)
		list[idx] = merged
		return prev.with(map[string][]*crm.Lead{stage: list})
	}

	return s.runOptimistic(ctx, op, apply, func(ctx context.Context) (*crm.Envelope, error) {
		return s.gw.UpdateLead(ctx, id, updates)
	}, failCtx)
}

// RemoveLead deletes a lead optimistically: it disappears from every stage
// list before the gateway call returns, and a failed delete restores the
// pre-filter snapshot verbatim. Composite ids ("<realId>-<suffix>") match on
// their prefix.
func (s *Store) RemoveLead(ctx context.Context, id string) error {
	const op = "remove lead"
	if id == "" {
		return &ValidationError{Op: op, Reason: "lead id is required"}
	}

	target := LeadID(id)
	failCtx := &GatewayError{Op: op, ID: id}

	apply := func(prev *Snapshot) *Snapshot {
		changes := make(map[string][]*crm.Lead)
		for stage, leads := range prev.LeadsByStage {
			kept := leads[:0:0]
			removed := false
			for _, l := range leads {
				if target.MatchesLead(l) {
					removed = true
					if failCtx.Name == "" {
						failCtx.Name = l.DisplayName()
					}
					continue
				}
				kept = append(kept, l)
			}
			if removed {
				if kept == nil {
					kept = []*crm.Lead{}
				}
				changes[stage] = kept
			}
		}
		if len(changes) == 0 {
			logging.StoreDebug("%s: %s not found locally, remote delete still issued", op, id)
			return prev
		}
		return prev.with(changes)
	}

	_, err := s.runOptimistic(ctx, op, apply, func(ctx context.Context) (*crm.Envelope, error) {
		return s.gw.DeleteLead(ctx, id)
	}, failCtx)
	return err
}

// MoveLead transfers a lead between stages: removed from the source list and
// appended to the target list (stage rewritten, UpdatedAt refreshed) before
// the gateway confirms. Moving a lead onto its own stage is a no-op with no
// gateway call. A gateway failure, including a non-exception success=false
// result, restores the prior snapshot and returns an error describing the
// intended transition.
func (s *Store) MoveLead(ctx context.Context, id, fromStage, toStage string) error {
	const op = "move lead"
	switch {
	case id == "":
		return &ValidationError{Op: op, Reason: "lead id is required"}
	case fromStage == "":
		return &ValidationError{Op: op, Reason: "source stage is required"}
	case toStage == "":
		return &ValidationError{Op: op, Reason: "target stage is required"}
	}
	if fromStage == toStage {
		logging.StoreDebug("%s: %s already in %q, nothing to do", op, id, fromStage)
		return nil
	}

	target := LeadID(id)
	failCtx := &GatewayError{Op: op, ID: id, From: fromStage, To: toStage}

	s.registry.Register(toStage)

	apply := func(prev *Snapshot) *Snapshot {
		lead, idx := prev.FindInStage(fromStage, target)
		if lead == nil {
			logging.StoreDebug("%s: %s not in %q locally, remote move still issued", op, id, fromStage)
			return prev
		}
		failCtx.Name = lead.DisplayName()

		fromList := append([]*crm.Lead{}, prev.LeadsByStage[fromStage][:idx]...)
		fromList = append(fromList, prev.LeadsByStage[fromStage][idx+1:]...)

		moved := lead.Clone()
		moved.Stage = toStage
		moved.UpdatedAt = time.Now()
		toList := append(append([]*crm.Lead{}, prev.LeadsByStage[toStage]...), moved)

		return prev.with(map[string][]*crm.Lead{fromStage: fromList, toStage: toList})
	}

	_, err := s.runOptimistic(ctx, op, apply, func(ctx context.Context) (*crm.Envelope, error) {
		return s.gw.MoveLeadToStage(ctx, id, toStage, fromStage)
	}, failCtx)
	return err
}

// UpdateLeadTags rewrites a lead's tag list. This path is deliberately not
// optimistic: tag changes are less time-critical than stage moves, so local
// state is only touched after the gateway confirms.
func (s *Store) UpdateLeadTags(ctx context.Context, id string, tags []string) error {
	const op = "update tags"
	if id == "" {
		return &ValidationError{Op: op, Reason: "lead id is required"}
	}

	env, err := s.gw.AddTagsToLead(ctx, id, tags)
	if err == nil {
		err = env.Err()
	}
	if err != nil {
		gerr := &GatewayError{Op: op, ID: id, Err: err}
		s.reporter.Failure(op, gerr)
		return gerr
	}

	target := LeadID(id)
	prev := s.cache.current()
	if lead, stage, idx := prev.Find(target); lead != nil {
		updated := lead.Clone()
		updated.Tags = append([]string(nil), tags...)
		updated.UpdatedAt = time.Now()

		list := append([]*crm.Lead{}, prev.LeadsByStage[stage]...)
		list[idx] = updated
		s.cache.swap(prev.with(map[string][]*crm.Lead{stage: list}))
		s.reporter.Success(op, updated.DisplayName())
	} else {
		s.reporter.Success(op, id)
	}
	return nil
}

// AddTag creates a tag-derived column. This is a purely local construct
// until leads are moved into it, so no gateway call happens: the stage is
// registered and an empty list is ensured in the snapshot.
func (s *Store) AddTag(name string) error {
	const op = "add tag"
	if name == "" {
		return &ValidationError{Op: op, Reason: "tag name is required"}
	}

	s.registry.Register(name)

	prev := s.cache.current()
	if _, ok := prev.LeadsByStage[name]; !ok {
		s.cache.swap(prev.with(map[string][]*crm.Lead{name: {}}))
	}
	return nil
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
