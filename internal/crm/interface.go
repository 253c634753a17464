package crm

import "context"

// Gateway is the remote lead persistence boundary.
//
// Implementations must return the decoded envelope for 2xx responses even
// when the envelope reports success=false; only transport and decoding
// problems surface as Go errors. Callers are expected to check both.
type Gateway interface {
	// FetchLeads returns all leads grouped by stage.
	FetchLeads(ctx context.Context) (*Envelope, error)

	// FetchMetrics returns per-stage pipeline metrics.
	FetchMetrics(ctx context.Context) (*Envelope, error)

	// CreateLead creates a lead. The target stage travels inside the
	// payload (as a tag), matching how the CRM models kanban columns.
	CreateLead(ctx context.Context, lead *Lead) (*Envelope, error)

	// UpdateLead applies a partial update to the lead with the given id.
	UpdateLead(ctx context.Context, id string, updates map[string]any) (*Envelope, error)

	// DeleteLead removes the lead with the given id.
	DeleteLead(ctx context.Context, id string) (*Envelope, error)

	// MoveLeadToStage retags the lead from one stage to another.
	MoveLeadToStage(ctx context.Context, id, toStage, fromStage string) (*Envelope, error)

	// AddTagsToLead replaces the lead's tag list.
	AddTagsToLead(ctx context.Context, id string, tags []string) (*Envelope, error)
}
