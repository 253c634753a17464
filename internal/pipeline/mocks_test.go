package pipeline

import (
	"context"
	"encoding/json"
	"sync"

	"pipeboard/internal/crm"
)

// --- MockGateway ---

// mockGateway is a scriptable in-memory crm.Gateway. Each call family can be
// failed with a transport error (err fields) or rejected with a
// success=false envelope (reject fields) to exercise both failure paths.
type mockGateway struct {
	mu sync.Mutex

	// Served by FetchLeads / FetchMetrics.
	leads   map[string][]*crm.Lead
	metrics map[string]crm.StageMetrics

	// Failure scripting.
	fetchLeadsErr   error
	fetchMetricsErr error
	leadsReject     string
	metricsReject   string
	createErr       error
	updateErr       error
	deleteErr       error
	moveErr         error
	tagsErr         error
	rejectCreate    string
	rejectUpdate    string
	rejectDelete    string
	rejectMove      string
	rejectTags      string

	// Optional data echoed by CreateLead.
	createData any

	// Call accounting.
	fetchLeadsCalls   int
	fetchMetricsCalls int
	createCalls       int
	updateCalls       int
	deleteCalls       int
	moveCalls         int
	tagsCalls         int

	// Last-seen arguments.
	lastCreated  *crm.Lead
	lastUpdateID string
	lastUpdates  map[string]any
	lastDeleteID string
	lastMoveID   string
	lastMoveTo   string
	lastMoveFrom string
	lastTagsID   string
	lastTags     []string
}

func okEnvelope(data any) *crm.Envelope {
	if data == nil {
		return &crm.Envelope{Success: true}
	}
	raw, _ := json.Marshal(data)
	return &crm.Envelope{Success: true, Data: raw}
}

func rejectEnvelope(msg string) *crm.Envelope {
	return &crm.Envelope{Success: false, Error: msg}
}

func (m *mockGateway) FetchLeads(ctx context.Context) (*crm.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchLeadsCalls++
	if m.fetchLeadsErr != nil {
		return nil, m.fetchLeadsErr
	}
	if m.leadsReject != "" {
		return rejectEnvelope(m.leadsReject), nil
	}
	return okEnvelope(crm.LeadsData{Leads: m.leads}), nil
}

func (m *mockGateway) FetchMetrics(ctx context.Context) (*crm.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchMetricsCalls++
	if m.fetchMetricsErr != nil {
		return nil, m.fetchMetricsErr
	}
	if m.metricsReject != "" {
		return rejectEnvelope(m.metricsReject), nil
	}
	return okEnvelope(m.metrics), nil
}

func (m *mockGateway) CreateLead(ctx context.Context, lead *crm.Lead) (*crm.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	m.lastCreated = lead
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.rejectCreate != "" {
		return rejectEnvelope(m.rejectCreate), nil
	}
	return okEnvelope(m.createData), nil
}

func (m *mockGateway) UpdateLead(ctx context.Context, id string, updates map[string]any) (*crm.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	m.lastUpdateID = id
	m.lastUpdates = updates
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.rejectUpdate != "" {
		return rejectEnvelope(m.rejectUpdate), nil
	}
	return okEnvelope(nil), nil
}

func (m *mockGateway) DeleteLead(ctx context.Context, id string) (*crm.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	m.lastDeleteID = id
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	if m.rejectDelete != "" {
		return rejectEnvelope(m.rejectDelete), nil
	}
	return okEnvelope(nil), nil
}

func (m *mockGateway) MoveLeadToStage(ctx context.Context, id, toStage, fromStage string) (*crm.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveCalls++
	m.lastMoveID = id
	m.lastMoveTo = toStage
	m.lastMoveFrom = fromStage
	if m.moveErr != nil {
		return nil, m.moveErr
	}
	if m.rejectMove != "" {
		return rejectEnvelope(m.rejectMove), nil
	}
	return okEnvelope(nil), nil
}

func (m *mockGateway) AddTagsToLead(ctx context.Context, id string, tags []string) (*crm.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagsCalls++
	m.lastTagsID = id
	m.lastTags = tags
	if m.tagsErr != nil {
		return nil, m.tagsErr
	}
	if m.rejectTags != "" {
		return rejectEnvelope(m.rejectTags), nil
	}
	return okEnvelope(nil), nil
}

// --- test reporter ---

type recordingReporter struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (r *recordingReporter) Success(op, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, op)
}

func (r *recordingReporter) Failure(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op)
}
