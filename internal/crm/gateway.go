// Package crm is the boundary to the remote CRM REST API.
//
// Every gateway call returns a uniform envelope {success, data, error}. The
// pipeline core treats a transport error and a success=false envelope the
// same way: both mean the remote mutation did not happen.
package crm

import (
	"encoding/json"
	"fmt"
)

// Envelope is the uniform result wrapper returned by every CRM endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Err returns a non-nil error when the envelope reports failure.
func (e *Envelope) Err() error {
	if e == nil {
		return fmt.Errorf("empty gateway response")
	}
	if e.Success {
		return nil
	}
	if e.Error != "" {
		return fmt.Errorf("%s", e.Error)
	}
	return fmt.Errorf("gateway reported failure")
}

// LeadsData is the payload of FetchLeads: leads grouped by stage name.
type LeadsData struct {
	Leads map[string][]*Lead `json:"leads"`
}

// StageMetrics holds per-stage metrics (avgTime, conversion, ...).
// The set of keys is owned by the CRM; unknown keys are preserved.
type StageMetrics map[string]any

// DecodeLeads decodes a FetchLeads envelope payload.
func (e *Envelope) DecodeLeads() (map[string][]*Lead, error) {
	if len(e.Data) == 0 {
		return map[string][]*Lead{}, nil
	}
	var payload LeadsData
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode leads payload: %w", err)
	}
	if payload.Leads == nil {
		payload.Leads = map[string][]*Lead{}
	}
	return payload.Leads, nil
}

// DecodeMetrics decodes a FetchMetrics envelope payload. The CRM returns
// either the bare stage->metrics map or a {"metrics": {...}} wrapper; both
// are accepted.
func (e *Envelope) DecodeMetrics() (map[string]StageMetrics, error) {
	if len(e.Data) == 0 {
		return map[string]StageMetrics{}, nil
	}
	var wrapped struct {
		Metrics map[string]StageMetrics `json:"metrics"`
	}
	if err := json.Unmarshal(e.Data, &wrapped); err == nil && wrapped.Metrics != nil {
		return wrapped.Metrics, nil
	}
	var direct map[string]StageMetrics
	if err := json.Unmarshal(e.Data, &direct); err != nil {
		return nil, fmt.Errorf("failed to decode metrics payload: %w", err)
	}
	if direct == nil {
		direct = map[string]StageMetrics{}
	}
	return direct, nil
}
