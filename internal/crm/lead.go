package crm

import (
	"encoding/json"
	"time"
)

// Lead is a CRM lead record.
//
// The CRM attaches arbitrary fields to leads (email, loanAmount, loanType,
// ...); anything not modelled here is carried in Extra so that update
// round-trips never discard fields this code does not know about. Identity
// is the primary "id", with the legacy "_id" alias resolving to the same
// lead.
type Lead struct {
	ID        string
	AltID     string // legacy "_id" alias
	Name      string
	Stage     string
	Tags      []string
	UpdatedAt time.Time
	Extra     map[string]any
}

// leadKnownKeys are the JSON keys lifted into struct fields.
var leadKnownKeys = map[string]bool{
	"id":        true,
	"_id":       true,
	"name":      true,
	"stage":     true,
	"tags":      true,
	"updatedAt": true,
}

// UnmarshalJSON lifts the known keys and preserves everything else in Extra.
func (l *Lead) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = Lead{}
	for key, val := range raw {
		switch key {
		case "id":
			_ = json.Unmarshal(val, &l.ID)
		case "_id":
			_ = json.Unmarshal(val, &l.AltID)
		case "name":
			_ = json.Unmarshal(val, &l.Name)
		case "stage":
			_ = json.Unmarshal(val, &l.Stage)
		case "tags":
			_ = json.Unmarshal(val, &l.Tags)
		case "updatedAt":
			var ts string
			if err := json.Unmarshal(val, &ts); err == nil {
				if parsed, perr := time.Parse(time.RFC3339, ts); perr == nil {
					l.UpdatedAt = parsed
					continue
				}
			}
			// Unparseable timestamp: keep the raw value so it survives
			// a round-trip untouched.
			l.stashExtra(key, val)
		default:
			l.stashExtra(key, val)
		}
	}
	return nil
}

func (l *Lead) stashExtra(key string, val json.RawMessage) {
	if l.Extra == nil {
		l.Extra = make(map[string]any)
	}
	var v any
	if err := json.Unmarshal(val, &v); err == nil {
		l.Extra[key] = v
	}
}

// MarshalJSON writes the known fields plus everything preserved in Extra.
func (l *Lead) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Extra)+6)
	for k, v := range l.Extra {
		if !leadKnownKeys[k] {
			out[k] = v
		} else if k == "updatedAt" && l.UpdatedAt.IsZero() {
			out[k] = v // raw unparseable timestamp carried through
		}
	}
	if l.ID != "" {
		out["id"] = l.ID
	}
	if l.AltID != "" {
		out["_id"] = l.AltID
	}
	if l.Name != "" {
		out["name"] = l.Name
	}
	if l.Stage != "" {
		out["stage"] = l.Stage
	}
	if l.Tags != nil {
		out["tags"] = l.Tags
	}
	if !l.UpdatedAt.IsZero() {
		out["updatedAt"] = l.UpdatedAt.Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// DisplayName returns the human-readable name for notifications. Some CRM
// records carry "title" instead of "name".
func (l *Lead) DisplayName() string {
	if l.Name != "" {
		return l.Name
	}
	if title, ok := l.Extra["title"].(string); ok {
		return title
	}
	return ""
}

// Clone returns a copy that shares no mutable state with the original.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	out := *l
	if l.Tags != nil {
		out.Tags = append([]string(nil), l.Tags...)
	}
	if l.Extra != nil {
		out.Extra = make(map[string]any, len(l.Extra))
		for k, v := range l.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// Set assigns a field by its CRM key, routing known keys to struct fields
// and everything else to Extra.
func (l *Lead) Set(key string, value any) {
	switch key {
	case "id":
		if s, ok := value.(string); ok {
			l.ID = s
		}
	case "_id":
		if s, ok := value.(string); ok {
			l.AltID = s
		}
	case "name":
		if s, ok := value.(string); ok {
			l.Name = s
		}
	case "stage":
		if s, ok := value.(string); ok {
			l.Stage = s
		}
	case "tags":
		switch tags := value.(type) {
		case []string:
			l.Tags = append([]string(nil), tags...)
		case []any:
			out := make([]string, 0, len(tags))
			for _, t := range tags {
				if s, ok := t.(string); ok {
					out = append(out, s)
				}
			}
			l.Tags = out
		}
	case "updatedAt":
		if ts, ok := value.(time.Time); ok {
			l.UpdatedAt = ts
		}
	default:
		if l.Extra == nil {
			l.Extra = make(map[string]any)
		}
		l.Extra[key] = value
	}
}
