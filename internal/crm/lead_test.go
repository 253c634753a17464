package crm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadUnmarshalLiftsKnownKeys(t *testing.T) {
	raw := `{
		"id": "abc123",
		"_id": "64f0aa11",
		"name": "Jane Doe",
		"stage": "New Lead",
		"tags": ["VIP"],
		"updatedAt": "2026-08-01T10:30:00Z",
		"email": "jane@example.com",
		"loanAmount": 250000
	}`

	var l Lead
	require.NoError(t, json.Unmarshal([]byte(raw), &l))

	assert.Equal(t, "abc123", l.ID)
	assert.Equal(t, "64f0aa11", l.AltID)
	assert.Equal(t, "Jane Doe", l.Name)
	assert.Equal(t, "New Lead", l.Stage)
	assert.Equal(t, []string{"VIP"}, l.Tags)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC), l.UpdatedAt)
	assert.Equal(t, "jane@example.com", l.Extra["email"])
	assert.Equal(t, float64(250000), l.Extra["loanAmount"])
}

func TestLeadRoundTripPreservesUnknownFields(t *testing.T) {
	raw := `{"id":"1","name":"Jane","loanType":"FHA","score":{"fico":720}}`

	var l Lead
	require.NoError(t, json.Unmarshal([]byte(raw), &l))

	out, err := json.Marshal(&l)
	require.NoError(t, err)

	var got, want map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	require.NoError(t, json.Unmarshal([]byte(raw), &want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip dropped or altered fields (-want +got):\n%s", diff)
	}
}

func TestLeadUnparseableTimestampSurvives(t *testing.T) {
	raw := `{"id":"1","updatedAt":"three days ago"}`

	var l Lead
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	assert.True(t, l.UpdatedAt.IsZero())
	assert.Equal(t, "three days ago", l.Extra["updatedAt"])

	out, err := json.Marshal(&l)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"updatedAt":"three days ago"`)
}

func TestLeadDisplayName(t *testing.T) {
	tests := []struct {
		name string
		lead Lead
		want string
	}{
		{"name field", Lead{Name: "Jane"}, "Jane"},
		{"title fallback", Lead{Extra: map[string]any{"title": "Mr. Smith"}}, "Mr. Smith"},
		{"name wins over title", Lead{Name: "Jane", Extra: map[string]any{"title": "x"}}, "Jane"},
		{"neither", Lead{ID: "1"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.lead.DisplayName())
		})
	}
}

func TestLeadCloneIsIndependent(t *testing.T) {
	orig := &Lead{
		ID:    "1",
		Tags:  []string{"VIP"},
		Extra: map[string]any{"email": "a@b.c"},
	}
	clone := orig.Clone()

	clone.Tags[0] = "changed"
	clone.Extra["email"] = "x@y.z"

	assert.Equal(t, "VIP", orig.Tags[0])
	assert.Equal(t, "a@b.c", orig.Extra["email"])

	var nilLead *Lead
	assert.Nil(t, nilLead.Clone())
}

func TestLeadSetRoutesKeys(t *testing.T) {
	l := &Lead{}
	l.Set("name", "Jane")
	l.Set("stage", "Contacted")
	l.Set("tags", []any{"VIP", 42, "Hot"})
	l.Set("email", "jane@example.com")
	ts := time.Now()
	l.Set("updatedAt", ts)

	assert.Equal(t, "Jane", l.Name)
	assert.Equal(t, "Contacted", l.Stage)
	assert.Equal(t, []string{"VIP", "Hot"}, l.Tags, "non-string tags are skipped")
	assert.Equal(t, "jane@example.com", l.Extra["email"])
	assert.Equal(t, ts, l.UpdatedAt)
	assert.NotContains(t, l.Extra, "name")
}
