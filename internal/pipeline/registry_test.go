package pipeline

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryPreservesInsertionOrder(t *testing.T) {
	r := NewStageRegistry("New Lead", "Contacted")
	r.Register("Closed")
	r.Register("Contacted")

	got := r.Names()
	want := []string{"New Lead", "Contacted", "Closed"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryRegister(t *testing.T) {
	tests := []struct {
		name    string
		stage   string
		added   bool
		wantLen int
	}{
		{"new name", "Won", true, 2},
		{"duplicate", "New Lead", false, 1},
		{"case sensitive", "new lead", true, 2},
		{"empty rejected", "", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewStageRegistry("New Lead")
			if added := r.Register(tt.stage); added != tt.added {
				t.Errorf("Register(%q) = %v, want %v", tt.stage, added, tt.added)
			}
			if r.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", r.Len(), tt.wantLen)
			}
		})
	}
}

func TestRegistryHas(t *testing.T) {
	r := NewStageRegistry("New Lead")
	if !r.Has("New Lead") {
		t.Error("Has should find a registered stage")
	}
	if r.Has("new lead") {
		t.Error("Has must be case-sensitive")
	}
}

func TestRegistryNamesReturnsCopy(t *testing.T) {
	r := NewStageRegistry("New Lead", "Contacted")
	names := r.Names()
	names[0] = "mutated"
	if r.Names()[0] != "New Lead" {
		t.Error("callers must not be able to mutate registry order")
	}
}

func TestRegistryConcurrentRegister(t *testing.T) {
	r := NewStageRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Register(fmt.Sprintf("stage-%d", j))
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Fatalf("Len() = %d after concurrent registration, want 50", r.Len())
	}
}
