package model_test

import (
	"testing"

	"github.com/cliolabs/clio/internal/model"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		id         string
		wantOK     bool
		wantCanvas bool
	}{
		{name: "small model", id: "gpt-4o-mini", wantOK: true},
		{name: "large model", id: "gpt-4o", wantOK: true},
		{name: "canvas model", id: "gpt-4o-canvas", wantOK: true, wantCanvas: true},
		{name: "unknown id", id: "gpt-5-nano", wantOK: false},
		{name: "empty id", id: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, ok := model.Lookup(tt.id)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.id, ok, tt.wantOK)
			}
			if ok && m.Canvas != tt.wantCanvas {
				t.Errorf("Lookup(%q).Canvas = %v, want %v", tt.id, m.Canvas, tt.wantCanvas)
			}
			if ok && m.APIModel == "" {
				t.Errorf("Lookup(%q).APIModel is empty", tt.id)
			}
		})
	}
}

func TestDefaultInCatalog(t *testing.T) {
	t.Parallel()

	if _, ok := model.Lookup(model.DefaultID); !ok {
		t.Errorf("DefaultID %q not in catalog", model.DefaultID)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	t.Parallel()

	a := model.All()
	if len(a) == 0 {
		t.Fatal("All() returned empty catalog")
	}
	a[0].ID = "mutated"
	if b := model.All(); b[0].ID == "mutated" {
		t.Error("All() exposes internal catalog slice")
	}
}
