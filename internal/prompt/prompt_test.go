package prompt_test

import (
	"strings"
	"testing"

	"github.com/cliolabs/clio/internal/prompt"
)

func TestGroundedEmbedsRetrievedText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		retrieved string
	}{
		{name: "plain answer", retrieved: "Page 3: cash transfers raised enrolment by 12%."},
		{name: "sentinel", retrieved: "No relevant information found in the documents."},
		{name: "multiline", retrieved: "Page 1: first.\nPage 2: second."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := prompt.Grounded(tt.retrieved)
			if !strings.Contains(got, tt.retrieved) {
				t.Errorf("Grounded output does not embed retrieved text %q", tt.retrieved)
			}
		})
	}
}

func TestGroundedIsPure(t *testing.T) {
	t.Parallel()

	a := prompt.Grounded("same input")
	b := prompt.Grounded("same input")
	if a != b {
		t.Error("Grounded is not deterministic for identical input")
	}
}

func TestCanvasGuideNamesTools(t *testing.T) {
	t.Parallel()

	for _, tool := range []string{"createDocument", "updateDocument"} {
		if !strings.Contains(prompt.CanvasGuide, tool) {
			t.Errorf("CanvasGuide does not mention %s", tool)
		}
	}
}
