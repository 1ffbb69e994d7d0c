package conversation

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestMessageCodecRoundTrip(t *testing.T) {
	t.Parallel()

	in := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("what is the policy impact?")),
		ai.NewModelMessage(ai.NewTextPart("the study reports a 12% increase")),
	}

	raw, err := encodeMessages(in)
	if err != nil {
		t.Fatalf("encodeMessages: %v", err)
	}

	out, err := decodeMessages(raw)
	if err != nil {
		t.Fatalf("decodeMessages: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d messages, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Role != in[i].Role {
			t.Errorf("message[%d].Role = %v, want %v", i, out[i].Role, in[i].Role)
		}
		if len(out[i].Content) != 1 {
			t.Fatalf("message[%d] has %d parts, want 1", i, len(out[i].Content))
		}
		if got, want := out[i].Content[0].Text, in[i].Content[0].Text; got != want {
			t.Errorf("message[%d] text = %q, want %q", i, got, want)
		}
	}
}

func TestEncodeMessagesNil(t *testing.T) {
	t.Parallel()

	raw, err := encodeMessages(nil)
	if err != nil {
		t.Fatalf("encodeMessages(nil): %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("encodeMessages(nil) = %s, want []", raw)
	}
}

func TestDecodeMessagesMalformed(t *testing.T) {
	t.Parallel()

	if _, err := decodeMessages([]byte(`{"not": "a list"`)); err == nil {
		t.Error("decodeMessages accepted malformed JSON")
	}
}
