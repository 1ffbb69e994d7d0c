package stream_test

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/cliolabs/clio/internal/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStreamPreservesOrder(t *testing.T) {
	t.Parallel()

	s := stream.New(16)
	want := []stream.Event{
		{Type: stream.TypeID, Content: "doc-1"},
		{Type: stream.TypeTitle, Content: "Essay"},
		{Type: stream.TypeClear, Content: "Essay"},
		{Type: stream.TypeTextDelta, Content: "Once"},
		{Type: stream.TypeTextDelta, Content: " upon"},
		{Type: stream.TypeFinish, Content: ""},
	}

	for _, e := range want {
		if !s.Emit(e) {
			t.Fatalf("Emit(%v) = false, want true", e)
		}
	}
	s.Close()

	var got []stream.Event
	for {
		select {
		case e := <-s.Events():
			got = append(got, e)
			continue
		default:
		}
		break
	}

	if len(got) != len(want) {
		t.Fatalf("received %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEmitAfterCloseDropped(t *testing.T) {
	t.Parallel()

	s := stream.New(1)
	s.Close()

	if s.Emit(stream.Event{Type: stream.TypeText, Content: "late"}) {
		t.Error("Emit after Close = true, want false")
	}
	select {
	case e := <-s.Events():
		t.Errorf("received %v after close, want none", e)
	default:
	}
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()

	s := stream.New(0)
	s.Close()
	s.Close()

	select {
	case <-s.Done():
	default:
		t.Error("Done not closed after Close")
	}
}

func TestCloseUnblocksProducer(t *testing.T) {
	t.Parallel()

	s := stream.New(0)
	emitted := make(chan bool)
	go func() {
		// No consumer; blocks until the stream is closed.
		emitted <- s.Emit(stream.Event{Type: stream.TypeText, Content: "x"})
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case ok := <-emitted:
		if ok {
			t.Error("Emit on abandoned stream = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("producer still blocked after Close")
	}
}

func TestBufferedEventsReadableAfterClose(t *testing.T) {
	t.Parallel()

	s := stream.New(4)
	s.Emit(stream.Event{Type: stream.TypeText, Content: "a"})
	s.Emit(stream.Event{Type: stream.TypeText, Content: "b"})
	s.Close()

	for _, want := range []string{"a", "b"} {
		select {
		case e := <-s.Events():
			if e.Content != want {
				t.Errorf("Content = %v, want %q", e.Content, want)
			}
		default:
			t.Fatalf("buffered event %q lost after close", want)
		}
	}
}
