package sse

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/smallnest/taskwire/types"
)

func drain(d *Decoder, chunks ...string) []types.Event {
	var events []types.Event
	for _, chunk := range chunks {
		events = append(events, d.Feed(chunk)...)
	}
	events = append(events, d.Flush()...)
	return events
}

func eventKinds(events []types.Event) []string {
	kinds := make([]string, 0, len(events))
	for _, ev := range events {
		switch ev.(type) {
		case types.DataEvent:
			kinds = append(kinds, "data")
		case types.ApplicationError:
			kinds = append(kinds, "app_error")
		case types.DecodeError:
			kinds = append(kinds, "decode_error")
		case types.Done:
			kinds = append(kinds, "done")
		}
	}
	return kinds
}

func TestDecoderBasicStream(t *testing.T) {
	stream := "data: {\"task_id\":\"t1\"}\n" +
		"data: {\"message_id\":\"m1\"}\n" +
		"data: [DONE]\n"

	d := NewDecoder()
	events := drain(d, stream)

	want := []string{"data", "data", "done"}
	if got := eventKinds(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected event sequence: %v", got)
	}
	if !d.Done() {
		t.Fatalf("decoder should be done after sentinel")
	}
}

// eventSummaries captures kind and content, so reordered or altered
// payloads fail the comparison too.
func eventSummaries(events []types.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		switch ev := ev.(type) {
		case types.DataEvent:
			out = append(out, "data:"+string(ev.Payload))
		case types.ApplicationError:
			out = append(out, fmt.Sprintf("app_error:%d:%s", ev.Code, ev.Message))
		case types.DecodeError:
			out = append(out, "decode_error:"+ev.Raw)
		case types.Done:
			out = append(out, "done")
		}
	}
	return out
}

func TestDecoderChunkBoundaryIndependence(t *testing.T) {
	stream := "data: {\"task_id\":\"t1\",\"conversation_id\":\"c1\"}\n" +
		": keepalive comment\n" +
		"data: {bad json\n" +
		"data: {\"message_id\":\"m1\"}\n" +
		"data: [DONE]\n"

	reference := drain(NewDecoder(), stream)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 100; trial++ {
		var chunks []string
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(len(rest))
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		got := drain(NewDecoder(), chunks...)
		if !reflect.DeepEqual(eventSummaries(got), eventSummaries(reference)) {
			t.Fatalf("trial %d: partition %q changed event sequence: %v vs %v",
				trial, chunks, eventSummaries(got), eventSummaries(reference))
		}
	}

	// Degenerate partition: one byte at a time.
	var bytes []string
	for i := 0; i < len(stream); i++ {
		bytes = append(bytes, stream[i:i+1])
	}
	got := drain(NewDecoder(), bytes...)
	if !reflect.DeepEqual(eventSummaries(got), eventSummaries(reference)) {
		t.Fatalf("byte-at-a-time partition changed event sequence: %v", eventSummaries(got))
	}
}

func TestDecoderSentinelExclusivity(t *testing.T) {
	d := NewDecoder()
	events := d.Feed("data: [DONE]\ndata: {\"task_id\":\"late\"}\n")

	if got := eventKinds(events); !reflect.DeepEqual(got, []string{"done"}) {
		t.Fatalf("lines after the sentinel must not be processed: %v", got)
	}
	if more := d.Feed("data: {\"task_id\":\"later\"}\n"); len(more) != 0 {
		t.Fatalf("done decoder must stay silent, got %v", eventKinds(more))
	}
	if got := d.LastSeen(); got.TaskID != "" {
		t.Fatalf("identifiers must not be read past the sentinel: %+v", got)
	}
}

func TestDecoderResilienceToMalformedFrame(t *testing.T) {
	d := NewDecoder()
	events := drain(d,
		"data: {bad json\n",
		"data: {\"task_id\":\"t1\"}\n",
		"data: [DONE]\n",
	)

	want := []string{"decode_error", "data", "done"}
	if got := eventKinds(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected event sequence: %v", got)
	}

	derr := events[0].(types.DecodeError)
	if derr.Raw != "{bad json" || derr.Cause == nil {
		t.Fatalf("decode error should carry the raw frame and cause: %+v", derr)
	}
	if d.LastSeen().TaskID != "t1" {
		t.Fatalf("valid frame after a malformed one must still be decoded")
	}
}

func TestDecoderApplicationErrorIsTerminal(t *testing.T) {
	d := NewDecoder()
	events := d.Feed("data: {\"code\":42,\"message\":\"task rejected\"}\ndata: {\"task_id\":\"t1\"}\n")

	if got := eventKinds(events); !reflect.DeepEqual(got, []string{"app_error"}) {
		t.Fatalf("application error must terminate the stream: %v", got)
	}
	appErr := events[0].(types.ApplicationError)
	if appErr.Code != 42 || appErr.Message != "task rejected" {
		t.Fatalf("unexpected application error: %+v", appErr)
	}
	if !d.Done() {
		t.Fatalf("decoder should be done after an application error")
	}
}

func TestDecoderLastKnownGoodMerge(t *testing.T) {
	d := NewDecoder()
	drain(d,
		"data: {\"task_id\":\"t1\"}\n",
		"data: {\"conversation_id\":\"c1\"}\n",
		"data: [DONE]\n",
	)

	ids := d.LastSeen()
	if ids.TaskID != "t1" || ids.ConversationID != "c1" || ids.MessageID != "" {
		t.Fatalf("identifiers must merge across events: %+v", ids)
	}
}

func TestDecoderFlushHandlesMissingTrailingNewline(t *testing.T) {
	d := NewDecoder()
	events := d.Feed("data: {\"task_id\":\"t1\"}\ndata: [DONE]")
	if got := eventKinds(events); !reflect.DeepEqual(got, []string{"data"}) {
		t.Fatalf("unexpected events before flush: %v", got)
	}

	flushed := d.Flush()
	if got := eventKinds(flushed); !reflect.DeepEqual(got, []string{"done"}) {
		t.Fatalf("unterminated sentinel line must be processed at stream end: %v", got)
	}
}

func TestDecoderAbruptCloseLeavesNoTerminal(t *testing.T) {
	d := NewDecoder()
	d.Feed("data: {\"task_id\":\"t1\"}\n")

	if events := d.Flush(); len(events) != 0 {
		t.Fatalf("empty buffer flush should emit nothing: %v", eventKinds(events))
	}
	if d.Done() {
		t.Fatalf("abrupt close must not look like a completed stream")
	}
}

func TestDecoderIgnoresNonDataLines(t *testing.T) {
	d := NewDecoder()
	events := drain(d,
		"event: ping\n",
		": comment line\n",
		"\n",
		"data: [DONE]\n",
	)

	if got := eventKinds(events); !reflect.DeepEqual(got, []string{"done"}) {
		t.Fatalf("non-data lines must be ignored: %v", got)
	}
}
