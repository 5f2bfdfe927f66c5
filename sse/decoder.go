// Package sse turns an arbitrarily-chunked byte stream into discrete event
// frames. One frame per `data: <json-or-sentinel>` line; the `[DONE]`
// sentinel terminates the stream. The decoder knows nothing about auth,
// retries or transport.
package sse

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/smallnest/taskwire/types"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Decoder accumulates undecoded trailing bytes across reads and emits
// events for every complete line. Decoding the same byte sequence split
// into any partition of chunks yields the identical event sequence.
//
// Not safe for concurrent use; one decoder serves one stream session.
type Decoder struct {
	buffer   string
	done     bool
	lastSeen types.LastSeen
}

// NewDecoder creates a decoder for a fresh session.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns the events decoded from every complete
// line now available. After a terminal event (Done or ApplicationError)
// the decoder emits nothing more, even for lines already buffered.
func (d *Decoder) Feed(chunk string) []types.Event {
	if d.done {
		return nil
	}

	d.buffer += chunk
	segments := strings.Split(d.buffer, "\n")
	// The last segment may be a partial line; keep it for the next read.
	d.buffer = segments[len(segments)-1]

	var events []types.Event
	for _, line := range segments[:len(segments)-1] {
		ev, terminal := d.decodeLine(line)
		if ev != nil {
			events = append(events, ev)
		}
		if terminal {
			d.done = true
			break
		}
	}
	return events
}

// Flush processes a trailing unterminated frame at end of stream. The
// transport may legitimately omit the newline on the very last line.
func (d *Decoder) Flush() []types.Event {
	if d.done || d.buffer == "" {
		return nil
	}
	line := d.buffer
	d.buffer = ""

	ev, terminal := d.decodeLine(line)
	if terminal {
		d.done = true
	}
	if ev == nil {
		return nil
	}
	return []types.Event{ev}
}

// Done reports whether a terminal event has been emitted.
func (d *Decoder) Done() bool {
	return d.done
}

// LastSeen returns the identifiers merged from every decoded data event.
func (d *Decoder) LastSeen() types.LastSeen {
	return d.lastSeen
}

func (d *Decoder) decodeLine(line string) (types.Event, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		// Comments, blank lines and unknown fields are not frames.
		return nil, false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return nil, false
	}
	if payload == doneSentinel {
		return types.Done{}, true
	}

	var probe any
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		// A malformed frame must not abort the session.
		return types.DecodeError{Raw: payload, Cause: err}, false
	}

	d.lastSeen.Merge(types.LastSeen{
		TaskID:         gjson.Get(payload, "task_id").String(),
		ConversationID: gjson.Get(payload, "conversation_id").String(),
		MessageID:      gjson.Get(payload, "message_id").String(),
	})

	code := gjson.Get(payload, "code")
	message := gjson.Get(payload, "message")
	if code.Exists() && message.Exists() {
		return types.ApplicationError{Code: int(code.Int()), Message: message.String()}, true
	}

	return types.DataEvent{Payload: json.RawMessage(payload)}, false
}
