package types

import "encoding/json"

// Event is one decoded stream frame. Exactly one terminal event (Done or
// ApplicationError) ends a session; DecodeError never does.
type Event interface {
	event()
}

// DataEvent carries one well-formed JSON frame payload.
type DataEvent struct {
	Payload json.RawMessage
}

// ApplicationError is a terminal error frame carrying an explicit
// code/message pair from the backend.
type ApplicationError struct {
	Code    int
	Message string
}

// DecodeError is a malformed frame. Non-terminal: the session continues.
type DecodeError struct {
	Raw   string
	Cause error
}

// Done is the completion sentinel.
type Done struct{}

func (DataEvent) event()        {}
func (ApplicationError) event() {}
func (DecodeError) event()      {}
func (Done) event()             {}

// LastSeen holds the most recently observed identifiers across a stream.
// Fields merge last-known-good: an event missing an identifier never blanks
// a previously seen value.
type LastSeen struct {
	TaskID         string
	ConversationID string
	MessageID      string
}

// Merge overwrites only the fields that are non-empty in other.
func (l *LastSeen) Merge(other LastSeen) {
	if other.TaskID != "" {
		l.TaskID = other.TaskID
	}
	if other.ConversationID != "" {
		l.ConversationID = other.ConversationID
	}
	if other.MessageID != "" {
		l.MessageID = other.MessageID
	}
}
