package chat

// EventKind is the type of a turn event.
type EventKind int

const (
	// EventPartial carries the accumulated reply so far.
	EventPartial EventKind = iota
	// EventComplete carries the final reply.
	EventComplete
	// EventFailed carries the user-facing error text and the cause.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventComplete:
		return "complete"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is delivered on the channel returned by Session.Send.
type Event struct {
	Kind      EventKind
	MessageID string
	Text      string
	Err       error
}

// Terminal reports whether the event settles the turn.
func (e Event) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventFailed
}
