package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DeliveryState tracks an assistant reply from placeholder to final text.
// InProgress may move to Complete or Failed; both of those are final.
type DeliveryState int

const (
	StateInProgress DeliveryState = iota
	StateComplete
	StateFailed
)

func (s DeliveryState) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is one entry of the conversation.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
	State     DeliveryState
}

// Pending reports whether the message is still receiving text.
func (m Message) Pending() bool {
	return m.State == StateInProgress
}

// Failed reports whether Content holds a user-facing error text.
func (m Message) Failed() bool {
	return m.State == StateFailed
}
