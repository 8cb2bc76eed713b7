package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/pkg/flowise"
)

const (
	// TimeoutText replaces the reply when the assistant did not answer in time.
	TimeoutText = "The request timed out. Please try again."
	// UnreachableText replaces the reply for every other failure.
	UnreachableText = "Couldn't reach the assistant. Is the Flowise instance running?"

	defaultEventBuffer = 16
)

var (
	ErrEmptyQuestion = flowise.ErrEmptyQuestion
	ErrBusy          = errors.New("a reply is still in progress")
	ErrClosed        = errors.New("session is closed")
)

// Transport answers one question. onPartial receives the accumulated
// reply whenever it grows.
type Transport interface {
	Predict(ctx context.Context, question string, onPartial func(string)) (string, error)
}

// Session owns the conversation and runs at most one turn at a time.
type Session struct {
	transport Transport
	welcome   string
	logger    *slog.Logger
	buffer    int
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	messages []Message
	active   *turn
	closed   bool
}

type turn struct {
	messageID string
	started   time.Time
	cancel    context.CancelFunc
	settled   bool
}

type result struct {
	answer string
	err    error
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithWelcomeMessage seeds the conversation (and every reset) with an
// assistant greeting.
func WithWelcomeMessage(text string) SessionOption {
	return func(s *Session) {
		s.welcome = strings.TrimSpace(text)
	}
}

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBuffer sets the capacity of each turn's event channel.
func WithEventBuffer(n int) SessionOption {
	return func(s *Session) {
		if n >= 0 {
			s.buffer = n
		}
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) SessionOption {
	return func(s *Session) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewSession creates a session answering through transport.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport: transport,
		logger:    slog.Default(),
		buffer:    defaultEventBuffer,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.messages = s.seed()
	return s
}

func (s *Session) seed() []Message {
	if s.welcome == "" {
		return nil
	}
	return []Message{{
		ID:        s.newID(),
		Role:      RoleAssistant,
		Content:   s.welcome,
		CreatedAt: s.now(),
		State:     StateComplete,
	}}
}

// Send appends the question and an in-progress reply, then asks the
// transport on a new goroutine.
//
// The returned channel carries partial events followed by exactly one
// complete or failed event, and is then closed. If the turn is cancelled
// (ctx done, Reset or Close) the channel closes without a terminal event
// and the reply stays in progress with no error text.
func (s *Session) Send(ctx context.Context, question string) (<-chan Event, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.active != nil {
		return nil, ErrBusy
	}

	now := s.now()
	s.messages = append(s.messages,
		Message{ID: s.newID(), Role: RoleUser, Content: question, CreatedAt: now, State: StateComplete},
		Message{ID: s.newID(), Role: RoleAssistant, CreatedAt: now, State: StateInProgress},
	)
	reply := s.messages[len(s.messages)-1]

	turnCtx, cancel := context.WithCancel(ctx)
	t := &turn{messageID: reply.ID, started: now, cancel: cancel}
	s.active = t

	s.logger.Info("chat_turn_start",
		"message_id", reply.ID,
		"question_length", len(question),
		"history_messages", len(s.messages),
	)

	events := make(chan Event, s.buffer)
	go s.run(turnCtx, t, question, events)
	return events, nil
}

func (s *Session) run(ctx context.Context, t *turn, question string, events chan<- Event) {
	defer close(events)
	defer t.cancel()

	// Partials are coalesced: the transport only flags that the reply
	// grew, and this loop forwards whatever the reply holds by then.
	grew := make(chan struct{}, 1)
	done := make(chan result, 1)

	go func() {
		answer, err := s.transport.Predict(ctx, question, func(text string) {
			if s.updatePartial(t, text) {
				select {
				case grew <- struct{}{}:
				default:
				}
			}
		})
		done <- result{answer: answer, err: err}
	}()

	for {
		select {
		case <-grew:
			text, ok := s.partialText(t)
			if !ok {
				continue
			}
			select {
			case events <- Event{Kind: EventPartial, MessageID: t.messageID, Text: text}:
			case <-ctx.Done():
				s.interrupted(ctx, t, events)
				return
			}
		case res := <-done:
			s.finish(ctx, t, res, events)
			return
		case <-ctx.Done():
			s.interrupted(ctx, t, events)
			return
		}
	}
}

func (s *Session) finish(ctx context.Context, t *turn, res result, events chan<- Event) {
	if ev, ok := s.settle(t, res); ok {
		deliver(ctx, events, ev)
	}
}

// interrupted handles the turn context ending first. A deadline inherited
// from the caller is a timeout failure; anything else is a silent cancel.
func (s *Session) interrupted(ctx context.Context, t *turn, events chan<- Event) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if ev, ok := s.settle(t, result{err: flowise.ErrTimeout}); ok {
			deliver(ctx, events, ev)
		}
		return
	}
	s.abandon(t, ctx.Err())
}

// deliver hands a terminal event over unless the consumer went away. Free
// buffer space is used even when ctx is already done.
func deliver(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
		return
	default:
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) updatePartial(t *turn, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.settled || s.active != t {
		return false
	}
	msg := s.find(t.messageID)
	if msg == nil || !msg.Pending() {
		return false
	}
	msg.Content = text
	return true
}

func (s *Session) partialText(t *turn) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.settled {
		return "", false
	}
	msg := s.find(t.messageID)
	if msg == nil {
		return "", false
	}
	return msg.Content, true
}

// settle records the turn outcome. It reports false when the turn was
// already settled or the outcome is a cancellation.
func (s *Session) settle(t *turn, res result) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.settled {
		return Event{}, false
	}
	t.settled = true
	if s.active == t {
		s.active = nil
	}

	elapsed := s.now().Sub(t.started)
	msg := s.find(t.messageID)
	if msg == nil {
		return Event{}, false
	}

	err := res.err
	if err == nil && strings.TrimSpace(res.answer) == "" {
		err = flowise.ErrEmptyResponse
	}

	if err != nil {
		if flowise.IsCanceled(err) {
			s.logger.Debug("chat_turn_canceled", "message_id", t.messageID)
			return Event{}, false
		}
		msg.Content = UserMessage(err)
		msg.State = StateFailed
		s.logger.Error("chat_turn_failed",
			"message_id", t.messageID,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		return Event{Kind: EventFailed, MessageID: t.messageID, Text: msg.Content, Err: err}, true
	}

	msg.Content = res.answer
	msg.State = StateComplete
	s.logger.Info("chat_turn_complete",
		"message_id", t.messageID,
		"answer_length", len(res.answer),
		"duration_ms", elapsed.Milliseconds(),
	)
	return Event{Kind: EventComplete, MessageID: t.messageID, Text: res.answer}, true
}

func (s *Session) abandon(t *turn, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.settled {
		return
	}
	t.settled = true
	if s.active == t {
		s.active = nil
	}
	s.logger.Debug("chat_turn_canceled", "message_id", t.messageID, "cause", cause)
}

// cancelActive settles the running turn without an outcome. Callers hold mu.
func (s *Session) cancelActive() {
	if s.active == nil {
		return
	}
	s.active.settled = true
	s.active.cancel()
	s.logger.Debug("chat_turn_canceled", "message_id", s.active.messageID, "cause", "session")
	s.active = nil
}

func (s *Session) find(id string) *Message {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return &s.messages[i]
		}
	}
	return nil
}

// Reset cancels any running turn and starts the conversation over.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelActive()
	s.messages = s.seed()
	s.logger.Info("chat_session_reset")
}

// Close cancels any running turn; later sends fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.cancelActive()
	s.closed = true
	s.logger.Debug("chat_session_closed", "messages", len(s.messages))
}

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Busy reports whether a turn is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Last returns the newest message.
func (s *Session) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// LastAnswer returns the newest completed assistant reply.
func (s *Session) LastAnswer() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Role == RoleAssistant && m.State == StateComplete {
			return m.Content, true
		}
	}
	return "", false
}

// UserMessage maps a turn error to the text shown in place of the reply.
func UserMessage(err error) string {
	if errors.Is(err, flowise.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return TimeoutText
	}
	return UnreachableText
}
