// internal/notify/notify.go
package notify

import (
	"context"
	"sync"
)

// Message is a channel-agnostic notification. Recipient is interpreted by
// the channel the message is routed to: an email address for mail, a
// phone number for SMS.
type Message struct {
	Recipient string
	Subject   string
	Body      string
	Source    string
	Locale    string
}

// Notifier delivers messages back to consumers and sale associates.
// Delivery is best effort; implementations must not fail the workflow
// operation that triggered the notification.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Recorder collects messages instead of delivering them.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a snapshot of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
