package evaluator

import (
	"sync"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/processor"
)

// Mailbox queues functions for the evaluation goroutine. It is created
// before the network so that processor factories can be handed it as their
// processor.Dispatcher; the evaluator drains it in Run.
type Mailbox struct {
	ch     chan func()
	closed chan struct{}
	once   sync.Once
}

var _ processor.Dispatcher = (*Mailbox)(nil)

// NewMailbox creates a mailbox holding up to size pending functions.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = DefaultConfig().MailboxSize
	}
	return &Mailbox{ch: make(chan func(), size), closed: make(chan struct{})}
}

// Dispatch queues fn. It blocks while the mailbox is full and must not be
// called from the evaluation goroutine.
func (m *Mailbox) Dispatch(fn func()) error {
	if fn == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Mailbox", "Dispatch", "nil function check")
	}
	select {
	case <-m.closed:
		return errors.WrapTransient(errors.ErrShuttingDown, "Mailbox", "Dispatch", "mailbox closed")
	default:
	}
	select {
	case m.ch <- fn:
		return nil
	case <-m.closed:
		return errors.WrapTransient(errors.ErrShuttingDown, "Mailbox", "Dispatch", "mailbox closed")
	}
}

// Close rejects further dispatches. Queued functions are dropped.
func (m *Mailbox) Close() {
	m.once.Do(func() { close(m.closed) })
}

// Len returns the number of queued functions.
func (m *Mailbox) Len() int { return len(m.ch) }
