// Package confirm brokers interactive yes/no confirmations for destructive
// operations. Exactly one prompt is outstanding at a time; callers that
// request a confirmation while another is pending wait in FIFO order rather
// than clobbering the earlier request.
package confirm

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned to requesters when the broker shuts down.
var ErrClosed = errors.New("confirm: broker closed")

// Options describe the prompt shown to the operator.
type Options struct {
	Title   string // Short action name, e.g. "Restart unhealthy bots".
	Message string // Detail line describing the consequence.
	Danger  bool   // Marks irreversible actions.
}

// Prompt is one pending confirmation awaiting an answer.
type Prompt struct {
	Options Options
	answer  chan bool
}

// Broker serializes confirmation prompts.
type Broker struct {
	mu      sync.Mutex
	queue   []*Prompt
	current *Prompt
	ready   chan struct{}
	closed  bool
}

// NewBroker constructs an empty broker.
func NewBroker() *Broker {
	return &Broker{ready: make(chan struct{}, 1)}
}

// Request enqueues a confirmation and blocks until an operator answers it,
// the context is cancelled, or the broker closes. A cancelled context counts
// as a declined confirmation and the prompt is withdrawn.
func (b *Broker) Request(ctx context.Context, opts Options) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	prompt := &Prompt{Options: opts, answer: make(chan bool, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false, ErrClosed
	}
	b.queue = append(b.queue, prompt)
	b.promoteLocked()
	b.mu.Unlock()

	select {
	case answer, ok := <-prompt.answer:
		if !ok {
			return false, ErrClosed
		}
		return answer, nil
	case <-ctx.Done():
		b.withdraw(prompt)
		return false, ctx.Err()
	}
}

// Pending returns the prompt currently awaiting an answer, or nil.
func (b *Broker) Pending() *Prompt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Resolve answers the current prompt and promotes the next queued one. It
// reports whether a prompt was actually pending.
func (b *Broker) Resolve(answer bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return false
	}
	b.current.answer <- answer
	b.current = nil
	b.promoteLocked()
	return true
}

// Close rejects every pending and queued prompt.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.current != nil {
		close(b.current.answer)
		b.current = nil
	}
	for _, prompt := range b.queue {
		close(prompt.answer)
	}
	b.queue = nil
}

// withdraw removes a prompt whose requester gave up.
func (b *Broker) withdraw(prompt *Prompt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == prompt {
		b.current = nil
		b.promoteLocked()
		return
	}
	for i, queued := range b.queue {
		if queued == prompt {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return
		}
	}
}

// promoteLocked moves the head of the queue into the active slot. Callers
// hold b.mu.
func (b *Broker) promoteLocked() {
	if b.current != nil || len(b.queue) == 0 {
		return
	}
	b.current = b.queue[0]
	b.queue = b.queue[1:]
}
