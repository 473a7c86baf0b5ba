// Package session implements interactive chat sessions: a command handler can
// claim a sender's follow-up messages and consume them until it stops, the
// deadline passes, or the sender goes quiet.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sodiumlabs/osubot/telemetry"
)

var (
	// ErrTimeout is returned by Await when the deadline passes without the
	// handler stopping the session.
	ErrTimeout = errors.New("session timed out")
	// ErrSessionActive is returned by Await when the sender already has an
	// open session.
	ErrSessionActive = errors.New("session already active for sender")
)

// Message is one chat message routed into a session.
type Message struct {
	SenderID string
	Text     string
}

// Signal tells the dispatcher what to do after a handler processed a message.
type Signal struct {
	stop   bool
	extend time.Duration
}

// Stop ends the session; Await returns nil.
func Stop() Signal { return Signal{stop: true} }

// Keep extends the session deadline to now+d.
func Keep(d time.Duration) Signal { return Signal{extend: d} }

// Continue consumes the message without touching the deadline.
func Continue() Signal { return Signal{} }

// Handler processes one message of an open session.
type Handler func(Message) Signal

// Dispatcher routes incoming chat messages to whichever session has claimed
// the sender, if any.
type Dispatcher struct {
	mu     sync.Mutex
	claims map[string]chan Message
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{claims: make(map[string]chan Message)}
}

// Offer hands an incoming message to the sender's open session. It returns
// false when no session has claimed the sender, in which case the caller
// treats the message as a fresh command. A full session buffer drops the
// message rather than blocking chat delivery.
func (d *Dispatcher) Offer(msg Message) bool {
	d.mu.Lock()
	ch, ok := d.claims[msg.SenderID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
		slog.Warn("session buffer full, dropping message", slog.String("sender", msg.SenderID))
	}
	return true
}

// Active reports whether the sender has an open session.
func (d *Dispatcher) Active(senderID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.claims[senderID]
	return ok
}

func (d *Dispatcher) claim(senderID string) (chan Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.claims[senderID]; ok {
		return nil, ErrSessionActive
	}
	ch := make(chan Message, 8)
	d.claims[senderID] = ch
	telemetry.SetOpenSessions(len(d.claims))
	return ch, nil
}

func (d *Dispatcher) release(senderID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claims, senderID)
	telemetry.SetOpenSessions(len(d.claims))
}

// Await claims the sender and feeds their messages to h until h stops the
// session, the deadline passes, or ctx is cancelled. The deadline starts at
// now+timeout and moves only when h returns Keep.
func (d *Dispatcher) Await(ctx context.Context, senderID string, timeout time.Duration, h Handler) (err error) {
	ch, err := d.claim(senderID)
	if err != nil {
		return err
	}
	defer d.release(senderID)
	if telemetry.SessionsOpened != nil {
		telemetry.SessionsOpened.Inc()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("session handler panicked", slog.String("sender", senderID), slog.Any("panic", r))
			err = fmt.Errorf("session handler panic: %v", r)
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if telemetry.SessionsExpired != nil {
				telemetry.SessionsExpired.Inc()
			}
			return ErrTimeout
		case msg := <-ch:
			sig := h(msg)
			if sig.stop {
				return nil
			}
			if sig.extend > 0 {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(sig.extend)
			}
		}
	}
}
