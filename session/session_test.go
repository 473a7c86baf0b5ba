package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAwaitTimesOutWithoutMessages(t *testing.T) {
	d := NewDispatcher()

	start := time.Now()
	err := d.Await(context.Background(), "alice", 50*time.Millisecond, func(Message) Signal {
		t.Error("handler called without any message")
		return Stop()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Await = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Await returned after %v, before the deadline", elapsed)
	}
	if d.Active("alice") {
		t.Error("sender still claimed after timeout")
	}
}

func TestAwaitStop(t *testing.T) {
	d := NewDispatcher()

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- d.Await(context.Background(), "alice", time.Second, func(m Message) Signal {
			got = append(got, m.Text)
			if m.Text == "done" {
				return Stop()
			}
			return Continue()
		})
	}()

	waitClaimed(t, d, "alice")
	if !d.Offer(Message{SenderID: "alice", Text: "first"}) {
		t.Fatal("Offer() = false for claimed sender")
	}
	d.Offer(Message{SenderID: "alice", Text: "done"})

	if err := <-done; err != nil {
		t.Fatalf("Await = %v, want nil after Stop", err)
	}
	if strings.Join(got, ",") != "first,done" {
		t.Errorf("handler saw %v", got)
	}
	if d.Active("alice") {
		t.Error("sender still claimed after Stop")
	}
}

func TestKeepExtendsDeadline(t *testing.T) {
	d := NewDispatcher()

	done := make(chan error, 1)
	go func() {
		done <- d.Await(context.Background(), "alice", 60*time.Millisecond, func(m Message) Signal {
			return Keep(200 * time.Millisecond)
		})
	}()

	waitClaimed(t, d, "alice")
	time.Sleep(40 * time.Millisecond)
	d.Offer(Message{SenderID: "alice", Text: "ping"})

	// Without the Keep the original 60ms deadline would have fired by now.
	select {
	case err := <-done:
		t.Fatalf("Await returned early: %v", err)
	case <-time.After(120 * time.Millisecond):
	}

	if err := <-done; !errors.Is(err, ErrTimeout) {
		t.Fatalf("Await = %v, want ErrTimeout after extension lapsed", err)
	}
}

func TestContinueKeepsOriginalDeadline(t *testing.T) {
	d := NewDispatcher()

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- d.Await(context.Background(), "alice", 100*time.Millisecond, func(m Message) Signal {
			return Continue()
		})
	}()

	waitClaimed(t, d, "alice")
	d.Offer(Message{SenderID: "alice", Text: "chatter"})
	d.Offer(Message{SenderID: "alice", Text: "more chatter"})

	err := <-done
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Await = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("Continue extended the deadline: session lived %v", elapsed)
	}
}

func TestSecondSessionRejected(t *testing.T) {
	d := NewDispatcher()

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.Await(context.Background(), "alice", time.Second, func(m Message) Signal {
			<-release
			return Stop()
		})
	}()

	waitClaimed(t, d, "alice")
	err := d.Await(context.Background(), "alice", time.Second, func(Message) Signal { return Stop() })
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Await = %v, want ErrSessionActive", err)
	}

	// A different sender is unaffected.
	if d.Active("bob") {
		t.Error("unclaimed sender reported active")
	}

	d.Offer(Message{SenderID: "alice", Text: "go"})
	close(release)
	wg.Wait()
}

func TestOfferUnclaimedSender(t *testing.T) {
	d := NewDispatcher()
	if d.Offer(Message{SenderID: "nobody", Text: "hi"}) {
		t.Error("Offer() = true for unclaimed sender")
	}
}

func TestHandlerPanicTearsDownSession(t *testing.T) {
	d := NewDispatcher()

	done := make(chan error, 1)
	go func() {
		done <- d.Await(context.Background(), "alice", time.Second, func(m Message) Signal {
			panic("boom")
		})
	}()

	waitClaimed(t, d, "alice")
	d.Offer(Message{SenderID: "alice", Text: "trigger"})

	err := <-done
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("Await = %v, want panic error", err)
	}
	if d.Active("alice") {
		t.Error("sender still claimed after handler panic")
	}
}

func TestContextCancellation(t *testing.T) {
	d := NewDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Await(ctx, "alice", time.Minute, func(Message) Signal { return Continue() })
	}()

	waitClaimed(t, d, "alice")
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Await = %v, want context.Canceled", err)
	}
	if d.Active("alice") {
		t.Error("sender still claimed after cancellation")
	}
}

func waitClaimed(t *testing.T, d *Dispatcher, senderID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if d.Active(senderID) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("sender %s never claimed", senderID)
}
