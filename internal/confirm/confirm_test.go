package confirm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRequestResolve(t *testing.T) {
	broker := NewBroker()
	done := make(chan bool, 1)

	go func() {
		ok, errRequest := broker.Request(context.Background(), Options{Title: "Delete rule"})
		if errRequest != nil {
			t.Errorf("request: %v", errRequest)
		}
		done <- ok
	}()

	waitForPending(t, broker)
	if prompt := broker.Pending(); prompt.Options.Title != "Delete rule" {
		t.Fatalf("unexpected prompt: %+v", prompt.Options)
	}
	if !broker.Resolve(true) {
		t.Fatal("resolve should report a pending prompt")
	}
	if answer := <-done; !answer {
		t.Fatal("requester should observe the approval")
	}
}

func TestQueueIsFIFO(t *testing.T) {
	broker := NewBroker()
	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	request := func(name string, delayed bool) {
		defer wg.Done()
		if delayed {
			time.Sleep(20 * time.Millisecond)
		}
		ok, errRequest := broker.Request(context.Background(), Options{Title: name})
		if errRequest != nil || !ok {
			t.Errorf("request %s: ok=%v err=%v", name, ok, errRequest)
			return
		}
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	wg.Add(2)
	go request("first", false)
	go request("second", true)

	// Answer both in arrival order; the second prompt must not clobber the
	// first one's resolver.
	for i := 0; i < 2; i++ {
		waitForPending(t, broker)
		want := []string{"first", "second"}[i]
		if got := broker.Pending().Options.Title; got != want {
			t.Fatalf("prompt %d = %q, want %q", i, got, want)
		}
		broker.Resolve(true)
	}
	wg.Wait()

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("resolution order = %v", order)
	}
}

func TestCancelledRequestIsWithdrawn(t *testing.T) {
	broker := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, errRequest := broker.Request(ctx, Options{Title: "doomed"})
		errs <- errRequest
	}()

	waitForPending(t, broker)
	cancel()
	if errRequest := <-errs; !errors.Is(errRequest, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", errRequest)
	}

	// The slot is free again for the next request.
	deadline := time.After(time.Second)
	for broker.Pending() != nil {
		select {
		case <-deadline:
			t.Fatal("withdrawn prompt still pending")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if broker.Resolve(true) {
		t.Fatal("resolve with no prompt must report false")
	}
}

func TestCloseRejectsAll(t *testing.T) {
	broker := NewBroker()
	errs := make(chan error, 1)
	go func() {
		_, errRequest := broker.Request(context.Background(), Options{Title: "late"})
		errs <- errRequest
	}()
	waitForPending(t, broker)
	broker.Close()
	if errRequest := <-errs; !errors.Is(errRequest, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", errRequest)
	}
	if _, errRequest := broker.Request(context.Background(), Options{}); !errors.Is(errRequest, ErrClosed) {
		t.Fatalf("closed broker must reject requests, got %v", errRequest)
	}
}

func waitForPending(t *testing.T, broker *Broker) {
	t.Helper()
	deadline := time.After(time.Second)
	for broker.Pending() == nil {
		select {
		case <-deadline:
			t.Fatal("no prompt became pending")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
