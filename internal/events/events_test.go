package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBroker_PublishReachesSubscriber(t *testing.T) {
	broker := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx, "s1")
	broker.Publish(SessionEvent{SessionID: "s1", Type: "Message.Saved"})

	select {
	case event := <-ch:
		if event.Type != TypeMessageSaved {
			t.Errorf("expected normalized type %q, got %q", TypeMessageSaved, event.Type)
		}
		if event.Seq != 1 {
			t.Errorf("expected seq 1, got %d", event.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_SequencePerSession(t *testing.T) {
	broker := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := broker.Subscribe(ctx, "s1")
	ch2 := broker.Subscribe(ctx, "s2")

	broker.Publish(SessionEvent{SessionID: "s1", Type: TypeMessageSaved})
	broker.Publish(SessionEvent{SessionID: "s1", Type: TypeTurnCompleted})
	broker.Publish(SessionEvent{SessionID: "s2", Type: TypeTitleUpdated})

	first := <-ch1
	second := <-ch1
	other := <-ch2
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("expected s1 sequence 1,2 got %d,%d", first.Seq, second.Seq)
	}
	if other.Seq != 1 {
		t.Errorf("expected s2 sequence to start at 1, got %d", other.Seq)
	}
}

func TestBroker_PublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	done := make(chan struct{})
	go func() {
		broker.Publish(SessionEvent{SessionID: "nobody", Type: TypeMessageSaved})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestBroker_UnsubscribeOnContextCancel(t *testing.T) {
	broker := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx, "s1")
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		broker.mu.RLock()
		_, registered := broker.subscribers["s1"]
		broker.mu.RUnlock()
		if !registered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after context cancellation")
		}
		time.Sleep(time.Millisecond)
	}

	broker.Publish(SessionEvent{SessionID: "s1", Type: TypeMessageSaved})
	select {
	case event := <-ch:
		t.Errorf("unexpected event after unsubscribe: %+v", event)
	default:
	}
}

func TestBroker_PublishDuringUnsubscribeChurn(t *testing.T) {
	broker := NewBroker()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					broker.Publish(SessionEvent{SessionID: "s1", Type: TypeMessageSaved})
				}
			}
		}()
	}

	// Subscribers join and leave while publishers hammer the session. A
	// publisher that snapshotted a channel right before removal must not
	// panic when it delivers.
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch := broker.Subscribe(ctx, "s1")
		select {
		case <-ch:
		default:
		}
		cancel()
	}

	close(stop)
	wg.Wait()
}
