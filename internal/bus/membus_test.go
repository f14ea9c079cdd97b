package bus

import (
	"context"
	"testing"
	"time"
)

func TestMemBusPublishSubscribe(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	ctx := context.Background()
	sub, err := b.Subscribe(ctx, TopicTask)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	n, err := b.Publish(ctx, TopicTask, []byte(`{"event_type":"task.created"}`))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}

	select {
	case msg := <-sub.C():
		if msg.Topic != TopicTask {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestMemBusIgnoresUnsubscribedTopic(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	ctx := context.Background()
	sub, _ := b.Subscribe(ctx, TopicSession)
	defer sub.Close()

	n, _ := b.Publish(ctx, TopicTask, []byte("x"))
	if n != 0 {
		t.Fatalf("expected 0 deliveries for unsubscribed topic, got %d", n)
	}
}

func TestMemBusDropsOnFullBuffer(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	ctx := context.Background()
	sub, _ := b.Subscribe(ctx, TopicTask)
	defer sub.Close()

	for i := 0; i < subscriberBuffer+10; i++ {
		if _, err := b.Publish(ctx, TopicTask, []byte("x")); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	// Publish must never block even once the subscriber's buffer is full.
}

func TestMemBusCloseStopsDelivery(t *testing.T) {
	b := NewMemBus()
	ctx := context.Background()
	sub, _ := b.Subscribe(ctx, TopicTask)

	sub.Close()

	if _, open := <-sub.C(); open {
		t.Fatal("expected channel closed after Close")
	}
}
