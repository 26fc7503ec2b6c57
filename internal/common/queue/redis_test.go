package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	q, err := NewRedisQueue(mr.Addr())
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	t.Cleanup(func() {
		_ = q.Close()
	})
	return q, mr
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "jobs", []byte("first")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "jobs", []byte("second")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	payload, ok, err := q.Dequeue(ctx, "jobs", time.Second)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if string(payload) != "first" {
		t.Fatalf("payload: got %q want %q", payload, "first")
	}

	payload, ok, err = q.Dequeue(ctx, "jobs", time.Second)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if string(payload) != "second" {
		t.Fatalf("payload: got %q want %q", payload, "second")
	}
}

func TestDequeueTimeoutIsNotAnError(t *testing.T) {
	q, _ := newTestQueue(t)

	payload, ok, err := q.Dequeue(context.Background(), "empty", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if ok || payload != nil {
		t.Fatalf("expected empty result, got ok=%v payload=%q", ok, payload)
	}
}

func TestNotifyPublishes(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = sub.Close()
	})
	pubsub := sub.Subscribe(ctx, "done")
	t.Cleanup(func() {
		_ = pubsub.Close()
	})
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := q.Notify(ctx, "done", []byte(`{"userId":"u1"}`)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case msg := <-pubsub.Channel():
		if msg.Payload != `{"userId":"u1"}` {
			t.Fatalf("payload: got %q", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
	}
}

func TestDequeueAfterCloseFails(t *testing.T) {
	q, mr := newTestQueue(t)
	mr.Close()

	_, _, err := q.Dequeue(context.Background(), "jobs", 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected connectivity error after server close")
	}
}
