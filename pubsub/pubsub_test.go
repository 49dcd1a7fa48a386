package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

type courseAdded struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func receive(t *testing.T, s *Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-s.Messages():
		if !ok {
			t.Fatal("Subscription closed unexpectedly")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for message")
	}
	return Message{}
}

func TestPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	ps := New(setupRedisClient(t), nil)
	defer ps.Close()

	sub, err := ps.Subscribe(ctx, "courses.added")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if err := ps.Publish(ctx, "courses.added", courseAdded{ID: "c1", Title: "Go"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	msg := receive(t, sub)
	if msg.Topic != "courses.added" {
		t.Fatalf("Expected topic courses.added, got %s", msg.Topic)
	}
	var got courseAdded
	if err := msg.Decode(&got); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.ID != "c1" || got.Title != "Go" {
		t.Fatalf("Unexpected payload %+v", got)
	}
}

func TestPublishRawPayload(t *testing.T) {
	ctx := context.Background()
	ps := New(setupRedisClient(t), nil)
	defer ps.Close()

	sub, err := ps.Subscribe(ctx, "a", "b")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if err := ps.Publish(ctx, "b", "plain"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	msg := receive(t, sub)
	if msg.Topic != "b" || string(msg.Payload) != "plain" {
		t.Fatalf("Unexpected message %+v", msg)
	}
}

func TestSubscribeRequiresTopic(t *testing.T) {
	ps := New(setupRedisClient(t), nil)
	defer ps.Close()

	if _, err := ps.Subscribe(context.Background()); err == nil {
		t.Fatal("Expected error without topics")
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	ctx := context.Background()
	ps := New(setupRedisClient(t), nil)

	sub, err := ps.Subscribe(ctx, "topic")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := ps.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case _, ok := <-sub.Messages():
		if ok {
			t.Fatal("Expected closed stream")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stream was not closed")
	}

	if err := ps.Publish(ctx, "topic", "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Second Close should be a no-op, got %v", err)
	}
}
