// Package pubsub is the named-topic broadcast handle given to every request
// context. It is backed by Redis Pub/Sub and created once per process.
package pubsub

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/huykn/course-marketplace/storage"
)

// ErrClosed is returned when publishing through a closed PubSub.
var ErrClosed = errors.New("pubsub is closed")

// Message is one payload received on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Decode unmarshals the payload into v using JSON.
func (m Message) Decode(v any) error {
	return storage.NewJSONSerializer().Unmarshal(m.Payload, v)
}

// PubSub publishes and subscribes to topics.
type PubSub struct {
	client     *redis.Client
	serializer storage.Serializer

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New creates a PubSub on client. A nil serializer selects JSON.
func New(client *redis.Client, serializer storage.Serializer) *PubSub {
	if serializer == nil {
		serializer = storage.NewJSONSerializer()
	}
	return &PubSub{
		client:     client,
		serializer: serializer,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Publish serializes payload and broadcasts it on topic. []byte and string
// payloads are sent as is.
func (p *PubSub) Publish(ctx context.Context, topic string, payload any) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		var err error
		if data, err = p.serializer.Marshal(payload); err != nil {
			return err
		}
	}
	return storage.Unavailable(p.client.Publish(ctx, topic, data).Err())
}

// Subscribe listens on topics. It returns once Redis has confirmed the
// subscription, so nothing published afterwards is missed.
func (p *PubSub) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("subscribe requires at least one topic")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.mu.Unlock()

	ps := p.client.Subscribe(ctx, topics...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, storage.Unavailable(err)
	}

	s := &Subscription{
		ps:     ps,
		out:    make(chan Message, 64),
		done:   make(chan struct{}),
		parent: p,
	}
	p.mu.Lock()
	p.subs[s] = struct{}{}
	p.mu.Unlock()

	s.wg.Add(1)
	go s.forward()
	return s, nil
}

// Close closes every open subscription. Publish fails afterwards.
func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	subs := make([]*Subscription, 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscription is a stream of messages for the subscribed topics.
type Subscription struct {
	ps     *redis.PubSub
	out    chan Message
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	parent *PubSub
}

// Messages returns the stream. It is closed when the subscription closes.
func (s *Subscription) Messages() <-chan Message {
	return s.out
}

// Close stops the subscription.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		s.wg.Wait()

		s.parent.mu.Lock()
		delete(s.parent.subs, s)
		s.parent.mu.Unlock()
	})
	return err
}

func (s *Subscription) forward() {
	defer s.wg.Done()
	defer close(s.out)

	ch := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}
			select {
			case s.out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-s.done:
				return
			}
		}
	}
}
