// Package sync keeps the local snapshot layer of every pod in step with the
// list snapshots held in Redis.
package sync

import (
	"context"
	"sync"

	"github.com/huykn/course-marketplace/pubsub"
	"github.com/huykn/course-marketplace/types"
)

// InvalidationEvent is an alias for types.InvalidationEvent
type InvalidationEvent = types.InvalidationEvent

// PubSubSynchronizer broadcasts list cache events over a pub/sub channel.
type PubSubSynchronizer struct {
	ps             *pubsub.PubSub
	channel        string
	podID          string
	sub            *pubsub.Subscription
	callbacks      []func(event InvalidationEvent)
	callbacksMutex sync.RWMutex
	wg             sync.WaitGroup
	logger         types.Logger
}

// NewPubSubSynchronizer creates a synchronizer on channel. Events sent by
// podID itself are not delivered back to it.
func NewPubSubSynchronizer(ps *pubsub.PubSub, channel, podID string, logger types.Logger) *PubSubSynchronizer {
	return &PubSubSynchronizer{
		ps:      ps,
		channel: channel,
		podID:   podID,
		logger:  types.OrNoOp(logger),
	}
}

// Subscribe starts listening for events.
func (s *PubSubSynchronizer) Subscribe(ctx context.Context) error {
	sub, err := s.ps.Subscribe(ctx, s.channel)
	if err != nil {
		return err
	}
	s.sub = sub

	s.wg.Add(1)
	go s.listenForEvents()
	return nil
}

// Publish broadcasts event, stamped with this pod's id.
func (s *PubSubSynchronizer) Publish(ctx context.Context, event InvalidationEvent) error {
	event.Sender = s.podID
	return s.ps.Publish(ctx, s.channel, event)
}

// OnInvalidate registers a callback for events from other pods.
func (s *PubSubSynchronizer) OnInvalidate(callback func(event InvalidationEvent)) {
	s.callbacksMutex.Lock()
	defer s.callbacksMutex.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Close stops listening.
func (s *PubSubSynchronizer) Close() error {
	if s.sub == nil {
		return nil
	}
	err := s.sub.Close()
	s.wg.Wait()
	return err
}

func (s *PubSubSynchronizer) listenForEvents() {
	defer s.wg.Done()

	for msg := range s.sub.Messages() {
		var event InvalidationEvent
		if err := msg.Decode(&event); err != nil {
			s.logger.Warn("sync: dropping malformed event", "channel", s.channel, "error", err)
			continue
		}

		// Don't invalidate your own writes
		if event.Sender == s.podID {
			continue
		}

		s.callbacksMutex.RLock()
		callbacks := s.callbacks
		s.callbacksMutex.RUnlock()

		for _, callback := range callbacks {
			callback(event)
		}
	}
}
