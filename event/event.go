// Copyright 2025 Exo Tech
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// QueueSize is the buffer size of each subscriber channel
const QueueSize = 20

type EventType string

type SubscriberId int

type HandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func New(eventType EventType, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type busMetrics struct {
	eventsTotal *prometheus.CounterVec
}

// Bus is a simple typed pub/sub bus. Publish delivers an event to every
// subscriber of its type; a subscriber whose buffer is full blocks the
// publisher.
type Bus struct {
	subscribers map[EventType]map[SubscriberId]chan Event
	metrics     *busMetrics
	lastSubId   SubscriberId
	logger      *slog.Logger
	mu          sync.Mutex
	wg          sync.WaitGroup
}

func NewBus(promRegistry prometheus.Registerer, logger *slog.Logger) *Bus {
	b := &Bus{
		subscribers: make(map[EventType]map[SubscriberId]chan Event),
		logger:      logger,
	}
	if promRegistry != nil {
		b.metrics = &busMetrics{
			eventsTotal: promauto.With(promRegistry).NewCounterVec(
				prometheus.CounterOpts{
					Name: "gov_events_total",
					Help: "number of events published by type",
				},
				[]string{"type"},
			),
		}
	}
	return b
}

// Subscribe registers for events of the given type
func (b *Bus) Subscribe(eventType EventType) (SubscriberId, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSubId++
	subId := b.lastSubId
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberId]chan Event)
	}
	evtCh := make(chan Event, QueueSize)
	b.subscribers[eventType][subId] = evtCh
	return subId, evtCh
}

// SubscribeFunc registers a handler function for events of the given type.
// The handler runs on a dedicated goroutine until Unsubscribe or Stop.
func (b *Bus) SubscribeFunc(
	eventType EventType,
	handler HandlerFunc,
) SubscriberId {
	subId, evtCh := b.Subscribe(eventType)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for evt := range evtCh {
			handler(evt)
		}
	}()
	return subId
}

// Unsubscribe removes the subscription and closes its channel
func (b *Bus) Unsubscribe(eventType EventType, subId SubscriberId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[eventType]; ok {
		if evtCh, ok := subs[subId]; ok {
			delete(subs, subId)
			close(evtCh)
		}
	}
}

// Publish delivers an event to all subscribers of the given type
func (b *Bus) Publish(eventType EventType, evt Event) {
	b.mu.Lock()
	channels := make([]chan Event, 0, len(b.subscribers[eventType]))
	for _, evtCh := range b.subscribers[eventType] {
		channels = append(channels, evtCh)
	}
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
	for _, evtCh := range channels {
		evtCh <- evt
	}
	if b.logger != nil {
		b.logger.Debug(
			"published event",
			"type", string(eventType),
			"subscribers", len(channels),
		)
	}
}

// Stop closes all subscriber channels and waits for handler goroutines to
// exit. The bus must not be used after Stop.
func (b *Bus) Stop() {
	b.mu.Lock()
	for eventType, subs := range b.subscribers {
		for subId, evtCh := range subs {
			delete(subs, subId)
			close(evtCh)
		}
		delete(b.subscribers, eventType)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
