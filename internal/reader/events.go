/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reader

import "sync"

// EventType identifies a reader notification.
type EventType int

const (
	// EventPageChanged fires when the current page settles on a new index.
	EventPageChanged EventType = iota
	// EventArrangeStarted fires before items are repositioned.
	EventArrangeStarted
	// EventArrangeFinished fires after items are repositioned.
	EventArrangeFinished
	// EventPageLoaded fires when a page's pixels become resident.
	EventPageLoaded
)

// Event is the payload delivered to subscribers. Index is the page index
// the event refers to, or -1 when not applicable.
type Event struct {
	Type  EventType
	Index int
}

// Handler receives events. Handlers run synchronously on the goroutine
// that triggered the event and must not call back into the document.
type Handler func(Event)

// Bus is a minimal observer registry decoupling the reader engine from the
// widgets that consume its notifications.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[EventType]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType]map[int]Handler)}
}

// Subscribe registers h for events of type t and returns an unsubscribe
// function.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[t] == nil {
		b.handlers[t] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[t][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[t], id)
	}
}

func (b *Bus) publish(e Event) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers[e.Type]))
	for _, h := range b.handlers[e.Type] {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		h(e)
	}
}
