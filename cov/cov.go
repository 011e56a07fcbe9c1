// Copyright 2025 Edgeo SCADA
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

// Package cov implements the BACnet Clause 13 change-of-value
// subscription engine: subscription bookkeeping, property-level and
// object-level indices, lifetime expiry, and threshold-based change
// detection for analog-valued properties.
package cov

import (
	"errors"
	"sync"
	"time"

	"github.com/edgeo/bacnetstack/tlv"
)

var (
	ErrTooManySubscriptions = errors.New("cov: subscription limit reached")
	ErrNotSubscribed        = errors.New("cov: no matching subscription")
)

// MaxSubscriptions and MaxPropertySubscriptions cap the engine's total and
// property-specific subscription counts (spec §5 resource limits).
const (
	MaxSubscriptions         = 1000
	MaxPropertySubscriptions = 1000
)

// Subscriber identifies who should receive notifications: the subscribing
// device's address (opaque to this package) and its chosen process ID.
type Subscriber struct {
	Address   string
	ProcessID uint32
}

// Subscription is one active COV subscription, either whole-object
// (Property == 0 meaning "all COV-reportable properties") or
// property-specific (SubscribeCOVProperty, Clause 13.15).
type Subscription struct {
	Subscriber     Subscriber
	Object         tlv.ObjectIdentifier
	Property       uint32
	PropertySpecific bool
	Confirmed      bool
	Increment      *float64 // non-nil for SubscribeCOVProperty with an explicit increment
	ExpiresAt      time.Time // zero means no expiry (indefinite lifetime)
	lastReal       *float64
	lastDiscrete   *tlv.Value
}

// Notifier delivers a COV notification for sub reporting prop's new
// value. Implementations live in the application/transport layer; this
// package only decides WHEN to call it.
type Notifier func(sub Subscription, values map[uint32][]tlv.Value, timeRemaining uint32)

// Engine tracks subscriptions and decides, on each property write,
// whether a notification is due.
type Engine struct {
	mu   sync.Mutex
	subs map[subKey]*Subscription
	byObject map[tlv.ObjectIdentifier][]subKey

	notify Notifier
}

type subKey struct {
	addr      string
	processID uint32
	object    tlv.ObjectIdentifier
	property  uint32
}

// NewEngine creates a COV engine that calls notify whenever a
// subscription's conditions are satisfied.
func NewEngine(notify Notifier) *Engine {
	return &Engine{
		subs:     make(map[subKey]*Subscription),
		byObject: make(map[tlv.ObjectIdentifier][]subKey),
		notify:   notify,
	}
}

// Subscribe adds or refreshes a subscription. lifetime of zero means no
// expiry (the subscription lasts until explicitly cancelled).
func (e *Engine) Subscribe(sub Subscription, lifetime time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := subKey{addr: sub.Subscriber.Address, processID: sub.Subscriber.ProcessID, object: sub.Object, property: sub.Property}
	if _, exists := e.subs[key]; !exists {
		if len(e.subs) >= MaxSubscriptions {
			return ErrTooManySubscriptions
		}
		if sub.PropertySpecific {
			n := 0
			for _, s := range e.subs {
				if s.PropertySpecific {
					n++
				}
			}
			if n >= MaxPropertySubscriptions {
				return ErrTooManySubscriptions
			}
		}
	}

	if lifetime > 0 {
		sub.ExpiresAt = time.Now().Add(lifetime)
	}
	e.subs[key] = &sub
	e.byObject[sub.Object] = appendUnique(e.byObject[sub.Object], key)
	return nil
}

func appendUnique(keys []subKey, k subKey) []subKey {
	for _, existing := range keys {
		if existing == k {
			return keys
		}
	}
	return append(keys, k)
}

// Unsubscribe removes a subscriber's subscription to object (whole-object
// or the given property).
func (e *Engine) Unsubscribe(subscriber Subscriber, object tlv.ObjectIdentifier, property uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := subKey{addr: subscriber.Address, processID: subscriber.ProcessID, object: object, property: property}
	if _, ok := e.subs[key]; !ok {
		return ErrNotSubscribed
	}
	delete(e.subs, key)
	return nil
}

// ExpireStale removes subscriptions whose lifetime has elapsed. Call
// periodically from the owning application's maintenance loop.
func (e *Engine) ExpireStale() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	for k, s := range e.subs {
		if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now) {
			delete(e.subs, k)
		}
	}
}

// Count returns the total number of active subscriptions.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// OnPropertyChanged evaluates every subscription on object against the
// new value of prop and fires notifications for those whose change
// threshold is satisfied. Non-numeric properties always trigger
// (Clause 13.1.2: COV reporting with no increment reports any change).
func (e *Engine) OnPropertyChanged(object tlv.ObjectIdentifier, prop uint32, values []tlv.Value) {
	e.mu.Lock()
	keys := append([]subKey(nil), e.byObject[object]...)
	var due []*Subscription
	for _, k := range keys {
		s, ok := e.subs[k]
		if !ok {
			continue
		}
		if s.PropertySpecific && s.Property != prop {
			continue
		}
		if shouldNotify(s, values) {
			due = append(due, s)
		}
	}
	e.mu.Unlock()

	if e.notify == nil {
		return
	}
	for _, s := range due {
		remaining := uint32(0)
		if !s.ExpiresAt.IsZero() {
			remaining = uint32(time.Until(s.ExpiresAt).Seconds())
		}
		e.notify(*s, map[uint32][]tlv.Value{prop: values}, remaining)
	}
}

func shouldNotify(s *Subscription, values []tlv.Value) bool {
	if len(values) != 1 {
		return true
	}
	v := values[0]
	if v.Tag != tlv.TagReal || s.Increment == nil {
		return true
	}
	newVal := float64(v.Real)
	if s.lastReal == nil {
		prev := newVal
		s.lastReal = &prev
		return true
	}
	delta := newVal - *s.lastReal
	if delta < 0 {
		delta = -delta
	}
	if delta >= *s.Increment {
		*s.lastReal = newVal
		return true
	}
	return false
}
