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

// Package event implements the BACnet Clause 13 intrinsic reporting
// pipeline: event state transitions, the event algorithms that drive
// them, and notification recipient filtering by day-of-week/time-range.
package event

import (
	"sync"
	"time"

	"github.com/edgeo/bacnetstack/tlv"
)

// State enumerates the Clause 13.2.2 event states.
type State uint8

const (
	StateNormal State = iota
	StateFault
	StateOffnormal
	StateHighLimit
	StateLowLimit
	StateLifeSafetyAlarm
)

// Transition describes a state change produced by evaluating an
// algorithm against a fresh property value.
type Transition struct {
	From, To State
	Value    tlv.Value
	At       time.Time
}

// Algorithm evaluates a monitored property's new value against the
// object's current event state and parameters, returning the next state.
// Every Clause 13.3 standard algorithm has an implementation here or in
// algorithms.go: OutOfRange, ChangeOfState, and CommandFailure below,
// plus the remaining fifteen in algorithms.go.
type Algorithm interface {
	Evaluate(current State, value tlv.Value) State
}

// OutOfRangeParams configures the OUT_OF_RANGE algorithm (Clause
// 13.3.6): an event is raised as soon as value passes the high or low
// limit, and clears once it is back inside that limit by at least the
// deadband.
type OutOfRangeParams struct {
	HighLimit float32
	LowLimit  float32
	Deadband  float32
}

type OutOfRange struct{ Params OutOfRangeParams }

func (a OutOfRange) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagReal {
		return current
	}
	v := value.Real
	switch current {
	case StateHighLimit:
		if v <= a.Params.HighLimit-a.Params.Deadband {
			return StateNormal
		}
		return StateHighLimit
	case StateLowLimit:
		if v >= a.Params.LowLimit+a.Params.Deadband {
			return StateNormal
		}
		return StateLowLimit
	default:
		if v > a.Params.HighLimit {
			return StateHighLimit
		}
		if v < a.Params.LowLimit {
			return StateLowLimit
		}
		return StateNormal
	}
}

// ChangeOfStateParams configures the CHANGE_OF_STATE algorithm (Clause
// 13.3.2): any value in AlarmValues is reported offnormal.
type ChangeOfStateParams struct {
	AlarmValues []uint64 // matched against Value.Uint (enumerated/unsigned)
}

type ChangeOfState struct{ Params ChangeOfStateParams }

func (a ChangeOfState) Evaluate(current State, value tlv.Value) State {
	for _, alarm := range a.Params.AlarmValues {
		if value.Uint == alarm {
			return StateOffnormal
		}
	}
	return StateNormal
}

// CommandFailureParams configures the COMMAND_FAILURE algorithm (Clause
// 13.3.4): offnormal when the feedback value disagrees with the
// commanded present value.
type CommandFailureParams struct {
	FeedbackValue tlv.Value
}

type CommandFailure struct{ Params CommandFailureParams }

func (a CommandFailure) Evaluate(current State, value tlv.Value) State {
	if value.Tag != a.Params.FeedbackValue.Tag || value.Uint != a.Params.FeedbackValue.Uint {
		return StateOffnormal
	}
	return StateNormal
}

// Enrollment is one object's intrinsic reporting context: its algorithm,
// current state, and the notification class it reports through.
type Enrollment struct {
	Object           tlv.ObjectIdentifier
	Algorithm        Algorithm
	State            State
	NotificationClass uint32
}

// Recipient identifies one destination for event notifications, filtered
// by day-of-week and time-of-day range (Clause 13.3, NotificationClass
// recipient list) and by transition type (to-offnormal/to-fault/to-normal).
type Recipient struct {
	Address        string
	Confirmed      bool
	ProcessID      uint32
	Days           [7]bool // index 0 = Monday per ASHRAE weekday numbering
	FromTime       tlv.Time
	ToTime         tlv.Time
	NotifyOffnormal bool
	NotifyFault     bool
	NotifyNormal    bool
}

// Active reports whether now falls within the recipient's day/time window.
func (r Recipient) Active(now time.Time) bool {
	weekday := int(now.Weekday())
	// time.Weekday: Sunday=0..Saturday=6; ASHRAE Monday=1..Sunday=7 at index 0..6.
	idx := (weekday + 6) % 7
	if !r.Days[idx] {
		return false
	}
	cur := tlv.Time{Hour: uint8(now.Hour()), Minute: uint8(now.Minute()), Second: uint8(now.Second())}
	return timeGTE(cur, r.FromTime) && timeLTE(cur, r.ToTime)
}

func timeGTE(a, b tlv.Time) bool { return timeTotal(a) >= timeTotal(b) }
func timeLTE(a, b tlv.Time) bool { return timeTotal(a) <= timeTotal(b) }
func timeTotal(t tlv.Time) int   { return int(t.Hour)*3600 + int(t.Minute)*60 + int(t.Second) }

// NotificationClass groups recipients for fan-out (Clause 13.2.3).
type NotificationClass struct {
	ID         uint32
	Priority   [3]uint8 // to-offnormal, to-fault, to-normal
	Recipients []Recipient
}

// Dispatcher evaluates enrollments against new values and notifies
// recipients for the resulting transitions.
type Dispatcher struct {
	mu          sync.Mutex
	enrollments map[tlv.ObjectIdentifier]*Enrollment
	classes     map[uint32]*NotificationClass
	deliver     func(recipient Recipient, class *NotificationClass, obj tlv.ObjectIdentifier, t Transition)
}

// NewDispatcher creates an event dispatcher that calls deliver for every
// recipient entitled to a transition.
func NewDispatcher(deliver func(Recipient, *NotificationClass, tlv.ObjectIdentifier, Transition)) *Dispatcher {
	return &Dispatcher{
		enrollments: make(map[tlv.ObjectIdentifier]*Enrollment),
		classes:     make(map[uint32]*NotificationClass),
		deliver:     deliver,
	}
}

// Enroll registers an object's intrinsic reporting context.
func (d *Dispatcher) Enroll(e Enrollment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enrollments[e.Object] = &e
}

// SetNotificationClass registers or replaces a notification class.
func (d *Dispatcher) SetNotificationClass(c NotificationClass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classes[c.ID] = &c
}

// Evaluate feeds a fresh property value through obj's algorithm, applies
// the resulting state transition, and fans out to every currently-active
// recipient entitled to it.
func (d *Dispatcher) Evaluate(obj tlv.ObjectIdentifier, value tlv.Value, now time.Time) {
	d.mu.Lock()
	enr, ok := d.enrollments[obj]
	if !ok || enr.Algorithm == nil {
		d.mu.Unlock()
		return
	}
	from := enr.State
	to := enr.Algorithm.Evaluate(from, value)
	enr.State = to
	class := d.classes[enr.NotificationClass]
	d.mu.Unlock()

	if to == from || class == nil {
		return
	}
	transition := Transition{From: from, To: to, Value: value, At: now}
	for _, r := range class.Recipients {
		if !wantsTransition(r, to) || !r.Active(now) {
			continue
		}
		if d.deliver != nil {
			d.deliver(r, class, obj, transition)
		}
	}
}

func wantsTransition(r Recipient, to State) bool {
	switch to {
	case StateNormal:
		return r.NotifyNormal
	case StateFault:
		return r.NotifyFault
	default:
		return r.NotifyOffnormal
	}
}
