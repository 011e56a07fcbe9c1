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

package event

import "github.com/edgeo/bacnetstack/tlv"

// This file rounds out the Clause 13.3 algorithm set beyond OutOfRange,
// ChangeOfState, and CommandFailure in event.go. Each follows the same
// shape: a Params struct holding the algorithm's configured limits or
// alarm values, and a type wrapping Params with an Evaluate method.
// Algorithms that need to remember the previously reported value
// (ChangeOfValue, ChangeOfDiscreteValue) use a pointer receiver so that
// state survives across calls; the rest are stateless value types, same
// as OutOfRange.

// ChangeOfBitstringParams configures the CHANGE_OF_BITSTRING algorithm
// (Clause 13.3.1): offnormal when value, masked by Bitmask, matches any
// entry in AlarmValues.
type ChangeOfBitstringParams struct {
	Bitmask     tlv.BitString
	AlarmValues []tlv.BitString
}

type ChangeOfBitstring struct{ Params ChangeOfBitstringParams }

func (a ChangeOfBitstring) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagBitString {
		return current
	}
	masked := maskBits(value.Bits, a.Params.Bitmask)
	for _, alarm := range a.Params.AlarmValues {
		if bitsEqual(masked, maskBits(alarm, a.Params.Bitmask)) {
			return StateOffnormal
		}
	}
	return StateNormal
}

// ChangeOfValueParams configures the CHANGE_OF_VALUE algorithm (Clause
// 13.3.3): offnormal whenever a real value moves by more than Increment
// since the last evaluated value, or a bitstring's masked bits differ
// from the last evaluated value's.
type ChangeOfValueParams struct {
	Increment float32
	Bitmask   tlv.BitString
}

type ChangeOfValue struct {
	Params   ChangeOfValueParams
	lastReal float32
	lastBits tlv.BitString
	primed   bool
}

func (a *ChangeOfValue) Evaluate(current State, value tlv.Value) State {
	defer func() { a.primed = true }()
	switch value.Tag {
	case tlv.TagReal:
		changed := a.primed && absFloat32(value.Real-a.lastReal) > a.Params.Increment
		a.lastReal = value.Real
		if changed {
			return StateOffnormal
		}
		return StateNormal
	case tlv.TagBitString:
		changed := a.primed && !bitsEqual(maskBits(value.Bits, a.Params.Bitmask), maskBits(a.lastBits, a.Params.Bitmask))
		a.lastBits = value.Bits
		if changed {
			return StateOffnormal
		}
		return StateNormal
	default:
		return current
	}
}

// FloatingLimitParams configures the FLOATING_LIMIT algorithm (Clause
// 13.3.5): high/low limits tracked as an offset from a moving setpoint
// rather than OutOfRange's fixed limits.
type FloatingLimitParams struct {
	Setpoint      float32
	HighDiffLimit float32
	LowDiffLimit  float32
	Deadband      float32
}

type FloatingLimit struct{ Params FloatingLimitParams }

func (a FloatingLimit) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagReal {
		return current
	}
	high := a.Params.Setpoint + a.Params.HighDiffLimit
	low := a.Params.Setpoint - a.Params.LowDiffLimit
	v := value.Real
	switch current {
	case StateHighLimit:
		if v <= high-a.Params.Deadband {
			return StateNormal
		}
		return StateHighLimit
	case StateLowLimit:
		if v >= low+a.Params.Deadband {
			return StateNormal
		}
		return StateLowLimit
	default:
		if v > high {
			return StateHighLimit
		}
		if v < low {
			return StateLowLimit
		}
		return StateNormal
	}
}

// ChangeOfLifeSafetyParams configures the CHANGE_OF_LIFE_SAFETY algorithm
// (Clause 13.3.7): life-safety-point mode values mapped to offnormal or
// life-safety-alarm state.
type ChangeOfLifeSafetyParams struct {
	AlarmValues           []uint32
	LifeSafetyAlarmValues []uint32
}

type ChangeOfLifeSafety struct{ Params ChangeOfLifeSafetyParams }

func (a ChangeOfLifeSafety) Evaluate(current State, value tlv.Value) State {
	v := uint32(value.Uint)
	for _, ls := range a.Params.LifeSafetyAlarmValues {
		if v == ls {
			return StateLifeSafetyAlarm
		}
	}
	for _, al := range a.Params.AlarmValues {
		if v == al {
			return StateOffnormal
		}
	}
	return StateNormal
}

// ExtendedParams configures the EXTENDED algorithm (Clause 13.3.8): a
// vendor-proprietary evaluation function. VendorID and ExtendedEventType
// identify the algorithm to a monitoring client; Parameters carries its
// raw, vendor-defined configuration. This stack does not interpret
// Parameters itself — a vendor integration supplies Evaluate.
type ExtendedParams struct {
	VendorID          uint32
	ExtendedEventType uint32
	Parameters        []byte
	Evaluate          func(current State, value tlv.Value) State
}

type Extended struct{ Params ExtendedParams }

func (a Extended) Evaluate(current State, value tlv.Value) State {
	if a.Params.Evaluate == nil {
		return current
	}
	return a.Params.Evaluate(current, value)
}

// BufferReadyParams configures the BUFFER_READY algorithm (Clause
// 13.3.9): offnormal once a trend log's record count has advanced by at
// least NotificationThreshold since PreviousNotificationCount.
type BufferReadyParams struct {
	NotificationThreshold     uint32
	PreviousNotificationCount uint32
}

type BufferReady struct{ Params BufferReadyParams }

func (a BufferReady) Evaluate(current State, value tlv.Value) State {
	count := uint32(value.Uint)
	if count-a.Params.PreviousNotificationCount >= a.Params.NotificationThreshold {
		return StateOffnormal
	}
	return StateNormal
}

// UnsignedRangeParams configures the UNSIGNED_RANGE algorithm (Clause
// 13.3.10): OutOfRange's shape over an unsigned monitored value.
type UnsignedRangeParams struct {
	HighLimit uint32
	LowLimit  uint32
	Deadband  uint32
}

type UnsignedRange struct{ Params UnsignedRangeParams }

func (a UnsignedRange) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagUnsigned {
		return current
	}
	v := uint32(value.Uint)
	switch current {
	case StateHighLimit:
		if v+a.Params.Deadband <= a.Params.HighLimit {
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

// AccessEventParams configures the ACCESS_EVENT algorithm (Clause
// 13.3.11): access-control door/point event enumerations mapped to
// offnormal.
type AccessEventParams struct {
	AlarmValues []uint32
}

type AccessEvent struct{ Params AccessEventParams }

func (a AccessEvent) Evaluate(current State, value tlv.Value) State {
	v := uint32(value.Uint)
	for _, al := range a.Params.AlarmValues {
		if v == al {
			return StateOffnormal
		}
	}
	return StateNormal
}

// DoubleOutOfRangeParams configures the DOUBLE_OUT_OF_RANGE algorithm
// (Clause 13.3.12): OutOfRange's shape over a double-precision monitored
// value.
type DoubleOutOfRangeParams struct {
	HighLimit float64
	LowLimit  float64
	Deadband  float64
}

type DoubleOutOfRange struct{ Params DoubleOutOfRangeParams }

func (a DoubleOutOfRange) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagDouble {
		return current
	}
	v := value.Double
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

// SignedOutOfRangeParams configures the SIGNED_OUT_OF_RANGE algorithm
// (Clause 13.3.13): OutOfRange's shape over a signed integer monitored
// value.
type SignedOutOfRangeParams struct {
	HighLimit int32
	LowLimit  int32
	Deadband  int32
}

type SignedOutOfRange struct{ Params SignedOutOfRangeParams }

func (a SignedOutOfRange) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagSigned {
		return current
	}
	v := int32(value.Int)
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

// UnsignedOutOfRangeParams configures the UNSIGNED_OUT_OF_RANGE algorithm
// (Clause 13.3.14): single-sided, high-limit-only variant of
// UnsignedRange for monitored values with no meaningful lower bound, such
// as run-time counters.
type UnsignedOutOfRangeParams struct {
	HighLimit uint32
	Deadband  uint32
}

type UnsignedOutOfRange struct{ Params UnsignedOutOfRangeParams }

func (a UnsignedOutOfRange) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagUnsigned {
		return current
	}
	v := uint32(value.Uint)
	if current == StateHighLimit {
		if v+a.Params.Deadband <= a.Params.HighLimit {
			return StateNormal
		}
		return StateHighLimit
	}
	if v > a.Params.HighLimit {
		return StateHighLimit
	}
	return StateNormal
}

// ChangeOfCharacterStringParams configures the
// CHANGE_OF_CHARACTERSTRING algorithm (Clause 13.3.15): offnormal when
// value matches any entry in AlarmValues.
type ChangeOfCharacterStringParams struct {
	AlarmValues []string
}

type ChangeOfCharacterString struct{ Params ChangeOfCharacterStringParams }

func (a ChangeOfCharacterString) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagCharacterString {
		return current
	}
	for _, al := range a.Params.AlarmValues {
		if value.Str == al {
			return StateOffnormal
		}
	}
	return StateNormal
}

// ChangeOfStatusFlagsParams configures the CHANGE_OF_STATUS_FLAGS
// algorithm (Clause 13.3.16): offnormal when any bit selected by
// SelectedFlags is set in the monitored status-flags value.
type ChangeOfStatusFlagsParams struct {
	SelectedFlags tlv.BitString
}

type ChangeOfStatusFlags struct{ Params ChangeOfStatusFlagsParams }

func (a ChangeOfStatusFlags) Evaluate(current State, value tlv.Value) State {
	if value.Tag != tlv.TagBitString {
		return current
	}
	if anyBitSet(maskBits(value.Bits, a.Params.SelectedFlags)) {
		return StateOffnormal
	}
	return StateNormal
}

// ChangeOfReliabilityParams configures the CHANGE_OF_RELIABILITY
// algorithm (Clause 13.3.17): reliability enumerations mapped to fault
// state.
type ChangeOfReliabilityParams struct {
	FaultValues []uint32
}

type ChangeOfReliability struct{ Params ChangeOfReliabilityParams }

func (a ChangeOfReliability) Evaluate(current State, value tlv.Value) State {
	v := uint32(value.Uint)
	for _, f := range a.Params.FaultValues {
		if v == f {
			return StateFault
		}
	}
	return StateNormal
}

// ChangeOfDiscreteValueParams configures the CHANGE_OF_DISCRETE_VALUE
// algorithm (Clause 13.3.18).
type ChangeOfDiscreteValueParams struct{}

// ChangeOfDiscreteValue reports offnormal whenever the value differs from
// the previously evaluated value and normal when it repeats, unlike
// ChangeOfState's fixed alarm-value list.
type ChangeOfDiscreteValue struct {
	Params     ChangeOfDiscreteValueParams
	lastNormal uint64
	primed     bool
}

func (a *ChangeOfDiscreteValue) Evaluate(current State, value tlv.Value) State {
	if !a.primed {
		a.primed = true
		a.lastNormal = value.Uint
		return StateNormal
	}
	if value.Uint == a.lastNormal {
		return StateNormal
	}
	a.lastNormal = value.Uint
	return StateOffnormal
}

func maskBits(v, mask tlv.BitString) tlv.BitString {
	out := make([]bool, len(v.Bits))
	for i, bit := range v.Bits {
		if i < len(mask.Bits) && mask.Bits[i] {
			out[i] = bit
		}
	}
	return tlv.BitString{Bits: out}
}

func bitsEqual(a, b tlv.BitString) bool {
	if len(a.Bits) != len(b.Bits) {
		return false
	}
	for i := range a.Bits {
		if a.Bits[i] != b.Bits[i] {
			return false
		}
	}
	return true
}

func anyBitSet(v tlv.BitString) bool {
	for _, bit := range v.Bits {
		if bit {
			return true
		}
	}
	return false
}

func absFloat32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
