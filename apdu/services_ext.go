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

package apdu

import (
	"github.com/edgeo/bacnetstack/tlv"
)

// This file rounds out the Clause 21 service set beyond the
// read/write/COV/discovery family in services.go and services_misc.go:
// object manipulation, file access, list editing, alarm/enrollment
// summaries, private transfer, text messaging, virtual terminal, group
// write, device identification, and audit logging. Parameter sequences
// that the standard leaves mostly opaque to a generic stack (private
// transfer parameters, VT data, audit log records) are carried as raw
// octet strings rather than decoded further; callers that speak a
// specific vendor profile or audit schema decode those payloads
// themselves.

// CreateObjectRequest is the parameter sequence of a CreateObject request
// (Clause 15.1.1). ObjectSpecifier is either an object type (to let the
// device assign the instance) or a full object identifier.
type CreateObjectRequest struct {
	ObjectType     uint32
	ObjectID       *tlv.ObjectIdentifier // non-nil when the instance is caller-specified
	InitialValues  []PropertyValue
}

const (
	tagCOObjectSpecifierType = 0
	tagCOObjectSpecifierID   = 0
	tagCOInitialValues       = 1
)

func EncodeCreateObjectRequest(c CreateObjectRequest) []byte {
	var buf []byte
	if c.ObjectID != nil {
		oid := tlv.EncodeObjectIdentifier(*c.ObjectID)
		buf = append(tlv.EncodeContextHeader(buf, tagCOObjectSpecifierID, len(oid)), oid...)
	} else {
		t := tlv.EncodeUnsigned(uint64(c.ObjectType))
		buf = append(tlv.EncodeContextHeader(buf, tagCOObjectSpecifierType, len(t)), t...)
	}
	if len(c.InitialValues) > 0 {
		buf = tlv.EncodeOpeningTag(buf, tagCOInitialValues)
		for _, pv := range c.InitialValues {
			prop := tlv.EncodeUnsigned(uint64(pv.Property))
			buf = append(tlv.EncodeContextHeader(buf, 0, len(prop)), prop...)
			buf = tlv.EncodeOpeningTag(buf, 2)
			for _, v := range pv.Value {
				buf = append(buf, tlv.EncodeApplication(v)...)
			}
			buf = tlv.EncodeClosingTag(buf, 2)
		}
		buf = tlv.EncodeClosingTag(buf, tagCOInitialValues)
	}
	return buf
}

func DecodeCreateObjectRequest(data []byte) (CreateObjectRequest, error) {
	r := tlv.NewReader(data)
	h, err := r.PeekHeader()
	if err != nil {
		return CreateObjectRequest{}, err
	}
	var c CreateObjectRequest
	if h.Length == 4 {
		body, err := r.ReadContextValue(tagCOObjectSpecifierID)
		if err != nil {
			return CreateObjectRequest{}, err
		}
		oid, err := tlv.DecodeObjectIdentifier(body)
		if err != nil {
			return CreateObjectRequest{}, err
		}
		c.ObjectID = &oid
	} else {
		body, err := r.ReadContextValue(tagCOObjectSpecifierType)
		if err != nil {
			return CreateObjectRequest{}, err
		}
		c.ObjectType = uint32(tlv.DecodeUnsigned(body))
	}
	if err := r.ExpectOpening(tagCOInitialValues); err == nil {
		for {
			hh, err := r.PeekHeader()
			if err != nil {
				return CreateObjectRequest{}, err
			}
			if hh.IsClosing() && hh.Number == tagCOInitialValues {
				break
			}
			propBody, err := r.ReadContextValue(0)
			if err != nil {
				return CreateObjectRequest{}, err
			}
			pv := PropertyValue{Property: uint32(tlv.DecodeUnsigned(propBody))}
			if err := r.ExpectOpening(2); err != nil {
				return CreateObjectRequest{}, err
			}
			for {
				vh, err := r.PeekHeader()
				if err != nil {
					return CreateObjectRequest{}, err
				}
				if vh.IsClosing() && vh.Number == 2 {
					break
				}
				v, err := r.ReadApplicationValue()
				if err != nil {
					return CreateObjectRequest{}, err
				}
				pv.Value = append(pv.Value, v)
			}
			if err := r.ExpectClosing(2); err != nil {
				return CreateObjectRequest{}, err
			}
			c.InitialValues = append(c.InitialValues, pv)
		}
		if err := r.ExpectClosing(tagCOInitialValues); err != nil {
			return CreateObjectRequest{}, err
		}
	}
	return c, nil
}

// CreateObjectAck is the parameter of a CreateObject Complex-ACK: the
// object identifier actually assigned.
type CreateObjectAck struct {
	ObjectID tlv.ObjectIdentifier
}

func EncodeCreateObjectAck(a CreateObjectAck) []byte {
	return tlv.EncodeObjectIdentifier(a.ObjectID)
}

func DecodeCreateObjectAck(data []byte) (CreateObjectAck, error) {
	oid, err := tlv.DecodeObjectIdentifier(data)
	if err != nil {
		return CreateObjectAck{}, err
	}
	return CreateObjectAck{ObjectID: oid}, nil
}

// DeleteObjectRequest is the parameter sequence of a DeleteObject request
// (Clause 15.2.1): just the object to remove.
type DeleteObjectRequest struct {
	ObjectID tlv.ObjectIdentifier
}

func EncodeDeleteObjectRequest(d DeleteObjectRequest) []byte {
	return tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: d.ObjectID})
}

func DecodeDeleteObjectRequest(data []byte) (DeleteObjectRequest, error) {
	r := tlv.NewReader(data)
	v, err := r.ReadApplicationValue()
	if err != nil {
		return DeleteObjectRequest{}, err
	}
	return DeleteObjectRequest{ObjectID: v.ObjectID}, nil
}

// listElementRequest is the shared shape of AddListElement and
// RemoveListElement (Clause 15.4/15.5): an object/property reference plus
// the list members to add or remove.
type listElementRequest struct {
	ObjectID   tlv.ObjectIdentifier
	Property   uint32
	ArrayIndex *uint32
	Values     []tlv.Value
}

const (
	tagLEObjectID    = 0
	tagLEPropertyID  = 1
	tagLEArrayIndex  = 2
	tagLEValues      = 3
)

func encodeListElementRequest(l listElementRequest) []byte {
	var buf []byte
	oid := tlv.EncodeObjectIdentifier(l.ObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagLEObjectID, len(oid)), oid...)
	prop := tlv.EncodeUnsigned(uint64(l.Property))
	buf = append(tlv.EncodeContextHeader(buf, tagLEPropertyID, len(prop)), prop...)
	if l.ArrayIndex != nil {
		idx := tlv.EncodeUnsigned(uint64(*l.ArrayIndex))
		buf = append(tlv.EncodeContextHeader(buf, tagLEArrayIndex, len(idx)), idx...)
	}
	buf = tlv.EncodeOpeningTag(buf, tagLEValues)
	for _, v := range l.Values {
		buf = append(buf, tlv.EncodeApplication(v)...)
	}
	buf = tlv.EncodeClosingTag(buf, tagLEValues)
	return buf
}

func decodeListElementRequest(data []byte) (listElementRequest, error) {
	r := tlv.NewReader(data)
	var l listElementRequest
	oidBody, err := r.ReadContextValue(tagLEObjectID)
	if err != nil {
		return l, err
	}
	if l.ObjectID, err = tlv.DecodeObjectIdentifier(oidBody); err != nil {
		return l, err
	}
	propBody, err := r.ReadContextValue(tagLEPropertyID)
	if err != nil {
		return l, err
	}
	l.Property = uint32(tlv.DecodeUnsigned(propBody))
	if idxBody, ok, err := r.TryReadContextValue(tagLEArrayIndex); err != nil {
		return l, err
	} else if ok {
		idx := uint32(tlv.DecodeUnsigned(idxBody))
		l.ArrayIndex = &idx
	}
	if err := r.ExpectOpening(tagLEValues); err != nil {
		return l, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return l, err
		}
		if h.IsClosing() && h.Number == tagLEValues {
			break
		}
		v, err := r.ReadApplicationValue()
		if err != nil {
			return l, err
		}
		l.Values = append(l.Values, v)
	}
	if err := r.ExpectClosing(tagLEValues); err != nil {
		return l, err
	}
	return l, nil
}

// AddListElementRequest is the parameter sequence of an AddListElement
// request (Clause 15.4).
type AddListElementRequest listElementRequest

func EncodeAddListElementRequest(a AddListElementRequest) []byte {
	return encodeListElementRequest(listElementRequest(a))
}

func DecodeAddListElementRequest(data []byte) (AddListElementRequest, error) {
	l, err := decodeListElementRequest(data)
	return AddListElementRequest(l), err
}

// RemoveListElementRequest is the parameter sequence of a
// RemoveListElement request (Clause 15.5): identical shape to
// AddListElementRequest, distinguished only by which confirmed service
// choice carries it.
type RemoveListElementRequest listElementRequest

func EncodeRemoveListElementRequest(rl RemoveListElementRequest) []byte {
	return encodeListElementRequest(listElementRequest(rl))
}

func DecodeRemoveListElementRequest(data []byte) (RemoveListElementRequest, error) {
	l, err := decodeListElementRequest(data)
	return RemoveListElementRequest(l), err
}

// AtomicReadFileRequest is the parameter sequence of an AtomicReadFile
// request (Clause 15.6.1).
type AtomicReadFileRequest struct {
	FileID   tlv.ObjectIdentifier
	Stream   bool // true = stream access, false = record access
	Start    int32
	Count    uint32
}

const (
	tagARFStream = 0
	tagARFRecord = 1
)

func EncodeAtomicReadFileRequest(a AtomicReadFileRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: a.FileID})...)
	tag := uint32(tagARFRecord)
	if a.Stream {
		tag = tagARFStream
	}
	buf = tlv.EncodeOpeningTag(buf, tag)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagSigned, Int: int64(a.Start)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(a.Count)})...)
	buf = tlv.EncodeClosingTag(buf, tag)
	return buf
}

func DecodeAtomicReadFileRequest(data []byte) (AtomicReadFileRequest, error) {
	r := tlv.NewReader(data)
	var a AtomicReadFileRequest
	fid, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.FileID = fid.ObjectID
	h, err := r.PeekHeader()
	if err != nil {
		return a, err
	}
	a.Stream = h.Number == tagARFStream
	if err := r.ExpectOpening(h.Number); err != nil {
		return a, err
	}
	start, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.Start = int32(start.Int)
	count, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.Count = uint32(count.Uint)
	if err := r.ExpectClosing(h.Number); err != nil {
		return a, err
	}
	return a, nil
}

// AtomicReadFileAck is the parameter sequence of an AtomicReadFile
// Complex-ACK.
type AtomicReadFileAck struct {
	EndOfFile bool
	Stream    bool
	Start     int32
	Data      []byte
}

func EncodeAtomicReadFileAck(a AtomicReadFileAck) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagBoolean, Bool: a.EndOfFile})...)
	tag := uint32(tagARFRecord)
	if a.Stream {
		tag = tagARFStream
	}
	buf = tlv.EncodeOpeningTag(buf, tag)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagSigned, Int: int64(a.Start)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagOctetString, Octet: a.Data})...)
	buf = tlv.EncodeClosingTag(buf, tag)
	return buf
}

func DecodeAtomicReadFileAck(data []byte) (AtomicReadFileAck, error) {
	r := tlv.NewReader(data)
	var a AtomicReadFileAck
	eof, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.EndOfFile = eof.Bool
	h, err := r.PeekHeader()
	if err != nil {
		return a, err
	}
	a.Stream = h.Number == tagARFStream
	if err := r.ExpectOpening(h.Number); err != nil {
		return a, err
	}
	start, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.Start = int32(start.Int)
	oct, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.Data = oct.Octet
	if err := r.ExpectClosing(h.Number); err != nil {
		return a, err
	}
	return a, nil
}

// AtomicWriteFileRequest is the parameter sequence of an
// AtomicWriteFile request (Clause 15.7.1).
type AtomicWriteFileRequest struct {
	FileID tlv.ObjectIdentifier
	Stream bool
	Start  int32
	Data   []byte
}

func EncodeAtomicWriteFileRequest(a AtomicWriteFileRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: a.FileID})...)
	tag := uint32(tagARFRecord)
	if a.Stream {
		tag = tagARFStream
	}
	buf = tlv.EncodeOpeningTag(buf, tag)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagSigned, Int: int64(a.Start)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagOctetString, Octet: a.Data})...)
	buf = tlv.EncodeClosingTag(buf, tag)
	return buf
}

func DecodeAtomicWriteFileRequest(data []byte) (AtomicWriteFileRequest, error) {
	r := tlv.NewReader(data)
	var a AtomicWriteFileRequest
	fid, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.FileID = fid.ObjectID
	h, err := r.PeekHeader()
	if err != nil {
		return a, err
	}
	a.Stream = h.Number == tagARFStream
	if err := r.ExpectOpening(h.Number); err != nil {
		return a, err
	}
	start, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.Start = int32(start.Int)
	oct, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.Data = oct.Octet
	if err := r.ExpectClosing(h.Number); err != nil {
		return a, err
	}
	return a, nil
}

// AtomicWriteFileAck is the parameter of an AtomicWriteFile Complex-ACK:
// the start position actually written.
type AtomicWriteFileAck struct {
	Start int32
}

func EncodeAtomicWriteFileAck(a AtomicWriteFileAck) []byte {
	return tlv.EncodeApplication(tlv.Value{Tag: tlv.TagSigned, Int: int64(a.Start)})
}

func DecodeAtomicWriteFileAck(data []byte) (AtomicWriteFileAck, error) {
	r := tlv.NewReader(data)
	v, err := r.ReadApplicationValue()
	if err != nil {
		return AtomicWriteFileAck{}, err
	}
	return AtomicWriteFileAck{Start: int32(v.Int)}, nil
}

// SubscribeCOVPropertyMultipleRequest is the parameter sequence of a
// SubscribeCOVPropertyMultiple request (Clause 13.15): one subscription
// covering several object/property pairs at once.
type SubscribeCOVPropertyMultipleRequest struct {
	SubscriberProcessID uint32
	IssueConfirmed      bool
	Lifetime            *uint32
	List                []ReadAccessSpec
}

const (
	tagSCPMSubscriber = 0
	tagSCPMConfirmed  = 1
	tagSCPMLifetime   = 2
	tagSCPMList       = 3
)

func EncodeSubscribeCOVPropertyMultipleRequest(s SubscribeCOVPropertyMultipleRequest) []byte {
	var buf []byte
	proc := tlv.EncodeUnsigned(uint64(s.SubscriberProcessID))
	buf = append(tlv.EncodeContextHeader(buf, tagSCPMSubscriber, len(proc)), proc...)
	length := 0
	if s.IssueConfirmed {
		length = 1
	}
	buf = tlv.EncodeContextHeader(buf, tagSCPMConfirmed, length)
	if s.IssueConfirmed {
		buf = append(buf, 1)
	}
	if s.Lifetime != nil {
		life := tlv.EncodeUnsigned(uint64(*s.Lifetime))
		buf = append(tlv.EncodeContextHeader(buf, tagSCPMLifetime, len(life)), life...)
	}
	buf = tlv.EncodeOpeningTag(buf, tagSCPMList)
	buf = append(buf, EncodeReadPropertyMultipleRequest(s.List)...)
	buf = tlv.EncodeClosingTag(buf, tagSCPMList)
	return buf
}

func DecodeSubscribeCOVPropertyMultipleRequest(data []byte) (SubscribeCOVPropertyMultipleRequest, error) {
	r := tlv.NewReader(data)
	var s SubscribeCOVPropertyMultipleRequest
	procBody, err := r.ReadContextValue(tagSCPMSubscriber)
	if err != nil {
		return s, err
	}
	s.SubscriberProcessID = uint32(tlv.DecodeUnsigned(procBody))
	confBody, err := r.ReadContextValue(tagSCPMConfirmed)
	if err != nil {
		return s, err
	}
	s.IssueConfirmed = len(confBody) == 1 && confBody[0] != 0
	if lifeBody, ok, err := r.TryReadContextValue(tagSCPMLifetime); err != nil {
		return s, err
	} else if ok {
		life := uint32(tlv.DecodeUnsigned(lifeBody))
		s.Lifetime = &life
	}
	if err := r.ExpectOpening(tagSCPMList); err != nil {
		return s, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return s, err
		}
		if h.IsClosing() && h.Number == tagSCPMList {
			break
		}
		oidBody, err := r.ReadContextValue(tagRPMObjectID)
		if err != nil {
			return s, err
		}
		oid, err := tlv.DecodeObjectIdentifier(oidBody)
		if err != nil {
			return s, err
		}
		if err := r.ExpectOpening(tagRPMPropertyList); err != nil {
			return s, err
		}
		spec := ReadAccessSpec{ObjectID: oid}
		for {
			hh, err := r.PeekHeader()
			if err != nil {
				return s, err
			}
			if hh.IsClosing() && hh.Number == tagRPMPropertyList {
				break
			}
			propBody, err := r.ReadContextValue(tagPropertyID)
			if err != nil {
				return s, err
			}
			ref := PropertyReference{Property: uint32(tlv.DecodeUnsigned(propBody))}
			if idxBody, ok, err := r.TryReadContextValue(tagPropertyArrayIdx); err != nil {
				return s, err
			} else if ok {
				idx := uint32(tlv.DecodeUnsigned(idxBody))
				ref.ArrayIndex = &idx
			}
			spec.Properties = append(spec.Properties, ref)
		}
		if err := r.ExpectClosing(tagRPMPropertyList); err != nil {
			return s, err
		}
		s.List = append(s.List, spec)
	}
	if err := r.ExpectClosing(tagSCPMList); err != nil {
		return s, err
	}
	return s, nil
}

// AcknowledgeAlarmRequest is the parameter sequence of an
// AcknowledgeAlarm request (Clause 13.7.1).
type AcknowledgeAlarmRequest struct {
	AckProcessID    uint32
	EventObjectID   tlv.ObjectIdentifier
	EventStateAcked uint32
	TimeStamp       tlv.Time
	AckSource       string
	TimeOfAck       tlv.Time
}

const (
	tagAAProcess   = 0
	tagAAObject    = 1
	tagAAState     = 2
	tagAATimeStamp = 3
	tagAASource    = 4
	tagAATimeOfAck = 5
)

func EncodeAcknowledgeAlarmRequest(a AcknowledgeAlarmRequest) []byte {
	var buf []byte
	proc := tlv.EncodeUnsigned(uint64(a.AckProcessID))
	buf = append(tlv.EncodeContextHeader(buf, tagAAProcess, len(proc)), proc...)
	oid := tlv.EncodeObjectIdentifier(a.EventObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagAAObject, len(oid)), oid...)
	state := tlv.EncodeUnsigned(uint64(a.EventStateAcked))
	buf = append(tlv.EncodeContextHeader(buf, tagAAState, len(state)), state...)
	ts := tlv.EncodeTime(a.TimeStamp)
	buf = append(tlv.EncodeContextHeader(buf, tagAATimeStamp, len(ts)), ts...)
	src := tlv.EncodeCharacterString(a.AckSource)
	buf = append(tlv.EncodeContextHeader(buf, tagAASource, len(src)), src...)
	toa := tlv.EncodeTime(a.TimeOfAck)
	buf = append(tlv.EncodeContextHeader(buf, tagAATimeOfAck, len(toa)), toa...)
	return buf
}

func DecodeAcknowledgeAlarmRequest(data []byte) (AcknowledgeAlarmRequest, error) {
	r := tlv.NewReader(data)
	var a AcknowledgeAlarmRequest
	procBody, err := r.ReadContextValue(tagAAProcess)
	if err != nil {
		return a, err
	}
	a.AckProcessID = uint32(tlv.DecodeUnsigned(procBody))
	oidBody, err := r.ReadContextValue(tagAAObject)
	if err != nil {
		return a, err
	}
	if a.EventObjectID, err = tlv.DecodeObjectIdentifier(oidBody); err != nil {
		return a, err
	}
	stateBody, err := r.ReadContextValue(tagAAState)
	if err != nil {
		return a, err
	}
	a.EventStateAcked = uint32(tlv.DecodeUnsigned(stateBody))
	tsBody, err := r.ReadContextValue(tagAATimeStamp)
	if err != nil {
		return a, err
	}
	if a.TimeStamp, err = tlv.DecodeTime(tsBody); err != nil {
		return a, err
	}
	srcBody, err := r.ReadContextValue(tagAASource)
	if err != nil {
		return a, err
	}
	if a.AckSource, err = tlv.DecodeCharacterString(srcBody); err != nil {
		return a, err
	}
	toaBody, err := r.ReadContextValue(tagAATimeOfAck)
	if err != nil {
		return a, err
	}
	if a.TimeOfAck, err = tlv.DecodeTime(toaBody); err != nil {
		return a, err
	}
	return a, nil
}

// AlarmSummaryEntry is one row of a GetAlarmSummary/GetEventInformation
// ack (Clause 13.8/13.13).
type AlarmSummaryEntry struct {
	ObjectID                tlv.ObjectIdentifier
	AlarmState               uint32
	AcknowledgedTransitions  uint8 // 3-bit flag field packed into a byte
}

// GetAlarmSummaryAck is the parameter sequence of a GetAlarmSummary
// Complex-ACK: a flat list of active alarms, no request parameters.
type GetAlarmSummaryAck struct {
	Entries []AlarmSummaryEntry
}

func EncodeGetAlarmSummaryAck(a GetAlarmSummaryAck) []byte {
	var buf []byte
	for _, e := range a.Entries {
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: e.ObjectID})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagEnumerated, Uint: uint64(e.AlarmState)})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagBitString, Bits: ackTransitionBits(e.AcknowledgedTransitions)})...)
	}
	return buf
}

// ackTransitionBits packs the 3-bit acknowledged-transitions flag field
// (to-offnormal, to-fault, to-normal) into a BACnet bit-string value.
func ackTransitionBits(t uint8) tlv.BitString {
	return tlv.BitString{Bits: []bool{t&1 != 0, t&2 != 0, t&4 != 0}}
}

func ackTransitionFlags(bs tlv.BitString) uint8 {
	var t uint8
	for i, bit := range bs.Bits {
		if bit {
			t |= 1 << uint(i)
		}
	}
	return t
}

func DecodeGetAlarmSummaryAck(data []byte) (GetAlarmSummaryAck, error) {
	r := tlv.NewReader(data)
	var a GetAlarmSummaryAck
	for r.Remaining() {
		oid, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		state, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		ack, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		a.Entries = append(a.Entries, AlarmSummaryEntry{ObjectID: oid.ObjectID, AlarmState: uint32(state.Uint), AcknowledgedTransitions: ackTransitionFlags(ack.Bits)})
	}
	return a, nil
}

// GetEnrollmentSummaryRequest is the parameter sequence of a
// GetEnrollmentSummary request (Clause 13.9.1). The standard's optional
// selection filters (process ID, object, event type, priority range,
// notification class) are carried as raw already-encoded bytes: a
// PICS-lite server is expected to ignore filters it doesn't support
// rather than reject the whole request.
type GetEnrollmentSummaryRequest struct {
	AcknowledgmentFilter uint32 // 0 = all, 1 = acked, 2 = not-acked
	RawFilters           []byte
}

func EncodeGetEnrollmentSummaryRequest(g GetEnrollmentSummaryRequest) []byte {
	var buf []byte
	af := tlv.EncodeUnsigned(uint64(g.AcknowledgmentFilter))
	buf = append(tlv.EncodeContextHeader(buf, 0, len(af)), af...)
	return append(buf, g.RawFilters...)
}

func DecodeGetEnrollmentSummaryRequest(data []byte) (GetEnrollmentSummaryRequest, error) {
	r := tlv.NewReader(data)
	afBody, err := r.ReadContextValue(0)
	if err != nil {
		return GetEnrollmentSummaryRequest{}, err
	}
	return GetEnrollmentSummaryRequest{AcknowledgmentFilter: uint32(tlv.DecodeUnsigned(afBody)), RawFilters: data[r.Pos():]}, nil
}

// EnrollmentSummaryEntry is one row of a GetEnrollmentSummary ack.
type EnrollmentSummaryEntry struct {
	ObjectID          tlv.ObjectIdentifier
	EventType         uint32
	EventState        uint32
	Priority          uint8
	NotificationClass uint32
}

// GetEnrollmentSummaryAck is the parameter sequence of a
// GetEnrollmentSummary Complex-ACK.
type GetEnrollmentSummaryAck struct {
	Entries []EnrollmentSummaryEntry
}

func EncodeGetEnrollmentSummaryAck(a GetEnrollmentSummaryAck) []byte {
	var buf []byte
	for _, e := range a.Entries {
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: e.ObjectID})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagEnumerated, Uint: uint64(e.EventType)})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagEnumerated, Uint: uint64(e.EventState)})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(e.Priority)})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(e.NotificationClass)})...)
	}
	return buf
}

func DecodeGetEnrollmentSummaryAck(data []byte) (GetEnrollmentSummaryAck, error) {
	r := tlv.NewReader(data)
	var a GetEnrollmentSummaryAck
	for r.Remaining() {
		oid, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		et, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		es, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		pri, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		nc, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		a.Entries = append(a.Entries, EnrollmentSummaryEntry{
			ObjectID: oid.ObjectID, EventType: uint32(et.Uint), EventState: uint32(es.Uint),
			Priority: uint8(pri.Uint), NotificationClass: uint32(nc.Uint),
		})
	}
	return a, nil
}

// GetEventInformationRequest is the parameter sequence of a
// GetEventInformation request (Clause 13.13.1): an optional "resume
// after this object" cursor for paging through a long active-event list.
type GetEventInformationRequest struct {
	LastReceivedObjectID *tlv.ObjectIdentifier
}

func EncodeGetEventInformationRequest(g GetEventInformationRequest) []byte {
	if g.LastReceivedObjectID == nil {
		return nil
	}
	oid := tlv.EncodeObjectIdentifier(*g.LastReceivedObjectID)
	return append(tlv.EncodeContextHeader(nil, 0, len(oid)), oid...)
}

func DecodeGetEventInformationRequest(data []byte) (GetEventInformationRequest, error) {
	if len(data) == 0 {
		return GetEventInformationRequest{}, nil
	}
	r := tlv.NewReader(data)
	body, err := r.ReadContextValue(0)
	if err != nil {
		return GetEventInformationRequest{}, err
	}
	oid, err := tlv.DecodeObjectIdentifier(body)
	if err != nil {
		return GetEventInformationRequest{}, err
	}
	return GetEventInformationRequest{LastReceivedObjectID: &oid}, nil
}

// GetEventInformationAck is the parameter sequence of a
// GetEventInformation Complex-ACK: the active-event list plus a
// more-items flag for paging.
type GetEventInformationAck struct {
	Entries   []AlarmSummaryEntry
	MoreItems bool
}

const (
	tagGEIList      = 0
	tagGEIMoreItems = 1
)

func EncodeGetEventInformationAck(a GetEventInformationAck) []byte {
	var buf []byte
	buf = tlv.EncodeOpeningTag(buf, tagGEIList)
	buf = append(buf, EncodeGetAlarmSummaryAck(GetAlarmSummaryAck{Entries: a.Entries})...)
	buf = tlv.EncodeClosingTag(buf, tagGEIList)
	length := 0
	if a.MoreItems {
		length = 1
	}
	buf = tlv.EncodeContextHeader(buf, tagGEIMoreItems, length)
	if a.MoreItems {
		buf = append(buf, 1)
	}
	return buf
}

func DecodeGetEventInformationAck(data []byte) (GetEventInformationAck, error) {
	r := tlv.NewReader(data)
	var a GetEventInformationAck
	if err := r.ExpectOpening(tagGEIList); err != nil {
		return a, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return a, err
		}
		if h.IsClosing() && h.Number == tagGEIList {
			break
		}
		oid, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		state, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		ack, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		a.Entries = append(a.Entries, AlarmSummaryEntry{ObjectID: oid.ObjectID, AlarmState: uint32(state.Uint), AcknowledgedTransitions: ackTransitionFlags(ack.Bits)})
	}
	if err := r.ExpectClosing(tagGEIList); err != nil {
		return a, err
	}
	moreBody, err := r.ReadContextValue(tagGEIMoreItems)
	if err != nil {
		return a, err
	}
	a.MoreItems = len(moreBody) == 1 && moreBody[0] != 0
	return a, nil
}

// textMessageRequest is the shared shape of Confirmed- and
// Unconfirmed-Text-Message (Clause 16.4/16.5).
type textMessageRequest struct {
	SourceDevice   tlv.ObjectIdentifier
	MessageClass   *string
	MessagePriority uint32 // 0 = normal, 1 = urgent
	Message        string
}

const (
	tagTMSource   = 0
	tagTMClass    = 1
	tagTMPriority = 2
	tagTMBody     = 3
)

func encodeTextMessageRequest(t textMessageRequest) []byte {
	var buf []byte
	dev := tlv.EncodeObjectIdentifier(t.SourceDevice)
	buf = append(tlv.EncodeContextHeader(buf, tagTMSource, len(dev)), dev...)
	if t.MessageClass != nil {
		cls := tlv.EncodeCharacterString(*t.MessageClass)
		buf = append(tlv.EncodeContextHeader(buf, tagTMClass, len(cls)), cls...)
	}
	pri := tlv.EncodeUnsigned(uint64(t.MessagePriority))
	buf = append(tlv.EncodeContextHeader(buf, tagTMPriority, len(pri)), pri...)
	msg := tlv.EncodeCharacterString(t.Message)
	buf = append(tlv.EncodeContextHeader(buf, tagTMBody, len(msg)), msg...)
	return buf
}

func decodeTextMessageRequest(data []byte) (textMessageRequest, error) {
	r := tlv.NewReader(data)
	var t textMessageRequest
	devBody, err := r.ReadContextValue(tagTMSource)
	if err != nil {
		return t, err
	}
	if t.SourceDevice, err = tlv.DecodeObjectIdentifier(devBody); err != nil {
		return t, err
	}
	if clsBody, ok, err := r.TryReadContextValue(tagTMClass); err != nil {
		return t, err
	} else if ok {
		cls, err := tlv.DecodeCharacterString(clsBody)
		if err != nil {
			return t, err
		}
		t.MessageClass = &cls
	}
	priBody, err := r.ReadContextValue(tagTMPriority)
	if err != nil {
		return t, err
	}
	t.MessagePriority = uint32(tlv.DecodeUnsigned(priBody))
	msgBody, err := r.ReadContextValue(tagTMBody)
	if err != nil {
		return t, err
	}
	if t.Message, err = tlv.DecodeCharacterString(msgBody); err != nil {
		return t, err
	}
	return t, nil
}

// ConfirmedTextMessageRequest is the parameter sequence of a
// Confirmed-Text-Message request (Clause 16.4.1).
type ConfirmedTextMessageRequest textMessageRequest

func EncodeConfirmedTextMessageRequest(c ConfirmedTextMessageRequest) []byte {
	return encodeTextMessageRequest(textMessageRequest(c))
}

func DecodeConfirmedTextMessageRequest(data []byte) (ConfirmedTextMessageRequest, error) {
	t, err := decodeTextMessageRequest(data)
	return ConfirmedTextMessageRequest(t), err
}

// UnconfirmedTextMessageRequest is the parameter sequence of an
// Unconfirmed-Text-Message request (Clause 16.5.1): identical shape to
// ConfirmedTextMessageRequest.
type UnconfirmedTextMessageRequest textMessageRequest

func EncodeUnconfirmedTextMessageRequest(u UnconfirmedTextMessageRequest) []byte {
	return encodeTextMessageRequest(textMessageRequest(u))
}

func DecodeUnconfirmedTextMessageRequest(data []byte) (UnconfirmedTextMessageRequest, error) {
	t, err := decodeTextMessageRequest(data)
	return UnconfirmedTextMessageRequest(t), err
}

// privateTransferRequest is the shared shape of Confirmed- and
// Unconfirmed-Private-Transfer (Clause 16.1/16.2): vendor-specific and
// left as a raw parameter octet string, since only the vendor's own
// stack can interpret it.
type privateTransferRequest struct {
	VendorID      uint32
	ServiceNumber uint32
	Parameters    []byte
}

const (
	tagPTVendor    = 0
	tagPTService   = 1
	tagPTParameters = 2
)

func encodePrivateTransferRequest(p privateTransferRequest) []byte {
	var buf []byte
	v := tlv.EncodeUnsigned(uint64(p.VendorID))
	buf = append(tlv.EncodeContextHeader(buf, tagPTVendor, len(v)), v...)
	s := tlv.EncodeUnsigned(uint64(p.ServiceNumber))
	buf = append(tlv.EncodeContextHeader(buf, tagPTService, len(s)), s...)
	if len(p.Parameters) > 0 {
		buf = tlv.EncodeOpeningTag(buf, tagPTParameters)
		buf = append(buf, p.Parameters...)
		buf = tlv.EncodeClosingTag(buf, tagPTParameters)
	}
	return buf
}

func decodePrivateTransferRequest(data []byte) (privateTransferRequest, error) {
	r := tlv.NewReader(data)
	var p privateTransferRequest
	vBody, err := r.ReadContextValue(tagPTVendor)
	if err != nil {
		return p, err
	}
	p.VendorID = uint32(tlv.DecodeUnsigned(vBody))
	sBody, err := r.ReadContextValue(tagPTService)
	if err != nil {
		return p, err
	}
	p.ServiceNumber = uint32(tlv.DecodeUnsigned(sBody))
	if err := r.ExpectOpening(tagPTParameters); err == nil {
		start := r.Pos()
		for {
			h, err := r.PeekHeader()
			if err != nil {
				return p, err
			}
			if h.IsClosing() && h.Number == tagPTParameters {
				break
			}
			if _, err := r.ReadApplicationValue(); err != nil {
				return p, err
			}
		}
		end := r.Pos()
		p.Parameters = append([]byte(nil), data[start:end]...)
		if err := r.ExpectClosing(tagPTParameters); err != nil {
			return p, err
		}
	}
	return p, nil
}

// ConfirmedPrivateTransferRequest is the parameter sequence of a
// ConfirmedPrivateTransfer request (Clause 16.1.1).
type ConfirmedPrivateTransferRequest privateTransferRequest

func EncodeConfirmedPrivateTransferRequest(c ConfirmedPrivateTransferRequest) []byte {
	return encodePrivateTransferRequest(privateTransferRequest(c))
}

func DecodeConfirmedPrivateTransferRequest(data []byte) (ConfirmedPrivateTransferRequest, error) {
	p, err := decodePrivateTransferRequest(data)
	return ConfirmedPrivateTransferRequest(p), err
}

// ConfirmedPrivateTransferAck is the parameter sequence of a
// ConfirmedPrivateTransfer Complex-ACK.
type ConfirmedPrivateTransferAck struct {
	VendorID      uint32
	ServiceNumber uint32
	ResultBlock   []byte
}

func EncodeConfirmedPrivateTransferAck(a ConfirmedPrivateTransferAck) []byte {
	return encodePrivateTransferRequest(privateTransferRequest{VendorID: a.VendorID, ServiceNumber: a.ServiceNumber, Parameters: a.ResultBlock})
}

func DecodeConfirmedPrivateTransferAck(data []byte) (ConfirmedPrivateTransferAck, error) {
	p, err := decodePrivateTransferRequest(data)
	if err != nil {
		return ConfirmedPrivateTransferAck{}, err
	}
	return ConfirmedPrivateTransferAck{VendorID: p.VendorID, ServiceNumber: p.ServiceNumber, ResultBlock: p.Parameters}, nil
}

// UnconfirmedPrivateTransferRequest is the parameter sequence of an
// UnconfirmedPrivateTransfer request (Clause 16.2.1): identical shape to
// ConfirmedPrivateTransferRequest.
type UnconfirmedPrivateTransferRequest privateTransferRequest

func EncodeUnconfirmedPrivateTransferRequest(u UnconfirmedPrivateTransferRequest) []byte {
	return encodePrivateTransferRequest(privateTransferRequest(u))
}

func DecodeUnconfirmedPrivateTransferRequest(data []byte) (UnconfirmedPrivateTransferRequest, error) {
	p, err := decodePrivateTransferRequest(data)
	return UnconfirmedPrivateTransferRequest(p), err
}

// WhoAmIRequest is the parameter sequence of a Who-Am-I request (Clause
// 16.13): a device announcing its vendor/model/serial so a management
// tool can assign it an identity.
type WhoAmIRequest struct {
	VendorID     uint32
	ModelName    string
	SerialNumber string
}

func EncodeWhoAmI(w WhoAmIRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(w.VendorID)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagCharacterString, Str: w.ModelName})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagCharacterString, Str: w.SerialNumber})...)
	return buf
}

func DecodeWhoAmI(data []byte) (WhoAmIRequest, error) {
	r := tlv.NewReader(data)
	vendor, err := r.ReadApplicationValue()
	if err != nil {
		return WhoAmIRequest{}, err
	}
	model, err := r.ReadApplicationValue()
	if err != nil {
		return WhoAmIRequest{}, err
	}
	serial, err := r.ReadApplicationValue()
	if err != nil {
		return WhoAmIRequest{}, err
	}
	return WhoAmIRequest{VendorID: uint32(vendor.Uint), ModelName: model.Str, SerialNumber: serial.Str}, nil
}

// YouAreRequest is the parameter sequence of a You-Are request (Clause
// 16.14): the management tool's response assigning a device identity.
type YouAreRequest struct {
	VendorID     uint32
	ModelName    string
	SerialNumber string
	DeviceID     *tlv.ObjectIdentifier
	DeviceMAC    []byte
}

func EncodeYouAre(y YouAreRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(y.VendorID)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagCharacterString, Str: y.ModelName})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagCharacterString, Str: y.SerialNumber})...)
	if y.DeviceID != nil {
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: *y.DeviceID})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagOctetString, Octet: y.DeviceMAC})...)
	}
	return buf
}

func DecodeYouAre(data []byte) (YouAreRequest, error) {
	r := tlv.NewReader(data)
	var y YouAreRequest
	vendor, err := r.ReadApplicationValue()
	if err != nil {
		return y, err
	}
	y.VendorID = uint32(vendor.Uint)
	model, err := r.ReadApplicationValue()
	if err != nil {
		return y, err
	}
	y.ModelName = model.Str
	serial, err := r.ReadApplicationValue()
	if err != nil {
		return y, err
	}
	y.SerialNumber = serial.Str
	if r.Remaining() {
		dev, err := r.ReadApplicationValue()
		if err != nil {
			return y, err
		}
		oid := dev.ObjectID
		y.DeviceID = &oid
		mac, err := r.ReadApplicationValue()
		if err != nil {
			return y, err
		}
		y.DeviceMAC = mac.Octet
	}
	return y, nil
}

// GroupChannelValue is one channel's commanded value within a WriteGroup
// request (Clause 16.15).
type GroupChannelValue struct {
	ChannelNumber uint32
	Value         tlv.Value
	Priority      *uint8
}

// WriteGroupRequest is the parameter sequence of a WriteGroup request
// (Clause 16.15.1): a channel-addressed group write, distinct from the
// object/property addressing every other write service uses.
type WriteGroupRequest struct {
	GroupNumber  uint32
	WritePriority uint8
	ChangeList   []GroupChannelValue
	InhibitDelay bool
}

const (
	tagWGGroupNumber   = 0
	tagWGWritePriority = 1
	tagWGChangeList    = 2
	tagWGInhibitDelay  = 3
)

func EncodeWriteGroupRequest(w WriteGroupRequest) []byte {
	var buf []byte
	gn := tlv.EncodeUnsigned(uint64(w.GroupNumber))
	buf = append(tlv.EncodeContextHeader(buf, tagWGGroupNumber, len(gn)), gn...)
	wp := tlv.EncodeUnsigned(uint64(w.WritePriority))
	buf = append(tlv.EncodeContextHeader(buf, tagWGWritePriority, len(wp)), wp...)
	buf = tlv.EncodeOpeningTag(buf, tagWGChangeList)
	for _, c := range w.ChangeList {
		cn := tlv.EncodeUnsigned(uint64(c.ChannelNumber))
		buf = append(tlv.EncodeContextHeader(buf, 0, len(cn)), cn...)
		buf = tlv.EncodeOpeningTag(buf, 1)
		buf = append(buf, tlv.EncodeApplication(c.Value)...)
		buf = tlv.EncodeClosingTag(buf, 1)
		if c.Priority != nil {
			p := tlv.EncodeUnsigned(uint64(*c.Priority))
			buf = append(tlv.EncodeContextHeader(buf, 2, len(p)), p...)
		}
	}
	buf = tlv.EncodeClosingTag(buf, tagWGChangeList)
	length := 0
	if w.InhibitDelay {
		length = 1
	}
	buf = tlv.EncodeContextHeader(buf, tagWGInhibitDelay, length)
	if w.InhibitDelay {
		buf = append(buf, 1)
	}
	return buf
}

func DecodeWriteGroupRequest(data []byte) (WriteGroupRequest, error) {
	r := tlv.NewReader(data)
	var w WriteGroupRequest
	gnBody, err := r.ReadContextValue(tagWGGroupNumber)
	if err != nil {
		return w, err
	}
	w.GroupNumber = uint32(tlv.DecodeUnsigned(gnBody))
	wpBody, err := r.ReadContextValue(tagWGWritePriority)
	if err != nil {
		return w, err
	}
	w.WritePriority = uint8(tlv.DecodeUnsigned(wpBody))
	if err := r.ExpectOpening(tagWGChangeList); err != nil {
		return w, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return w, err
		}
		if h.IsClosing() && h.Number == tagWGChangeList {
			break
		}
		cnBody, err := r.ReadContextValue(0)
		if err != nil {
			return w, err
		}
		c := GroupChannelValue{ChannelNumber: uint32(tlv.DecodeUnsigned(cnBody))}
		if err := r.ExpectOpening(1); err != nil {
			return w, err
		}
		c.Value, err = r.ReadApplicationValue()
		if err != nil {
			return w, err
		}
		if err := r.ExpectClosing(1); err != nil {
			return w, err
		}
		if prBody, ok, err := r.TryReadContextValue(2); err != nil {
			return w, err
		} else if ok {
			pr := uint8(tlv.DecodeUnsigned(prBody))
			c.Priority = &pr
		}
		w.ChangeList = append(w.ChangeList, c)
	}
	if err := r.ExpectClosing(tagWGChangeList); err != nil {
		return w, err
	}
	if idBody, ok, err := r.TryReadContextValue(tagWGInhibitDelay); err != nil {
		return w, err
	} else if ok {
		w.InhibitDelay = len(idBody) == 1 && idBody[0] != 0
	}
	return w, nil
}

// VTOpenRequest is the parameter sequence of a VT-Open request (Clause
// 16.7.1).
type VTOpenRequest struct {
	VTClass          uint8
	LocalVTSessionID uint8
}

func EncodeVTOpenRequest(v VTOpenRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(v.VTClass)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(v.LocalVTSessionID)})...)
	return buf
}

func DecodeVTOpenRequest(data []byte) (VTOpenRequest, error) {
	r := tlv.NewReader(data)
	class, err := r.ReadApplicationValue()
	if err != nil {
		return VTOpenRequest{}, err
	}
	session, err := r.ReadApplicationValue()
	if err != nil {
		return VTOpenRequest{}, err
	}
	return VTOpenRequest{VTClass: uint8(class.Uint), LocalVTSessionID: uint8(session.Uint)}, nil
}

// VTOpenAck is the parameter of a VT-Open Complex-ACK: the session ID
// the server assigned.
type VTOpenAck struct {
	RemoteVTSessionID uint8
}

func EncodeVTOpenAck(a VTOpenAck) []byte {
	return tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(a.RemoteVTSessionID)})
}

func DecodeVTOpenAck(data []byte) (VTOpenAck, error) {
	r := tlv.NewReader(data)
	v, err := r.ReadApplicationValue()
	if err != nil {
		return VTOpenAck{}, err
	}
	return VTOpenAck{RemoteVTSessionID: uint8(v.Uint)}, nil
}

// VTCloseRequest is the parameter sequence of a VT-Close request (Clause
// 16.8.1): one or more remote session IDs to close.
type VTCloseRequest struct {
	RemoteVTSessionIDs []uint8
}

func EncodeVTCloseRequest(v VTCloseRequest) []byte {
	var buf []byte
	for _, id := range v.RemoteVTSessionIDs {
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(id)})...)
	}
	return buf
}

func DecodeVTCloseRequest(data []byte) (VTCloseRequest, error) {
	r := tlv.NewReader(data)
	var v VTCloseRequest
	for r.Remaining() {
		id, err := r.ReadApplicationValue()
		if err != nil {
			return v, err
		}
		v.RemoteVTSessionIDs = append(v.RemoteVTSessionIDs, uint8(id.Uint))
	}
	return v, nil
}

// VTDataRequest is the parameter sequence of a VT-Data request (Clause
// 16.9.1): a raw chunk of terminal data bound for an open VT session.
type VTDataRequest struct {
	VTSessionID uint8
	VTNewData   []byte
	VTDataFlag  uint32
}

func EncodeVTDataRequest(v VTDataRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(v.VTSessionID)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagOctetString, Octet: v.VTNewData})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(v.VTDataFlag)})...)
	return buf
}

func DecodeVTDataRequest(data []byte) (VTDataRequest, error) {
	r := tlv.NewReader(data)
	session, err := r.ReadApplicationValue()
	if err != nil {
		return VTDataRequest{}, err
	}
	body, err := r.ReadApplicationValue()
	if err != nil {
		return VTDataRequest{}, err
	}
	flag, err := r.ReadApplicationValue()
	if err != nil {
		return VTDataRequest{}, err
	}
	return VTDataRequest{VTSessionID: uint8(session.Uint), VTNewData: body.Octet, VTDataFlag: uint32(flag.Uint)}, nil
}

// VTDataAck is the parameter sequence of a VT-Data Complex-ACK.
type VTDataAck struct {
	AllNewDataAccepted bool
	AcceptedOctetCount  *uint32
}

func EncodeVTDataAck(a VTDataAck) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagBoolean, Bool: a.AllNewDataAccepted})...)
	if a.AcceptedOctetCount != nil {
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(*a.AcceptedOctetCount)})...)
	}
	return buf
}

func DecodeVTDataAck(data []byte) (VTDataAck, error) {
	r := tlv.NewReader(data)
	var a VTDataAck
	accepted, err := r.ReadApplicationValue()
	if err != nil {
		return a, err
	}
	a.AllNewDataAccepted = accepted.Bool
	if r.Remaining() {
		count, err := r.ReadApplicationValue()
		if err != nil {
			return a, err
		}
		c := uint32(count.Uint)
		a.AcceptedOctetCount = &c
	}
	return a, nil
}

// AuditNotification is one entry of a Confirmed-/Unconfirmed-Audit-
// Notification (Clause 13.13a per the audit reporting addendum): a
// single audit log record pushed to a subscriber in the same shape the
// source device's own audit log object stores it in.
type AuditNotification struct {
	SourceTimestamp tlv.Time
	SourceDeviceID  tlv.ObjectIdentifier
	TargetObjectID  tlv.ObjectIdentifier
	Operation       uint32
	Parameters      []byte
}

const (
	tagANTimestamp = 0
	tagANSource    = 1
	tagANTarget    = 2
	tagANOperation = 3
	tagANParams    = 4
)

func encodeAuditNotification(n AuditNotification) []byte {
	var buf []byte
	ts := tlv.EncodeTime(n.SourceTimestamp)
	buf = append(tlv.EncodeContextHeader(buf, tagANTimestamp, len(ts)), ts...)
	dev := tlv.EncodeObjectIdentifier(n.SourceDeviceID)
	buf = append(tlv.EncodeContextHeader(buf, tagANSource, len(dev)), dev...)
	tgt := tlv.EncodeObjectIdentifier(n.TargetObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagANTarget, len(tgt)), tgt...)
	op := tlv.EncodeUnsigned(uint64(n.Operation))
	buf = append(tlv.EncodeContextHeader(buf, tagANOperation, len(op)), op...)
	if len(n.Parameters) > 0 {
		buf = tlv.EncodeOpeningTag(buf, tagANParams)
		buf = append(buf, n.Parameters...)
		buf = tlv.EncodeClosingTag(buf, tagANParams)
	}
	return buf
}

// decodeAuditNotificationR decodes one AuditNotification from r, which
// must already be positioned at its first tag. Sharing a single Reader
// (rather than re-slicing and re-parsing) keeps position tracking correct
// when several notifications are packed back to back, as in both the
// audit-notification services and AuditLogQueryAck's record list.
func decodeAuditNotificationR(data []byte, r *tlv.Reader) (AuditNotification, error) {
	var n AuditNotification
	tsBody, err := r.ReadContextValue(tagANTimestamp)
	if err != nil {
		return n, err
	}
	if n.SourceTimestamp, err = tlv.DecodeTime(tsBody); err != nil {
		return n, err
	}
	devBody, err := r.ReadContextValue(tagANSource)
	if err != nil {
		return n, err
	}
	if n.SourceDeviceID, err = tlv.DecodeObjectIdentifier(devBody); err != nil {
		return n, err
	}
	tgtBody, err := r.ReadContextValue(tagANTarget)
	if err != nil {
		return n, err
	}
	if n.TargetObjectID, err = tlv.DecodeObjectIdentifier(tgtBody); err != nil {
		return n, err
	}
	opBody, err := r.ReadContextValue(tagANOperation)
	if err != nil {
		return n, err
	}
	n.Operation = uint32(tlv.DecodeUnsigned(opBody))
	if err := r.ExpectOpening(tagANParams); err == nil {
		start := r.Pos()
		for {
			h, err := r.PeekHeader()
			if err != nil {
				return n, err
			}
			if h.IsClosing() && h.Number == tagANParams {
				break
			}
			if _, err := r.ReadApplicationValue(); err != nil {
				return n, err
			}
		}
		end := r.Pos()
		n.Parameters = append([]byte(nil), data[start:end]...)
		if err := r.ExpectClosing(tagANParams); err != nil {
			return n, err
		}
	}
	return n, nil
}

// auditNotificationsRequest is the shared shape of Confirmed- and
// Unconfirmed-Audit-Notification: one or more AuditNotification records
// in a single PDU.
type auditNotificationsRequest struct {
	Notifications []AuditNotification
}

func encodeAuditNotificationsRequest(a auditNotificationsRequest) []byte {
	var buf []byte
	for _, n := range a.Notifications {
		buf = append(buf, encodeAuditNotification(n)...)
	}
	return buf
}

func decodeAuditNotificationsRequest(data []byte) (auditNotificationsRequest, error) {
	r := tlv.NewReader(data)
	var a auditNotificationsRequest
	for r.Remaining() {
		n, err := decodeAuditNotificationR(data, r)
		if err != nil {
			return a, err
		}
		a.Notifications = append(a.Notifications, n)
	}
	return a, nil
}

// ConfirmedAuditNotificationRequest is the parameter sequence of a
// Confirmed-Audit-Notification request.
type ConfirmedAuditNotificationRequest auditNotificationsRequest

func EncodeConfirmedAuditNotificationRequest(c ConfirmedAuditNotificationRequest) []byte {
	return encodeAuditNotificationsRequest(auditNotificationsRequest(c))
}

func DecodeConfirmedAuditNotificationRequest(data []byte) (ConfirmedAuditNotificationRequest, error) {
	a, err := decodeAuditNotificationsRequest(data)
	return ConfirmedAuditNotificationRequest(a), err
}

// UnconfirmedAuditNotificationRequest is the parameter sequence of an
// Unconfirmed-Audit-Notification request: identical shape to
// ConfirmedAuditNotificationRequest.
type UnconfirmedAuditNotificationRequest auditNotificationsRequest

func EncodeUnconfirmedAuditNotificationRequest(u UnconfirmedAuditNotificationRequest) []byte {
	return encodeAuditNotificationsRequest(auditNotificationsRequest(u))
}

func DecodeUnconfirmedAuditNotificationRequest(data []byte) (UnconfirmedAuditNotificationRequest, error) {
	a, err := decodeAuditNotificationsRequest(data)
	return UnconfirmedAuditNotificationRequest(a), err
}

// AuditLogQueryRequest is the parameter sequence of an AuditLogQuery
// request (the audit reporting addendum's query-by-time-range form):
// query the audit log of LogDeviceObjectID/LogObjectID for records
// between StartTime and EndTime.
type AuditLogQueryRequest struct {
	LogDeviceObjectID tlv.ObjectIdentifier
	LogObjectID       tlv.ObjectIdentifier
	StartTime         tlv.Time
	EndTime           tlv.Time
	RequestedCount    uint32
}

const (
	tagALQDevice    = 0
	tagALQObject    = 1
	tagALQStartTime = 2
	tagALQEndTime   = 3
	tagALQCount     = 4
)

func EncodeAuditLogQueryRequest(q AuditLogQueryRequest) []byte {
	var buf []byte
	dev := tlv.EncodeObjectIdentifier(q.LogDeviceObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagALQDevice, len(dev)), dev...)
	obj := tlv.EncodeObjectIdentifier(q.LogObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagALQObject, len(obj)), obj...)
	start := tlv.EncodeTime(q.StartTime)
	buf = append(tlv.EncodeContextHeader(buf, tagALQStartTime, len(start)), start...)
	end := tlv.EncodeTime(q.EndTime)
	buf = append(tlv.EncodeContextHeader(buf, tagALQEndTime, len(end)), end...)
	count := tlv.EncodeUnsigned(uint64(q.RequestedCount))
	buf = append(tlv.EncodeContextHeader(buf, tagALQCount, len(count)), count...)
	return buf
}

func DecodeAuditLogQueryRequest(data []byte) (AuditLogQueryRequest, error) {
	r := tlv.NewReader(data)
	var q AuditLogQueryRequest
	devBody, err := r.ReadContextValue(tagALQDevice)
	if err != nil {
		return q, err
	}
	if q.LogDeviceObjectID, err = tlv.DecodeObjectIdentifier(devBody); err != nil {
		return q, err
	}
	objBody, err := r.ReadContextValue(tagALQObject)
	if err != nil {
		return q, err
	}
	if q.LogObjectID, err = tlv.DecodeObjectIdentifier(objBody); err != nil {
		return q, err
	}
	startBody, err := r.ReadContextValue(tagALQStartTime)
	if err != nil {
		return q, err
	}
	if q.StartTime, err = tlv.DecodeTime(startBody); err != nil {
		return q, err
	}
	endBody, err := r.ReadContextValue(tagALQEndTime)
	if err != nil {
		return q, err
	}
	if q.EndTime, err = tlv.DecodeTime(endBody); err != nil {
		return q, err
	}
	countBody, err := r.ReadContextValue(tagALQCount)
	if err != nil {
		return q, err
	}
	q.RequestedCount = uint32(tlv.DecodeUnsigned(countBody))
	return q, nil
}

// AuditLogQueryAck is the parameter sequence of an AuditLogQuery
// Complex-ACK: the matched records (carried opaquely, same rationale as
// AuditNotification.Parameters) plus a more-items flag for paging.
type AuditLogQueryAck struct {
	Records   []AuditNotification
	MoreItems bool
}

const (
	tagALQAckRecords   = 0
	tagALQAckMoreItems = 1
)

func EncodeAuditLogQueryAck(a AuditLogQueryAck) []byte {
	var buf []byte
	buf = tlv.EncodeOpeningTag(buf, tagALQAckRecords)
	for _, rec := range a.Records {
		buf = append(buf, encodeAuditNotification(rec)...)
	}
	buf = tlv.EncodeClosingTag(buf, tagALQAckRecords)
	length := 0
	if a.MoreItems {
		length = 1
	}
	buf = tlv.EncodeContextHeader(buf, tagALQAckMoreItems, length)
	if a.MoreItems {
		buf = append(buf, 1)
	}
	return buf
}

func DecodeAuditLogQueryAck(data []byte) (AuditLogQueryAck, error) {
	r := tlv.NewReader(data)
	var a AuditLogQueryAck
	if err := r.ExpectOpening(tagALQAckRecords); err != nil {
		return a, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return a, err
		}
		if h.IsClosing() && h.Number == tagALQAckRecords {
			break
		}
		rec, err := decodeAuditNotificationR(data, r)
		if err != nil {
			return a, err
		}
		a.Records = append(a.Records, rec)
	}
	if err := r.ExpectClosing(tagALQAckRecords); err != nil {
		return a, err
	}
	moreBody, err := r.ReadContextValue(tagALQAckMoreItems)
	if err != nil {
		return a, err
	}
	a.MoreItems = len(moreBody) == 1 && moreBody[0] != 0
	return a, nil
}
