package apdu

import (
	"errors"

	"github.com/edgeo/bacnetstack/tlv"
)

// Context tag numbers used across the ReadProperty/WriteProperty family
// (Clause 21, read-property-request/ack parameter sequences).
const (
	tagObjectIdentifier = 0
	tagPropertyID       = 1
	tagPropertyArrayIdx = 2
	tagPropertyValue    = 3
	tagPriority         = 4
)

var ErrMalformedService = errors.New("apdu: malformed service parameters")

// ReadPropertyRequest is the parameter sequence of a ReadProperty request
// (Clause 15.5).
type ReadPropertyRequest struct {
	ObjectID   tlv.ObjectIdentifier
	Property   uint32
	ArrayIndex *uint32
}

func EncodeReadPropertyRequest(r ReadPropertyRequest) []byte {
	var buf []byte
	oid := tlv.EncodeObjectIdentifier(r.ObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagObjectIdentifier, len(oid)), oid...)
	prop := tlv.EncodeUnsigned(uint64(r.Property))
	buf = append(tlv.EncodeContextHeader(buf, tagPropertyID, len(prop)), prop...)
	if r.ArrayIndex != nil {
		idx := tlv.EncodeUnsigned(uint64(*r.ArrayIndex))
		buf = append(tlv.EncodeContextHeader(buf, tagPropertyArrayIdx, len(idx)), idx...)
	}
	return buf
}

func DecodeReadPropertyRequest(data []byte) (ReadPropertyRequest, error) {
	r := tlv.NewReader(data)
	oidBody, err := r.ReadContextValue(tagObjectIdentifier)
	if err != nil {
		return ReadPropertyRequest{}, err
	}
	oid, err := tlv.DecodeObjectIdentifier(oidBody)
	if err != nil {
		return ReadPropertyRequest{}, err
	}
	propBody, err := r.ReadContextValue(tagPropertyID)
	if err != nil {
		return ReadPropertyRequest{}, err
	}
	req := ReadPropertyRequest{ObjectID: oid, Property: uint32(tlv.DecodeUnsigned(propBody))}
	if idxBody, ok, err := r.TryReadContextValue(tagPropertyArrayIdx); err != nil {
		return ReadPropertyRequest{}, err
	} else if ok {
		idx := uint32(tlv.DecodeUnsigned(idxBody))
		req.ArrayIndex = &idx
	}
	return req, nil
}

// ReadPropertyAck is the parameter sequence of a ReadProperty Complex-ACK.
type ReadPropertyAck struct {
	ObjectID   tlv.ObjectIdentifier
	Property   uint32
	ArrayIndex *uint32
	Value      []tlv.Value
}

func EncodeReadPropertyAck(a ReadPropertyAck) []byte {
	var buf []byte
	oid := tlv.EncodeObjectIdentifier(a.ObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagObjectIdentifier, len(oid)), oid...)
	prop := tlv.EncodeUnsigned(uint64(a.Property))
	buf = append(tlv.EncodeContextHeader(buf, tagPropertyID, len(prop)), prop...)
	if a.ArrayIndex != nil {
		idx := tlv.EncodeUnsigned(uint64(*a.ArrayIndex))
		buf = append(tlv.EncodeContextHeader(buf, tagPropertyArrayIdx, len(idx)), idx...)
	}
	buf = tlv.EncodeOpeningTag(buf, tagPropertyValue)
	for _, v := range a.Value {
		buf = append(buf, tlv.EncodeApplication(v)...)
	}
	buf = tlv.EncodeClosingTag(buf, tagPropertyValue)
	return buf
}

func DecodeReadPropertyAck(data []byte) (ReadPropertyAck, error) {
	r := tlv.NewReader(data)
	oidBody, err := r.ReadContextValue(tagObjectIdentifier)
	if err != nil {
		return ReadPropertyAck{}, err
	}
	oid, err := tlv.DecodeObjectIdentifier(oidBody)
	if err != nil {
		return ReadPropertyAck{}, err
	}
	propBody, err := r.ReadContextValue(tagPropertyID)
	if err != nil {
		return ReadPropertyAck{}, err
	}
	ack := ReadPropertyAck{ObjectID: oid, Property: uint32(tlv.DecodeUnsigned(propBody))}
	if idxBody, ok, err := r.TryReadContextValue(tagPropertyArrayIdx); err != nil {
		return ReadPropertyAck{}, err
	} else if ok {
		idx := uint32(tlv.DecodeUnsigned(idxBody))
		ack.ArrayIndex = &idx
	}
	if err := r.ExpectOpening(tagPropertyValue); err != nil {
		return ReadPropertyAck{}, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return ReadPropertyAck{}, err
		}
		if h.IsClosing() && h.Number == tagPropertyValue {
			break
		}
		v, err := r.ReadApplicationValue()
		if err != nil {
			return ReadPropertyAck{}, err
		}
		ack.Value = append(ack.Value, v)
	}
	if err := r.ExpectClosing(tagPropertyValue); err != nil {
		return ReadPropertyAck{}, err
	}
	return ack, nil
}

// WritePropertyRequest is the parameter sequence of a WriteProperty
// request (Clause 15.9).
type WritePropertyRequest struct {
	ObjectID   tlv.ObjectIdentifier
	Property   uint32
	ArrayIndex *uint32
	Value      []tlv.Value
	Priority   *uint8
}

func EncodeWritePropertyRequest(w WritePropertyRequest) []byte {
	var buf []byte
	oid := tlv.EncodeObjectIdentifier(w.ObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagObjectIdentifier, len(oid)), oid...)
	prop := tlv.EncodeUnsigned(uint64(w.Property))
	buf = append(tlv.EncodeContextHeader(buf, tagPropertyID, len(prop)), prop...)
	if w.ArrayIndex != nil {
		idx := tlv.EncodeUnsigned(uint64(*w.ArrayIndex))
		buf = append(tlv.EncodeContextHeader(buf, tagPropertyArrayIdx, len(idx)), idx...)
	}
	buf = tlv.EncodeOpeningTag(buf, tagPropertyValue)
	for _, v := range w.Value {
		buf = append(buf, tlv.EncodeApplication(v)...)
	}
	buf = tlv.EncodeClosingTag(buf, tagPropertyValue)
	if w.Priority != nil {
		pr := tlv.EncodeUnsigned(uint64(*w.Priority))
		buf = append(tlv.EncodeContextHeader(buf, tagPriority, len(pr)), pr...)
	}
	return buf
}

func DecodeWritePropertyRequest(data []byte) (WritePropertyRequest, error) {
	r := tlv.NewReader(data)
	oidBody, err := r.ReadContextValue(tagObjectIdentifier)
	if err != nil {
		return WritePropertyRequest{}, err
	}
	oid, err := tlv.DecodeObjectIdentifier(oidBody)
	if err != nil {
		return WritePropertyRequest{}, err
	}
	propBody, err := r.ReadContextValue(tagPropertyID)
	if err != nil {
		return WritePropertyRequest{}, err
	}
	w := WritePropertyRequest{ObjectID: oid, Property: uint32(tlv.DecodeUnsigned(propBody))}
	if idxBody, ok, err := r.TryReadContextValue(tagPropertyArrayIdx); err != nil {
		return WritePropertyRequest{}, err
	} else if ok {
		idx := uint32(tlv.DecodeUnsigned(idxBody))
		w.ArrayIndex = &idx
	}
	if err := r.ExpectOpening(tagPropertyValue); err != nil {
		return WritePropertyRequest{}, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return WritePropertyRequest{}, err
		}
		if h.IsClosing() && h.Number == tagPropertyValue {
			break
		}
		v, err := r.ReadApplicationValue()
		if err != nil {
			return WritePropertyRequest{}, err
		}
		w.Value = append(w.Value, v)
	}
	if err := r.ExpectClosing(tagPropertyValue); err != nil {
		return WritePropertyRequest{}, err
	}
	if prBody, ok, err := r.TryReadContextValue(tagPriority); err != nil {
		return WritePropertyRequest{}, err
	} else if ok {
		pr := uint8(tlv.DecodeUnsigned(prBody))
		w.Priority = &pr
	}
	return w, nil
}

// PropertyReference identifies one property (and optional array index)
// within a ReadPropertyMultiple / WritePropertyMultiple object spec.
type PropertyReference struct {
	Property   uint32
	ArrayIndex *uint32
}

// ReadAccessSpec is one object's list of requested properties in a
// ReadPropertyMultiple request (Clause 15.7).
type ReadAccessSpec struct {
	ObjectID   tlv.ObjectIdentifier
	Properties []PropertyReference
}

const (
	tagRPMObjectID    = 0
	tagRPMPropertyList = 1
)

func EncodeReadPropertyMultipleRequest(specs []ReadAccessSpec) []byte {
	var buf []byte
	for _, s := range specs {
		oid := tlv.EncodeObjectIdentifier(s.ObjectID)
		buf = append(tlv.EncodeContextHeader(buf, tagRPMObjectID, len(oid)), oid...)
		buf = tlv.EncodeOpeningTag(buf, tagRPMPropertyList)
		for _, p := range s.Properties {
			prop := tlv.EncodeUnsigned(uint64(p.Property))
			buf = append(tlv.EncodeContextHeader(buf, tagPropertyID, len(prop)), prop...)
			if p.ArrayIndex != nil {
				idx := tlv.EncodeUnsigned(uint64(*p.ArrayIndex))
				buf = append(tlv.EncodeContextHeader(buf, tagPropertyArrayIdx, len(idx)), idx...)
			}
		}
		buf = tlv.EncodeClosingTag(buf, tagRPMPropertyList)
	}
	return buf
}

func DecodeReadPropertyMultipleRequest(data []byte) ([]ReadAccessSpec, error) {
	r := tlv.NewReader(data)
	var specs []ReadAccessSpec
	for r.Remaining() {
		oidBody, err := r.ReadContextValue(tagRPMObjectID)
		if err != nil {
			return nil, err
		}
		oid, err := tlv.DecodeObjectIdentifier(oidBody)
		if err != nil {
			return nil, err
		}
		if err := r.ExpectOpening(tagRPMPropertyList); err != nil {
			return nil, err
		}
		spec := ReadAccessSpec{ObjectID: oid}
		for {
			h, err := r.PeekHeader()
			if err != nil {
				return nil, err
			}
			if h.IsClosing() && h.Number == tagRPMPropertyList {
				break
			}
			propBody, err := r.ReadContextValue(tagPropertyID)
			if err != nil {
				return nil, err
			}
			ref := PropertyReference{Property: uint32(tlv.DecodeUnsigned(propBody))}
			if idxBody, ok, err := r.TryReadContextValue(tagPropertyArrayIdx); err != nil {
				return nil, err
			} else if ok {
				idx := uint32(tlv.DecodeUnsigned(idxBody))
				ref.ArrayIndex = &idx
			}
			spec.Properties = append(spec.Properties, ref)
		}
		if err := r.ExpectClosing(tagRPMPropertyList); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// PropertyResult is one decoded (or errored) property value within a
// ReadPropertyMultiple ack.
type PropertyResult struct {
	Property   uint32
	ArrayIndex *uint32
	Value      []tlv.Value
	ErrorClass uint8
	ErrorCode  uint8
	IsError    bool
}

// ReadAccessResult is one object's results in a ReadPropertyMultiple ack.
type ReadAccessResult struct {
	ObjectID tlv.ObjectIdentifier
	Results  []PropertyResult
}

const (
	tagRPMResultList  = 1
	tagRPMValue       = 4
	tagRPMError       = 5
)

func EncodeReadPropertyMultipleAck(results []ReadAccessResult) []byte {
	var buf []byte
	for _, res := range results {
		oid := tlv.EncodeObjectIdentifier(res.ObjectID)
		buf = append(tlv.EncodeContextHeader(buf, tagRPMObjectID, len(oid)), oid...)
		buf = tlv.EncodeOpeningTag(buf, tagRPMResultList)
		for _, pr := range res.Results {
			prop := tlv.EncodeUnsigned(uint64(pr.Property))
			buf = append(tlv.EncodeContextHeader(buf, tagPropertyID, len(prop)), prop...)
			if pr.ArrayIndex != nil {
				idx := tlv.EncodeUnsigned(uint64(*pr.ArrayIndex))
				buf = append(tlv.EncodeContextHeader(buf, tagPropertyArrayIdx, len(idx)), idx...)
			}
			if pr.IsError {
				buf = tlv.EncodeOpeningTag(buf, tagRPMError)
				buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagEnumerated, Uint: uint64(pr.ErrorClass)})...)
				buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagEnumerated, Uint: uint64(pr.ErrorCode)})...)
				buf = tlv.EncodeClosingTag(buf, tagRPMError)
				continue
			}
			buf = tlv.EncodeOpeningTag(buf, tagRPMValue)
			for _, v := range pr.Value {
				buf = append(buf, tlv.EncodeApplication(v)...)
			}
			buf = tlv.EncodeClosingTag(buf, tagRPMValue)
		}
		buf = tlv.EncodeClosingTag(buf, tagRPMResultList)
	}
	return buf
}

func DecodeReadPropertyMultipleAck(data []byte) ([]ReadAccessResult, error) {
	r := tlv.NewReader(data)
	var out []ReadAccessResult
	for r.Remaining() {
		oidBody, err := r.ReadContextValue(tagRPMObjectID)
		if err != nil {
			return nil, err
		}
		oid, err := tlv.DecodeObjectIdentifier(oidBody)
		if err != nil {
			return nil, err
		}
		if err := r.ExpectOpening(tagRPMResultList); err != nil {
			return nil, err
		}
		res := ReadAccessResult{ObjectID: oid}
		for {
			h, err := r.PeekHeader()
			if err != nil {
				return nil, err
			}
			if h.IsClosing() && h.Number == tagRPMResultList {
				break
			}
			propBody, err := r.ReadContextValue(tagPropertyID)
			if err != nil {
				return nil, err
			}
			pr := PropertyResult{Property: uint32(tlv.DecodeUnsigned(propBody))}
			if idxBody, ok, err := r.TryReadContextValue(tagPropertyArrayIdx); err != nil {
				return nil, err
			} else if ok {
				idx := uint32(tlv.DecodeUnsigned(idxBody))
				pr.ArrayIndex = &idx
			}
			next, err := r.PeekHeader()
			if err != nil {
				return nil, err
			}
			if next.IsOpening() && next.Number == tagRPMError {
				if err := r.ExpectOpening(tagRPMError); err != nil {
					return nil, err
				}
				cls, err := r.ReadApplicationValue()
				if err != nil {
					return nil, err
				}
				code, err := r.ReadApplicationValue()
				if err != nil {
					return nil, err
				}
				pr.IsError = true
				pr.ErrorClass = uint8(cls.Uint)
				pr.ErrorCode = uint8(code.Uint)
				if err := r.ExpectClosing(tagRPMError); err != nil {
					return nil, err
				}
			} else {
				if err := r.ExpectOpening(tagRPMValue); err != nil {
					return nil, err
				}
				for {
					h, err := r.PeekHeader()
					if err != nil {
						return nil, err
					}
					if h.IsClosing() && h.Number == tagRPMValue {
						break
					}
					v, err := r.ReadApplicationValue()
					if err != nil {
						return nil, err
					}
					pr.Value = append(pr.Value, v)
				}
				if err := r.ExpectClosing(tagRPMValue); err != nil {
					return nil, err
				}
			}
			res.Results = append(res.Results, pr)
		}
		if err := r.ExpectClosing(tagRPMResultList); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// WhoIsRequest is the parameter sequence of a Who-Is request (Clause
// 16.10); both fields are optional (nil means "no range restriction").
type WhoIsRequest struct {
	DeviceInstanceLow  *uint32
	DeviceInstanceHigh *uint32
}

func EncodeWhoIs(w WhoIsRequest) []byte {
	if w.DeviceInstanceLow == nil || w.DeviceInstanceHigh == nil {
		return nil
	}
	var buf []byte
	lo := tlv.EncodeUnsigned(uint64(*w.DeviceInstanceLow))
	buf = append(tlv.EncodeContextHeader(buf, 0, len(lo)), lo...)
	hi := tlv.EncodeUnsigned(uint64(*w.DeviceInstanceHigh))
	buf = append(tlv.EncodeContextHeader(buf, 1, len(hi)), hi...)
	return buf
}

func DecodeWhoIs(data []byte) (WhoIsRequest, error) {
	if len(data) == 0 {
		return WhoIsRequest{}, nil
	}
	r := tlv.NewReader(data)
	loBody, err := r.ReadContextValue(0)
	if err != nil {
		return WhoIsRequest{}, err
	}
	hiBody, err := r.ReadContextValue(1)
	if err != nil {
		return WhoIsRequest{}, err
	}
	lo := uint32(tlv.DecodeUnsigned(loBody))
	hi := uint32(tlv.DecodeUnsigned(hiBody))
	return WhoIsRequest{DeviceInstanceLow: &lo, DeviceInstanceHigh: &hi}, nil
}

// IAmRequest is the parameter sequence of an I-Am request (Clause 16.10).
type IAmRequest struct {
	DeviceID           tlv.ObjectIdentifier
	MaxAPDULength      uint32
	Segmentation       uint32
	VendorID           uint32
}

func EncodeIAm(a IAmRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: a.DeviceID})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(a.MaxAPDULength)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagEnumerated, Uint: uint64(a.Segmentation)})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagUnsigned, Uint: uint64(a.VendorID)})...)
	return buf
}

func DecodeIAm(data []byte) (IAmRequest, error) {
	r := tlv.NewReader(data)
	oid, err := r.ReadApplicationValue()
	if err != nil {
		return IAmRequest{}, err
	}
	maxAPDU, err := r.ReadApplicationValue()
	if err != nil {
		return IAmRequest{}, err
	}
	seg, err := r.ReadApplicationValue()
	if err != nil {
		return IAmRequest{}, err
	}
	vendor, err := r.ReadApplicationValue()
	if err != nil {
		return IAmRequest{}, err
	}
	return IAmRequest{
		DeviceID:      oid.ObjectID,
		MaxAPDULength: uint32(maxAPDU.Uint),
		Segmentation:  uint32(seg.Uint),
		VendorID:      uint32(vendor.Uint),
	}, nil
}

// WhoHasRequest is the parameter sequence of a Who-Has request (Clause
// 16.9). Exactly one of ObjectID / ObjectName is populated, matching the
// choice the original requester made.
type WhoHasRequest struct {
	DeviceInstanceLow  *uint32
	DeviceInstanceHigh *uint32
	ObjectID           *tlv.ObjectIdentifier
	ObjectName         string
}

const (
	tagWhoHasLow      = 0
	tagWhoHasHigh     = 1
	tagWhoHasObjectID = 2
	tagWhoHasObjectName = 3
)

func EncodeWhoHas(w WhoHasRequest) []byte {
	var buf []byte
	if w.DeviceInstanceLow != nil && w.DeviceInstanceHigh != nil {
		lo := tlv.EncodeUnsigned(uint64(*w.DeviceInstanceLow))
		buf = append(tlv.EncodeContextHeader(buf, tagWhoHasLow, len(lo)), lo...)
		hi := tlv.EncodeUnsigned(uint64(*w.DeviceInstanceHigh))
		buf = append(tlv.EncodeContextHeader(buf, tagWhoHasHigh, len(hi)), hi...)
	}
	if w.ObjectID != nil {
		oid := tlv.EncodeObjectIdentifier(*w.ObjectID)
		buf = append(tlv.EncodeContextHeader(buf, tagWhoHasObjectID, len(oid)), oid...)
	} else {
		name := tlv.EncodeCharacterString(w.ObjectName)
		buf = append(tlv.EncodeContextHeader(buf, tagWhoHasObjectName, len(name)), name...)
	}
	return buf
}

func DecodeWhoHas(data []byte) (WhoHasRequest, error) {
	r := tlv.NewReader(data)
	var w WhoHasRequest
	if loBody, ok, err := r.TryReadContextValue(tagWhoHasLow); err != nil {
		return WhoHasRequest{}, err
	} else if ok {
		hiBody, err := r.ReadContextValue(tagWhoHasHigh)
		if err != nil {
			return WhoHasRequest{}, err
		}
		lo := uint32(tlv.DecodeUnsigned(loBody))
		hi := uint32(tlv.DecodeUnsigned(hiBody))
		w.DeviceInstanceLow, w.DeviceInstanceHigh = &lo, &hi
	}
	if oidBody, ok, err := r.TryReadContextValue(tagWhoHasObjectID); err != nil {
		return WhoHasRequest{}, err
	} else if ok {
		oid, err := tlv.DecodeObjectIdentifier(oidBody)
		if err != nil {
			return WhoHasRequest{}, err
		}
		w.ObjectID = &oid
		return w, nil
	}
	nameBody, err := r.ReadContextValue(tagWhoHasObjectName)
	if err != nil {
		return WhoHasRequest{}, err
	}
	name, err := tlv.DecodeCharacterString(nameBody)
	if err != nil {
		return WhoHasRequest{}, err
	}
	w.ObjectName = name
	return w, nil
}

// IHaveRequest is the parameter sequence of an I-Have request.
type IHaveRequest struct {
	DeviceID   tlv.ObjectIdentifier
	ObjectID   tlv.ObjectIdentifier
	ObjectName string
}

func EncodeIHave(h IHaveRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: h.DeviceID})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagObjectID, ObjectID: h.ObjectID})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagCharacterString, Str: h.ObjectName})...)
	return buf
}

func DecodeIHave(data []byte) (IHaveRequest, error) {
	r := tlv.NewReader(data)
	dev, err := r.ReadApplicationValue()
	if err != nil {
		return IHaveRequest{}, err
	}
	obj, err := r.ReadApplicationValue()
	if err != nil {
		return IHaveRequest{}, err
	}
	name, err := r.ReadApplicationValue()
	if err != nil {
		return IHaveRequest{}, err
	}
	return IHaveRequest{DeviceID: dev.ObjectID, ObjectID: obj.ObjectID, ObjectName: name.Str}, nil
}

// SubscribeCOVRequest is the parameter sequence of a SubscribeCOV request
// (Clause 13.14).
type SubscribeCOVRequest struct {
	SubscriberProcessID uint32
	ObjectID            tlv.ObjectIdentifier
	IssueConfirmed      *bool
	Lifetime            *uint32
}

const (
	tagCOVSubscriber = 0
	tagCOVObjectID   = 1
	tagCOVConfirmed  = 2
	tagCOVLifetime   = 3
)

func EncodeSubscribeCOV(s SubscribeCOVRequest) []byte {
	var buf []byte
	proc := tlv.EncodeUnsigned(uint64(s.SubscriberProcessID))
	buf = append(tlv.EncodeContextHeader(buf, tagCOVSubscriber, len(proc)), proc...)
	oid := tlv.EncodeObjectIdentifier(s.ObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagCOVObjectID, len(oid)), oid...)
	if s.IssueConfirmed != nil {
		length := 0
		if *s.IssueConfirmed {
			length = 1
		}
		buf = tlv.EncodeContextHeader(buf, tagCOVConfirmed, length)
		if *s.IssueConfirmed {
			buf = append(buf, 1)
		}
		if s.Lifetime != nil {
			life := tlv.EncodeUnsigned(uint64(*s.Lifetime))
			buf = append(tlv.EncodeContextHeader(buf, tagCOVLifetime, len(life)), life...)
		}
	}
	return buf
}

func DecodeSubscribeCOV(data []byte) (SubscribeCOVRequest, error) {
	r := tlv.NewReader(data)
	procBody, err := r.ReadContextValue(tagCOVSubscriber)
	if err != nil {
		return SubscribeCOVRequest{}, err
	}
	oidBody, err := r.ReadContextValue(tagCOVObjectID)
	if err != nil {
		return SubscribeCOVRequest{}, err
	}
	oid, err := tlv.DecodeObjectIdentifier(oidBody)
	if err != nil {
		return SubscribeCOVRequest{}, err
	}
	s := SubscribeCOVRequest{SubscriberProcessID: uint32(tlv.DecodeUnsigned(procBody)), ObjectID: oid}
	if confBody, ok, err := r.TryReadContextValue(tagCOVConfirmed); err != nil {
		return SubscribeCOVRequest{}, err
	} else if ok {
		confirmed := len(confBody) == 1 && confBody[0] != 0
		s.IssueConfirmed = &confirmed
		if lifeBody, ok, err := r.TryReadContextValue(tagCOVLifetime); err != nil {
			return SubscribeCOVRequest{}, err
		} else if ok {
			life := uint32(tlv.DecodeUnsigned(lifeBody))
			s.Lifetime = &life
		}
	}
	return s, nil
}

// COVNotification is the parameter sequence shared by Confirmed- and
// Unconfirmed-COV-Notification (Clause 13.1).
type COVNotification struct {
	SubscriberProcessID uint32
	InitiatingDeviceID  tlv.ObjectIdentifier
	MonitoredObjectID   tlv.ObjectIdentifier
	TimeRemaining       uint32
	Values              []PropertyValue
}

// PropertyValue pairs a property identifier with its reported value list,
// used inside COV and event notifications.
type PropertyValue struct {
	Property   uint32
	ArrayIndex *uint32
	Value      []tlv.Value
}

const (
	tagCOVNSubscriber  = 0
	tagCOVNDevice      = 1
	tagCOVNObject      = 2
	tagCOVNTimeRemain  = 3
	tagCOVNValueList   = 4
)

func EncodeCOVNotification(n COVNotification) []byte {
	var buf []byte
	proc := tlv.EncodeUnsigned(uint64(n.SubscriberProcessID))
	buf = append(tlv.EncodeContextHeader(buf, tagCOVNSubscriber, len(proc)), proc...)
	dev := tlv.EncodeObjectIdentifier(n.InitiatingDeviceID)
	buf = append(tlv.EncodeContextHeader(buf, tagCOVNDevice, len(dev)), dev...)
	obj := tlv.EncodeObjectIdentifier(n.MonitoredObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagCOVNObject, len(obj)), obj...)
	tr := tlv.EncodeUnsigned(uint64(n.TimeRemaining))
	buf = append(tlv.EncodeContextHeader(buf, tagCOVNTimeRemain, len(tr)), tr...)
	buf = tlv.EncodeOpeningTag(buf, tagCOVNValueList)
	for _, pv := range n.Values {
		prop := tlv.EncodeUnsigned(uint64(pv.Property))
		buf = append(tlv.EncodeContextHeader(buf, 0, len(prop)), prop...)
		if pv.ArrayIndex != nil {
			idx := tlv.EncodeUnsigned(uint64(*pv.ArrayIndex))
			buf = append(tlv.EncodeContextHeader(buf, 1, len(idx)), idx...)
		}
		buf = tlv.EncodeOpeningTag(buf, 2)
		for _, v := range pv.Value {
			buf = append(buf, tlv.EncodeApplication(v)...)
		}
		buf = tlv.EncodeClosingTag(buf, 2)
	}
	buf = tlv.EncodeClosingTag(buf, tagCOVNValueList)
	return buf
}

func DecodeCOVNotification(data []byte) (COVNotification, error) {
	r := tlv.NewReader(data)
	procBody, err := r.ReadContextValue(tagCOVNSubscriber)
	if err != nil {
		return COVNotification{}, err
	}
	devBody, err := r.ReadContextValue(tagCOVNDevice)
	if err != nil {
		return COVNotification{}, err
	}
	dev, err := tlv.DecodeObjectIdentifier(devBody)
	if err != nil {
		return COVNotification{}, err
	}
	objBody, err := r.ReadContextValue(tagCOVNObject)
	if err != nil {
		return COVNotification{}, err
	}
	obj, err := tlv.DecodeObjectIdentifier(objBody)
	if err != nil {
		return COVNotification{}, err
	}
	trBody, err := r.ReadContextValue(tagCOVNTimeRemain)
	if err != nil {
		return COVNotification{}, err
	}
	n := COVNotification{
		SubscriberProcessID: uint32(tlv.DecodeUnsigned(procBody)),
		InitiatingDeviceID:  dev,
		MonitoredObjectID:   obj,
		TimeRemaining:       uint32(tlv.DecodeUnsigned(trBody)),
	}
	if err := r.ExpectOpening(tagCOVNValueList); err != nil {
		return COVNotification{}, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return COVNotification{}, err
		}
		if h.IsClosing() && h.Number == tagCOVNValueList {
			break
		}
		propBody, err := r.ReadContextValue(0)
		if err != nil {
			return COVNotification{}, err
		}
		pv := PropertyValue{Property: uint32(tlv.DecodeUnsigned(propBody))}
		if idxBody, ok, err := r.TryReadContextValue(1); err != nil {
			return COVNotification{}, err
		} else if ok {
			idx := uint32(tlv.DecodeUnsigned(idxBody))
			pv.ArrayIndex = &idx
		}
		if err := r.ExpectOpening(2); err != nil {
			return COVNotification{}, err
		}
		for {
			h, err := r.PeekHeader()
			if err != nil {
				return COVNotification{}, err
			}
			if h.IsClosing() && h.Number == 2 {
				break
			}
			v, err := r.ReadApplicationValue()
			if err != nil {
				return COVNotification{}, err
			}
			pv.Value = append(pv.Value, v)
		}
		if err := r.ExpectClosing(2); err != nil {
			return COVNotification{}, err
		}
		n.Values = append(n.Values, pv)
	}
	if err := r.ExpectClosing(tagCOVNValueList); err != nil {
		return COVNotification{}, err
	}
	return n, nil
}
