package apdu

import (
	"crypto/subtle"

	"github.com/edgeo/bacnetstack/tlv"
)

// WriteAccessSpec is one object's list of property writes in a
// WritePropertyMultiple request (Clause 15.10).
type WriteAccessSpec struct {
	ObjectID   tlv.ObjectIdentifier
	Properties []WritePropertyValue
}

// WritePropertyValue is one property write within a WriteAccessSpec.
type WritePropertyValue struct {
	Property   uint32
	ArrayIndex *uint32
	Value      []tlv.Value
	Priority   *uint8
}

const (
	tagWPMObjectID = 0
	tagWPMValueList = 1
)

func EncodeWritePropertyMultipleRequest(specs []WriteAccessSpec) []byte {
	var buf []byte
	for _, s := range specs {
		oid := tlv.EncodeObjectIdentifier(s.ObjectID)
		buf = append(tlv.EncodeContextHeader(buf, tagWPMObjectID, len(oid)), oid...)
		buf = tlv.EncodeOpeningTag(buf, tagWPMValueList)
		for _, pv := range s.Properties {
			prop := tlv.EncodeUnsigned(uint64(pv.Property))
			buf = append(tlv.EncodeContextHeader(buf, tagPropertyID, len(prop)), prop...)
			if pv.ArrayIndex != nil {
				idx := tlv.EncodeUnsigned(uint64(*pv.ArrayIndex))
				buf = append(tlv.EncodeContextHeader(buf, tagPropertyArrayIdx, len(idx)), idx...)
			}
			buf = tlv.EncodeOpeningTag(buf, tagPropertyValue)
			for _, v := range pv.Value {
				buf = append(buf, tlv.EncodeApplication(v)...)
			}
			buf = tlv.EncodeClosingTag(buf, tagPropertyValue)
			if pv.Priority != nil {
				pr := tlv.EncodeUnsigned(uint64(*pv.Priority))
				buf = append(tlv.EncodeContextHeader(buf, tagPriority, len(pr)), pr...)
			}
		}
		buf = tlv.EncodeClosingTag(buf, tagWPMValueList)
	}
	return buf
}

func DecodeWritePropertyMultipleRequest(data []byte) ([]WriteAccessSpec, error) {
	r := tlv.NewReader(data)
	var specs []WriteAccessSpec
	for r.Remaining() {
		oidBody, err := r.ReadContextValue(tagWPMObjectID)
		if err != nil {
			return nil, err
		}
		oid, err := tlv.DecodeObjectIdentifier(oidBody)
		if err != nil {
			return nil, err
		}
		if err := r.ExpectOpening(tagWPMValueList); err != nil {
			return nil, err
		}
		spec := WriteAccessSpec{ObjectID: oid}
		for {
			h, err := r.PeekHeader()
			if err != nil {
				return nil, err
			}
			if h.IsClosing() && h.Number == tagWPMValueList {
				break
			}
			propBody, err := r.ReadContextValue(tagPropertyID)
			if err != nil {
				return nil, err
			}
			pv := WritePropertyValue{Property: uint32(tlv.DecodeUnsigned(propBody))}
			if idxBody, ok, err := r.TryReadContextValue(tagPropertyArrayIdx); err != nil {
				return nil, err
			} else if ok {
				idx := uint32(tlv.DecodeUnsigned(idxBody))
				pv.ArrayIndex = &idx
			}
			if err := r.ExpectOpening(tagPropertyValue); err != nil {
				return nil, err
			}
			for {
				h, err := r.PeekHeader()
				if err != nil {
					return nil, err
				}
				if h.IsClosing() && h.Number == tagPropertyValue {
					break
				}
				v, err := r.ReadApplicationValue()
				if err != nil {
					return nil, err
				}
				pv.Value = append(pv.Value, v)
			}
			if err := r.ExpectClosing(tagPropertyValue); err != nil {
				return nil, err
			}
			if prBody, ok, err := r.TryReadContextValue(tagPriority); err != nil {
				return nil, err
			} else if ok {
				pr := uint8(tlv.DecodeUnsigned(prBody))
				pv.Priority = &pr
			}
			spec.Properties = append(spec.Properties, pv)
		}
		if err := r.ExpectClosing(tagWPMValueList); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// SubscribeCOVPropertyRequest is the parameter sequence of a
// SubscribeCOVProperty request (Clause 13.15): like SubscribeCOV but
// scoped to one property, with an optional caller-supplied increment.
type SubscribeCOVPropertyRequest struct {
	SubscriberProcessID uint32
	ObjectID            tlv.ObjectIdentifier
	IssueConfirmed      *bool
	Lifetime            *uint32
	MonitoredProperty   PropertyReference
	COVIncrement        *float32
}

const (
	tagSCPSubscriber = 0
	tagSCPObjectID   = 1
	tagSCPConfirmed  = 2
	tagSCPLifetime   = 3
	tagSCPProperty   = 4
	tagSCPIncrement  = 5
)

func EncodeSubscribeCOVProperty(s SubscribeCOVPropertyRequest) []byte {
	var buf []byte
	proc := tlv.EncodeUnsigned(uint64(s.SubscriberProcessID))
	buf = append(tlv.EncodeContextHeader(buf, tagSCPSubscriber, len(proc)), proc...)
	oid := tlv.EncodeObjectIdentifier(s.ObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagSCPObjectID, len(oid)), oid...)
	if s.IssueConfirmed != nil {
		length := 0
		if *s.IssueConfirmed {
			length = 1
		}
		buf = tlv.EncodeContextHeader(buf, tagSCPConfirmed, length)
		if *s.IssueConfirmed {
			buf = append(buf, 1)
		}
	}
	if s.Lifetime != nil {
		life := tlv.EncodeUnsigned(uint64(*s.Lifetime))
		buf = append(tlv.EncodeContextHeader(buf, tagSCPLifetime, len(life)), life...)
	}
	buf = tlv.EncodeOpeningTag(buf, tagSCPProperty)
	prop := tlv.EncodeUnsigned(uint64(s.MonitoredProperty.Property))
	buf = append(tlv.EncodeContextHeader(buf, tagPropertyID, len(prop)), prop...)
	if s.MonitoredProperty.ArrayIndex != nil {
		idx := tlv.EncodeUnsigned(uint64(*s.MonitoredProperty.ArrayIndex))
		buf = append(tlv.EncodeContextHeader(buf, tagPropertyArrayIdx, len(idx)), idx...)
	}
	buf = tlv.EncodeClosingTag(buf, tagSCPProperty)
	if s.COVIncrement != nil {
		inc := tlv.EncodeReal(*s.COVIncrement)
		buf = append(tlv.EncodeContextHeader(buf, tagSCPIncrement, len(inc)), inc...)
	}
	return buf
}

func DecodeSubscribeCOVProperty(data []byte) (SubscribeCOVPropertyRequest, error) {
	r := tlv.NewReader(data)
	procBody, err := r.ReadContextValue(tagSCPSubscriber)
	if err != nil {
		return SubscribeCOVPropertyRequest{}, err
	}
	oidBody, err := r.ReadContextValue(tagSCPObjectID)
	if err != nil {
		return SubscribeCOVPropertyRequest{}, err
	}
	oid, err := tlv.DecodeObjectIdentifier(oidBody)
	if err != nil {
		return SubscribeCOVPropertyRequest{}, err
	}
	s := SubscribeCOVPropertyRequest{SubscriberProcessID: uint32(tlv.DecodeUnsigned(procBody)), ObjectID: oid}
	if confBody, ok, err := r.TryReadContextValue(tagSCPConfirmed); err != nil {
		return SubscribeCOVPropertyRequest{}, err
	} else if ok {
		confirmed := len(confBody) == 1 && confBody[0] != 0
		s.IssueConfirmed = &confirmed
	}
	if lifeBody, ok, err := r.TryReadContextValue(tagSCPLifetime); err != nil {
		return SubscribeCOVPropertyRequest{}, err
	} else if ok {
		life := uint32(tlv.DecodeUnsigned(lifeBody))
		s.Lifetime = &life
	}
	if err := r.ExpectOpening(tagSCPProperty); err != nil {
		return SubscribeCOVPropertyRequest{}, err
	}
	propBody, err := r.ReadContextValue(tagPropertyID)
	if err != nil {
		return SubscribeCOVPropertyRequest{}, err
	}
	s.MonitoredProperty.Property = uint32(tlv.DecodeUnsigned(propBody))
	if idxBody, ok, err := r.TryReadContextValue(tagPropertyArrayIdx); err != nil {
		return SubscribeCOVPropertyRequest{}, err
	} else if ok {
		idx := uint32(tlv.DecodeUnsigned(idxBody))
		s.MonitoredProperty.ArrayIndex = &idx
	}
	if err := r.ExpectClosing(tagSCPProperty); err != nil {
		return SubscribeCOVPropertyRequest{}, err
	}
	if incBody, ok, err := r.TryReadContextValue(tagSCPIncrement); err != nil {
		return SubscribeCOVPropertyRequest{}, err
	} else if ok {
		inc, err := tlv.DecodeReal(incBody)
		if err != nil {
			return SubscribeCOVPropertyRequest{}, err
		}
		s.COVIncrement = &inc
	}
	return s, nil
}

// DeviceCommunicationControlRequest is the parameter sequence of a
// DeviceCommunicationControl request (Clause 16.1). Password comparison
// against a device's configured secret must run in constant time so a
// network observer timing responses cannot learn it byte by byte.
type DeviceCommunicationControlRequest struct {
	TimeDuration *uint32
	EnableDisable uint32 // 0 enable, 1 disable, 2 disableInitiation
	Password     string
}

const (
	tagDCCDuration = 0
	tagDCCEnable   = 1
	tagDCCPassword = 2
)

func EncodeDeviceCommunicationControlRequest(d DeviceCommunicationControlRequest) []byte {
	var buf []byte
	if d.TimeDuration != nil {
		dur := tlv.EncodeUnsigned(uint64(*d.TimeDuration))
		buf = append(tlv.EncodeContextHeader(buf, tagDCCDuration, len(dur)), dur...)
	}
	en := tlv.EncodeUnsigned(uint64(d.EnableDisable))
	buf = append(tlv.EncodeContextHeader(buf, tagDCCEnable, len(en)), en...)
	if d.Password != "" {
		pw := tlv.EncodeCharacterString(d.Password)
		buf = append(tlv.EncodeContextHeader(buf, tagDCCPassword, len(pw)), pw...)
	}
	return buf
}

func DecodeDeviceCommunicationControlRequest(data []byte) (DeviceCommunicationControlRequest, error) {
	r := tlv.NewReader(data)
	var d DeviceCommunicationControlRequest
	if durBody, ok, err := r.TryReadContextValue(tagDCCDuration); err != nil {
		return d, err
	} else if ok {
		dur := uint32(tlv.DecodeUnsigned(durBody))
		d.TimeDuration = &dur
	}
	enBody, err := r.ReadContextValue(tagDCCEnable)
	if err != nil {
		return d, err
	}
	d.EnableDisable = uint32(tlv.DecodeUnsigned(enBody))
	if pwBody, ok, err := r.TryReadContextValue(tagDCCPassword); err != nil {
		return d, err
	} else if ok {
		pw, err := tlv.DecodeCharacterString(pwBody)
		if err != nil {
			return d, err
		}
		d.Password = pw
	}
	return d, nil
}

// CheckPassword compares a received password against the device's
// configured secret in constant time.
func CheckPassword(received, configured string) bool {
	if configured == "" {
		return true
	}
	if len(received) != len(configured) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(configured)) == 1
}

// ReinitializeDeviceRequest is the parameter sequence of a
// ReinitializeDevice request (Clause 16.4).
type ReinitializeDeviceRequest struct {
	State    uint32
	Password string
}

const (
	tagRDState    = 0
	tagRDPassword = 1
)

func EncodeReinitializeDeviceRequest(r ReinitializeDeviceRequest) []byte {
	var buf []byte
	st := tlv.EncodeUnsigned(uint64(r.State))
	buf = append(tlv.EncodeContextHeader(buf, tagRDState, len(st)), st...)
	if r.Password != "" {
		pw := tlv.EncodeCharacterString(r.Password)
		buf = append(tlv.EncodeContextHeader(buf, tagRDPassword, len(pw)), pw...)
	}
	return buf
}

func DecodeReinitializeDeviceRequest(data []byte) (ReinitializeDeviceRequest, error) {
	reader := tlv.NewReader(data)
	stBody, err := reader.ReadContextValue(tagRDState)
	if err != nil {
		return ReinitializeDeviceRequest{}, err
	}
	out := ReinitializeDeviceRequest{State: uint32(tlv.DecodeUnsigned(stBody))}
	if pwBody, ok, err := reader.TryReadContextValue(tagRDPassword); err != nil {
		return ReinitializeDeviceRequest{}, err
	} else if ok {
		pw, err := tlv.DecodeCharacterString(pwBody)
		if err != nil {
			return ReinitializeDeviceRequest{}, err
		}
		out.Password = pw
	}
	return out, nil
}

// TimeSynchronizationRequest is the parameter sequence of a
// TimeSynchronization / UTCTimeSynchronization request (Clause 16.7/16.8):
// an unconfirmed service carrying an application-tagged date and time.
type TimeSynchronizationRequest struct {
	Date tlv.Date
	Time tlv.Time
}

func EncodeTimeSynchronization(t TimeSynchronizationRequest) []byte {
	var buf []byte
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagDate, Date: t.Date})...)
	buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagTime, Time: t.Time})...)
	return buf
}

func DecodeTimeSynchronization(data []byte) (TimeSynchronizationRequest, error) {
	r := tlv.NewReader(data)
	d, err := r.ReadApplicationValue()
	if err != nil {
		return TimeSynchronizationRequest{}, err
	}
	t, err := r.ReadApplicationValue()
	if err != nil {
		return TimeSynchronizationRequest{}, err
	}
	return TimeSynchronizationRequest{Date: d.Date, Time: t.Time}, nil
}

// ReadRangeRequest is the parameter sequence of a ReadRange request
// (Clause 15.6), used to page through list/array properties such as a
// trend log's buffer. Exactly one of the range selectors is populated;
// a zero RangeType means "read the entire property".
type ReadRangeRequest struct {
	ObjectID   tlv.ObjectIdentifier
	Property   uint32
	ArrayIndex *uint32
	RangeType  ReadRangeType
	ByPositionIndex int32
	ByPositionCount int32
	ByTimeDate tlv.Date
	ByTimeTime tlv.Time
	ByTimeCount int32
}

// ReadRangeType selects which ReadRange range-selector choice is present.
type ReadRangeType uint8

const (
	ReadRangeAll ReadRangeType = iota
	ReadRangeByPosition
	ReadRangeByTime
)

const (
	tagRRObjectID   = 0
	tagRRPropertyID = 1
	tagRRArrayIdx   = 2
	tagRRByPosition = 3
	tagRRByTime     = 6
)

func EncodeReadRangeRequest(r ReadRangeRequest) []byte {
	var buf []byte
	oid := tlv.EncodeObjectIdentifier(r.ObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagRRObjectID, len(oid)), oid...)
	prop := tlv.EncodeUnsigned(uint64(r.Property))
	buf = append(tlv.EncodeContextHeader(buf, tagRRPropertyID, len(prop)), prop...)
	if r.ArrayIndex != nil {
		idx := tlv.EncodeUnsigned(uint64(*r.ArrayIndex))
		buf = append(tlv.EncodeContextHeader(buf, tagRRArrayIdx, len(idx)), idx...)
	}
	switch r.RangeType {
	case ReadRangeByPosition:
		buf = tlv.EncodeOpeningTag(buf, tagRRByPosition)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagSigned, Int: int64(r.ByPositionIndex)})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagSigned, Int: int64(r.ByPositionCount)})...)
		buf = tlv.EncodeClosingTag(buf, tagRRByPosition)
	case ReadRangeByTime:
		buf = tlv.EncodeOpeningTag(buf, tagRRByTime)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagDate, Date: r.ByTimeDate})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagTime, Time: r.ByTimeTime})...)
		buf = append(buf, tlv.EncodeApplication(tlv.Value{Tag: tlv.TagSigned, Int: int64(r.ByTimeCount)})...)
		buf = tlv.EncodeClosingTag(buf, tagRRByTime)
	}
	return buf
}

func DecodeReadRangeRequest(data []byte) (ReadRangeRequest, error) {
	r := tlv.NewReader(data)
	oidBody, err := r.ReadContextValue(tagRRObjectID)
	if err != nil {
		return ReadRangeRequest{}, err
	}
	oid, err := tlv.DecodeObjectIdentifier(oidBody)
	if err != nil {
		return ReadRangeRequest{}, err
	}
	propBody, err := r.ReadContextValue(tagRRPropertyID)
	if err != nil {
		return ReadRangeRequest{}, err
	}
	req := ReadRangeRequest{ObjectID: oid, Property: uint32(tlv.DecodeUnsigned(propBody))}
	if idxBody, ok, err := r.TryReadContextValue(tagRRArrayIdx); err != nil {
		return ReadRangeRequest{}, err
	} else if ok {
		idx := uint32(tlv.DecodeUnsigned(idxBody))
		req.ArrayIndex = &idx
	}
	if !r.Remaining() {
		return req, nil
	}
	h, err := r.PeekHeader()
	if err != nil {
		return ReadRangeRequest{}, err
	}
	switch {
	case h.IsOpening() && h.Number == tagRRByPosition:
		if err := r.ExpectOpening(tagRRByPosition); err != nil {
			return ReadRangeRequest{}, err
		}
		idx, err := r.ReadApplicationValue()
		if err != nil {
			return ReadRangeRequest{}, err
		}
		cnt, err := r.ReadApplicationValue()
		if err != nil {
			return ReadRangeRequest{}, err
		}
		if err := r.ExpectClosing(tagRRByPosition); err != nil {
			return ReadRangeRequest{}, err
		}
		req.RangeType = ReadRangeByPosition
		req.ByPositionIndex = int32(idx.Int)
		req.ByPositionCount = int32(cnt.Int)
	case h.IsOpening() && h.Number == tagRRByTime:
		if err := r.ExpectOpening(tagRRByTime); err != nil {
			return ReadRangeRequest{}, err
		}
		d, err := r.ReadApplicationValue()
		if err != nil {
			return ReadRangeRequest{}, err
		}
		t, err := r.ReadApplicationValue()
		if err != nil {
			return ReadRangeRequest{}, err
		}
		cnt, err := r.ReadApplicationValue()
		if err != nil {
			return ReadRangeRequest{}, err
		}
		if err := r.ExpectClosing(tagRRByTime); err != nil {
			return ReadRangeRequest{}, err
		}
		req.RangeType = ReadRangeByTime
		req.ByTimeDate = d.Date
		req.ByTimeTime = t.Time
		req.ByTimeCount = int32(cnt.Int)
	}
	return req, nil
}
