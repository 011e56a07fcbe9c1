package apdu

import (
	"github.com/edgeo/bacnetstack/tlv"
)

// EventNotification is the parameter sequence shared by Confirmed- and
// Unconfirmed-Event-Notification (Clause 13.1.1). NotificationClass and
// EventValues describe the algorithm-specific event parameters; this
// codec carries them as raw application values rather than decoding
// every one of the Clause 13.3 per-algorithm choices, since the caller
// already knows which algorithm produced the transition.
type EventNotification struct {
	ProcessID          uint32
	InitiatingDeviceID tlv.ObjectIdentifier
	EventObjectID      tlv.ObjectIdentifier
	TimeStamp          tlv.Time
	NotificationClass  uint32
	Priority           uint8
	EventType          uint32
	MessageText        string
	NotifyType         uint32 // 0 = alarm, 1 = event, 2 = ackNotification
	FromState          uint32
	ToState             uint32
	EventValues        []tlv.Value
}

const (
	tagENProcess     = 0
	tagENDevice      = 1
	tagENObject      = 2
	tagENTimeStamp   = 3
	tagENNotifClass  = 4
	tagENPriority    = 5
	tagENEventType   = 6
	tagENMessageText = 7
	tagENNotifyType  = 8
	tagENFromState   = 9
	tagENToState     = 10
	tagENEventValues = 11
)

func EncodeEventNotification(n EventNotification) []byte {
	var buf []byte
	proc := tlv.EncodeUnsigned(uint64(n.ProcessID))
	buf = append(tlv.EncodeContextHeader(buf, tagENProcess, len(proc)), proc...)
	dev := tlv.EncodeObjectIdentifier(n.InitiatingDeviceID)
	buf = append(tlv.EncodeContextHeader(buf, tagENDevice, len(dev)), dev...)
	obj := tlv.EncodeObjectIdentifier(n.EventObjectID)
	buf = append(tlv.EncodeContextHeader(buf, tagENObject, len(obj)), obj...)
	ts := tlv.EncodeTime(n.TimeStamp)
	buf = append(tlv.EncodeContextHeader(buf, tagENTimeStamp, len(ts)), ts...)
	class := tlv.EncodeUnsigned(uint64(n.NotificationClass))
	buf = append(tlv.EncodeContextHeader(buf, tagENNotifClass, len(class)), class...)
	pri := tlv.EncodeUnsigned(uint64(n.Priority))
	buf = append(tlv.EncodeContextHeader(buf, tagENPriority, len(pri)), pri...)
	et := tlv.EncodeUnsigned(uint64(n.EventType))
	buf = append(tlv.EncodeContextHeader(buf, tagENEventType, len(et)), et...)
	if n.MessageText != "" {
		txt := tlv.EncodeCharacterString(n.MessageText)
		buf = append(tlv.EncodeContextHeader(buf, tagENMessageText, len(txt)), txt...)
	}
	nt := tlv.EncodeUnsigned(uint64(n.NotifyType))
	buf = append(tlv.EncodeContextHeader(buf, tagENNotifyType, len(nt)), nt...)
	fs := tlv.EncodeUnsigned(uint64(n.FromState))
	buf = append(tlv.EncodeContextHeader(buf, tagENFromState, len(fs)), fs...)
	tst := tlv.EncodeUnsigned(uint64(n.ToState))
	buf = append(tlv.EncodeContextHeader(buf, tagENToState, len(tst)), tst...)
	buf = tlv.EncodeOpeningTag(buf, tagENEventValues)
	for _, v := range n.EventValues {
		buf = append(buf, tlv.EncodeApplication(v)...)
	}
	buf = tlv.EncodeClosingTag(buf, tagENEventValues)
	return buf
}

func DecodeEventNotification(data []byte) (EventNotification, error) {
	r := tlv.NewReader(data)
	var n EventNotification

	procBody, err := r.ReadContextValue(tagENProcess)
	if err != nil {
		return n, err
	}
	n.ProcessID = uint32(tlv.DecodeUnsigned(procBody))

	devBody, err := r.ReadContextValue(tagENDevice)
	if err != nil {
		return n, err
	}
	if n.InitiatingDeviceID, err = tlv.DecodeObjectIdentifier(devBody); err != nil {
		return n, err
	}

	objBody, err := r.ReadContextValue(tagENObject)
	if err != nil {
		return n, err
	}
	if n.EventObjectID, err = tlv.DecodeObjectIdentifier(objBody); err != nil {
		return n, err
	}

	tsBody, err := r.ReadContextValue(tagENTimeStamp)
	if err != nil {
		return n, err
	}
	if len(tsBody) != 4 {
		return n, ErrMalformedService
	}
	n.TimeStamp = tlv.Time{Hour: tsBody[0], Minute: tsBody[1], Second: tsBody[2], Hundredths: tsBody[3]}

	classBody, err := r.ReadContextValue(tagENNotifClass)
	if err != nil {
		return n, err
	}
	n.NotificationClass = uint32(tlv.DecodeUnsigned(classBody))

	priBody, err := r.ReadContextValue(tagENPriority)
	if err != nil {
		return n, err
	}
	n.Priority = uint8(tlv.DecodeUnsigned(priBody))

	etBody, err := r.ReadContextValue(tagENEventType)
	if err != nil {
		return n, err
	}
	n.EventType = uint32(tlv.DecodeUnsigned(etBody))

	if txtBody, ok, err := r.TryReadContextValue(tagENMessageText); err != nil {
		return n, err
	} else if ok {
		if n.MessageText, err = tlv.DecodeCharacterString(txtBody); err != nil {
			return n, err
		}
	}

	ntBody, err := r.ReadContextValue(tagENNotifyType)
	if err != nil {
		return n, err
	}
	n.NotifyType = uint32(tlv.DecodeUnsigned(ntBody))

	fsBody, err := r.ReadContextValue(tagENFromState)
	if err != nil {
		return n, err
	}
	n.FromState = uint32(tlv.DecodeUnsigned(fsBody))

	tstBody, err := r.ReadContextValue(tagENToState)
	if err != nil {
		return n, err
	}
	n.ToState = uint32(tlv.DecodeUnsigned(tstBody))

	if err := r.ExpectOpening(tagENEventValues); err != nil {
		return n, err
	}
	for {
		h, err := r.PeekHeader()
		if err != nil {
			return n, err
		}
		if h.IsClosing() && h.Number == tagENEventValues {
			break
		}
		v, err := r.ReadApplicationValue()
		if err != nil {
			return n, err
		}
		n.EventValues = append(n.EventValues, v)
	}
	if err := r.ExpectClosing(tagENEventValues); err != nil {
		return n, err
	}
	return n, nil
}
