package apdu

import (
	"testing"

	"github.com/edgeo/bacnetstack/tlv"
)

func TestEventNotificationRoundTrip(t *testing.T) {
	n := EventNotification{
		ProcessID:          1,
		InitiatingDeviceID: tlv.ObjectIdentifier{Type: 8, Instance: 100},
		EventObjectID:      tlv.ObjectIdentifier{Type: 0, Instance: 1},
		TimeStamp:          tlv.Time{Hour: 10, Minute: 15},
		NotificationClass:  7,
		Priority:           100,
		EventType:          0,
		MessageText:        "high limit exceeded",
		NotifyType:         0,
		FromState:          0,
		ToState:            3,
		EventValues:        []tlv.Value{{Tag: tlv.TagReal, Real: 95.0}},
	}
	encoded := EncodeEventNotification(n)
	decoded, err := DecodeEventNotification(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.MessageText != n.MessageText || decoded.ToState != 3 || decoded.EventValues[0].Real != 95.0 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestEventNotificationRoundTripNoMessageText(t *testing.T) {
	n := EventNotification{
		ProcessID:          1,
		InitiatingDeviceID: tlv.ObjectIdentifier{Type: 8, Instance: 100},
		EventObjectID:      tlv.ObjectIdentifier{Type: 0, Instance: 1},
		TimeStamp:          tlv.Time{Hour: 10},
		NotificationClass:  7,
		Priority:           100,
		EventType:          1,
		NotifyType:         1,
		FromState:          3,
		ToState:            0,
	}
	encoded := EncodeEventNotification(n)
	decoded, err := DecodeEventNotification(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.MessageText != "" || decoded.FromState != 3 {
		t.Fatalf("got %+v", decoded)
	}
}
