package apdu

import (
	"bytes"
	"testing"

	"github.com/edgeo/bacnetstack/tlv"
)

func TestConfirmedRequestRoundTripUnsegmented(t *testing.T) {
	enc := EncodeConfirmedRequest(7, ServiceReadProperty, []byte{0xAA, 0xBB}, 0, 5, false, false, true, 0, 0)
	p, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != TypeConfirmedRequest || p.InvokeID != 7 || p.ConfirmedService != ServiceReadProperty {
		t.Fatalf("got %+v", p)
	}
	if p.Segmented {
		t.Fatal("expected unsegmented")
	}
	if !bytes.Equal(p.Data, []byte{0xAA, 0xBB}) {
		t.Fatalf("data mismatch: %v", p.Data)
	}
}

func TestConfirmedRequestRoundTripSegmented(t *testing.T) {
	enc := EncodeConfirmedRequest(9, ServiceReadPropertyMultiple, []byte{0x01}, 2, 5, true, true, true, 3, 4)
	p, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Segmented || !p.MoreFollows || p.SequenceNumber != 3 || p.ProposedWindowSize != 4 {
		t.Fatalf("got %+v", p)
	}
}

func TestUnconfirmedRequestRoundTrip(t *testing.T) {
	enc := EncodeUnconfirmedRequest(ServiceWhoIs, []byte{0x01, 0x02})
	p, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != TypeUnconfirmedRequest || p.UnconfirmedService != ServiceWhoIs {
		t.Fatalf("got %+v", p)
	}
}

func TestSimpleAckRoundTrip(t *testing.T) {
	enc := EncodeSimpleAck(3, ServiceWriteProperty)
	p, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != TypeSimpleAck || p.InvokeID != 3 || p.ConfirmedService != ServiceWriteProperty {
		t.Fatalf("got %+v", p)
	}
}

func TestRejectAbortRoundTrip(t *testing.T) {
	p, err := Decode(EncodeReject(4, 9))
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != TypeReject || p.InvokeID != 4 || p.Reason != 9 {
		t.Fatalf("got %+v", p)
	}

	p, err = Decode(EncodeAbort(5, 3, true))
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != TypeAbort || !p.Server || p.Reason != 3 {
		t.Fatalf("got %+v", p)
	}
}

func TestReadPropertyRequestRoundTrip(t *testing.T) {
	idx := uint32(2)
	req := ReadPropertyRequest{ObjectID: tlv.ObjectIdentifier{Type: 0, Instance: 1}, Property: 85, ArrayIndex: &idx}
	got, err := DecodeReadPropertyRequest(EncodeReadPropertyRequest(req))
	if err != nil {
		t.Fatal(err)
	}
	if got.ObjectID != req.ObjectID || got.Property != req.Property || *got.ArrayIndex != idx {
		t.Fatalf("got %+v", got)
	}
}

func TestReadPropertyAckRoundTrip(t *testing.T) {
	ack := ReadPropertyAck{
		ObjectID: tlv.ObjectIdentifier{Type: 0, Instance: 1},
		Property: 85,
		Value:    []tlv.Value{{Tag: tlv.TagReal, Real: 72.5}},
	}
	got, err := DecodeReadPropertyAck(EncodeReadPropertyAck(ack))
	if err != nil {
		t.Fatal(err)
	}
	if got.ObjectID != ack.ObjectID || len(got.Value) != 1 || got.Value[0].Real != 72.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestWritePropertyRequestRoundTrip(t *testing.T) {
	pr := uint8(8)
	w := WritePropertyRequest{
		ObjectID: tlv.ObjectIdentifier{Type: 0, Instance: 1},
		Property: 85,
		Value:    []tlv.Value{{Tag: tlv.TagReal, Real: 21.0}},
		Priority: &pr,
	}
	got, err := DecodeWritePropertyRequest(EncodeWritePropertyRequest(w))
	if err != nil {
		t.Fatal(err)
	}
	if got.ObjectID != w.ObjectID || *got.Priority != pr || got.Value[0].Real != 21.0 {
		t.Fatalf("got %+v", got)
	}
}

func TestReadPropertyMultipleRoundTrip(t *testing.T) {
	specs := []ReadAccessSpec{
		{ObjectID: tlv.ObjectIdentifier{Type: 0, Instance: 1}, Properties: []PropertyReference{{Property: 85}, {Property: 28}}},
	}
	got, err := DecodeReadPropertyMultipleRequest(EncodeReadPropertyMultipleRequest(specs))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got[0].Properties) != 2 || got[0].Properties[1].Property != 28 {
		t.Fatalf("got %+v", got)
	}
}

func TestReadPropertyMultipleAckRoundTripWithError(t *testing.T) {
	results := []ReadAccessResult{
		{
			ObjectID: tlv.ObjectIdentifier{Type: 0, Instance: 1},
			Results: []PropertyResult{
				{Property: 85, Value: []tlv.Value{{Tag: tlv.TagReal, Real: 1.0}}},
				{Property: 28, IsError: true, ErrorClass: 2, ErrorCode: 32},
			},
		},
	}
	got, err := DecodeReadPropertyMultipleAck(EncodeReadPropertyMultipleAck(results))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got[0].Results) != 2 {
		t.Fatalf("got %+v", got)
	}
	if !got[0].Results[1].IsError || got[0].Results[1].ErrorCode != 32 {
		t.Fatalf("got %+v", got[0].Results[1])
	}
}

func TestWhoIsIAmRoundTrip(t *testing.T) {
	lo, hi := uint32(0), uint32(100)
	w := WhoIsRequest{DeviceInstanceLow: &lo, DeviceInstanceHigh: &hi}
	got, err := DecodeWhoIs(EncodeWhoIs(w))
	if err != nil {
		t.Fatal(err)
	}
	if *got.DeviceInstanceLow != lo || *got.DeviceInstanceHigh != hi {
		t.Fatalf("got %+v", got)
	}

	a := IAmRequest{DeviceID: tlv.ObjectIdentifier{Type: 8, Instance: 1}, MaxAPDULength: 1476, Segmentation: 0, VendorID: 260}
	gotA, err := DecodeIAm(EncodeIAm(a))
	if err != nil {
		t.Fatal(err)
	}
	if gotA != a {
		t.Fatalf("got %+v want %+v", gotA, a)
	}
}

func TestWhoHasIHaveRoundTrip(t *testing.T) {
	oid := tlv.ObjectIdentifier{Type: 0, Instance: 5}
	w := WhoHasRequest{ObjectID: &oid}
	got, err := DecodeWhoHas(EncodeWhoHas(w))
	if err != nil {
		t.Fatal(err)
	}
	if got.ObjectID == nil || *got.ObjectID != oid {
		t.Fatalf("got %+v", got)
	}

	w2 := WhoHasRequest{ObjectName: "AHU-1"}
	got2, err := DecodeWhoHas(EncodeWhoHas(w2))
	if err != nil {
		t.Fatal(err)
	}
	if got2.ObjectName != "AHU-1" {
		t.Fatalf("got %+v", got2)
	}

	h := IHaveRequest{
		DeviceID:   tlv.ObjectIdentifier{Type: 8, Instance: 1},
		ObjectID:   oid,
		ObjectName: "AHU-1",
	}
	gotH, err := DecodeIHave(EncodeIHave(h))
	if err != nil {
		t.Fatal(err)
	}
	if gotH != h {
		t.Fatalf("got %+v want %+v", gotH, h)
	}
}

func TestSubscribeCOVRoundTrip(t *testing.T) {
	confirmed := true
	life := uint32(300)
	s := SubscribeCOVRequest{
		SubscriberProcessID: 1,
		ObjectID:            tlv.ObjectIdentifier{Type: 0, Instance: 1},
		IssueConfirmed:      &confirmed,
		Lifetime:            &life,
	}
	got, err := DecodeSubscribeCOV(EncodeSubscribeCOV(s))
	if err != nil {
		t.Fatal(err)
	}
	if got.SubscriberProcessID != 1 || *got.IssueConfirmed != true || *got.Lifetime != 300 {
		t.Fatalf("got %+v", got)
	}
}

func TestCOVNotificationRoundTrip(t *testing.T) {
	n := COVNotification{
		SubscriberProcessID: 1,
		InitiatingDeviceID:  tlv.ObjectIdentifier{Type: 8, Instance: 1},
		MonitoredObjectID:   tlv.ObjectIdentifier{Type: 0, Instance: 1},
		TimeRemaining:       60,
		Values: []PropertyValue{
			{Property: 85, Value: []tlv.Value{{Tag: tlv.TagReal, Real: 72.5}}},
			{Property: 111, Value: []tlv.Value{{Tag: tlv.TagEnumerated, Uint: 0}}},
		},
	}
	got, err := DecodeCOVNotification(EncodeCOVNotification(n))
	if err != nil {
		t.Fatal(err)
	}
	if got.SubscriberProcessID != 1 || len(got.Values) != 2 || got.Values[0].Value[0].Real != 72.5 {
		t.Fatalf("got %+v", got)
	}
}
