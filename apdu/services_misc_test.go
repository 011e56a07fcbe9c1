package apdu

import (
	"testing"

	"github.com/edgeo/bacnetstack/tlv"
)

func TestWritePropertyMultipleRoundTrip(t *testing.T) {
	idx := uint32(1)
	pri := uint8(8)
	specs := []WriteAccessSpec{{
		ObjectID: tlv.ObjectIdentifier{Type: 0, Instance: 1},
		Properties: []WritePropertyValue{
			{Property: 85, Value: []tlv.Value{{Tag: tlv.TagReal, Real: 72.5}}, Priority: &pri},
			{Property: 76, ArrayIndex: &idx, Value: []tlv.Value{{Tag: tlv.TagUnsigned, Uint: 3}}},
		},
	}}
	encoded := EncodeWritePropertyMultipleRequest(specs)
	decoded, err := DecodeWritePropertyMultipleRequest(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || len(decoded[0].Properties) != 2 {
		t.Fatalf("got %+v", decoded)
	}
	if *decoded[0].Properties[0].Priority != 8 {
		t.Fatalf("got %+v", decoded[0].Properties[0])
	}
	if *decoded[0].Properties[1].ArrayIndex != 1 {
		t.Fatalf("got %+v", decoded[0].Properties[1])
	}
}

func TestSubscribeCOVPropertyRoundTrip(t *testing.T) {
	confirmed := true
	lifetime := uint32(120)
	inc := float32(0.5)
	req := SubscribeCOVPropertyRequest{
		SubscriberProcessID: 7,
		ObjectID:            tlv.ObjectIdentifier{Type: 0, Instance: 1},
		IssueConfirmed:      &confirmed,
		Lifetime:            &lifetime,
		MonitoredProperty:   PropertyReference{Property: 85},
		COVIncrement:        &inc,
	}
	encoded := EncodeSubscribeCOVProperty(req)
	decoded, err := DecodeSubscribeCOVProperty(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.MonitoredProperty.Property != 85 || *decoded.COVIncrement != 0.5 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestDeviceCommunicationControlRoundTrip(t *testing.T) {
	dur := uint32(60)
	req := DeviceCommunicationControlRequest{TimeDuration: &dur, EnableDisable: 1, Password: "secret"}
	encoded := EncodeDeviceCommunicationControlRequest(req)
	decoded, err := DecodeDeviceCommunicationControlRequest(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Password != "secret" || decoded.EnableDisable != 1 || *decoded.TimeDuration != 60 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestCheckPasswordConstantTime(t *testing.T) {
	if !CheckPassword("abc", "abc") {
		t.Fatalf("expected match")
	}
	if CheckPassword("abd", "abc") {
		t.Fatalf("expected mismatch")
	}
	if !CheckPassword("anything", "") {
		t.Fatalf("expected no password configured to always pass")
	}
}

func TestReinitializeDeviceRoundTrip(t *testing.T) {
	req := ReinitializeDeviceRequest{State: 1, Password: "hunter2"}
	encoded := EncodeReinitializeDeviceRequest(req)
	decoded, err := DecodeReinitializeDeviceRequest(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.State != 1 || decoded.Password != "hunter2" {
		t.Fatalf("got %+v", decoded)
	}
}

func TestTimeSynchronizationRoundTrip(t *testing.T) {
	req := TimeSynchronizationRequest{
		Date: tlv.Date{YearOffset: 126, Month: 8, Day: 3, Weekday: 1},
		Time: tlv.Time{Hour: 12, Minute: 30},
	}
	encoded := EncodeTimeSynchronization(req)
	decoded, err := DecodeTimeSynchronization(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Date.YearOffset != 126 || decoded.Time.Hour != 12 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestReadRangeByPositionRoundTrip(t *testing.T) {
	req := ReadRangeRequest{
		ObjectID:        tlv.ObjectIdentifier{Type: 0, Instance: 1},
		Property:        131,
		RangeType:       ReadRangeByPosition,
		ByPositionIndex: 10,
		ByPositionCount: -5,
	}
	encoded := EncodeReadRangeRequest(req)
	decoded, err := DecodeReadRangeRequest(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.RangeType != ReadRangeByPosition || decoded.ByPositionIndex != 10 || decoded.ByPositionCount != -5 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestReadRangeByTimeRoundTrip(t *testing.T) {
	req := ReadRangeRequest{
		ObjectID:   tlv.ObjectIdentifier{Type: 0, Instance: 1},
		Property:   131,
		RangeType:  ReadRangeByTime,
		ByTimeDate: tlv.Date{YearOffset: 126, Month: 8, Day: 3},
		ByTimeTime: tlv.Time{Hour: 9},
		ByTimeCount: 20,
	}
	encoded := EncodeReadRangeRequest(req)
	decoded, err := DecodeReadRangeRequest(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.RangeType != ReadRangeByTime || decoded.ByTimeCount != 20 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestReadRangeAllHasNoSelector(t *testing.T) {
	req := ReadRangeRequest{ObjectID: tlv.ObjectIdentifier{Type: 0, Instance: 1}, Property: 131}
	encoded := EncodeReadRangeRequest(req)
	decoded, err := DecodeReadRangeRequest(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.RangeType != ReadRangeAll {
		t.Fatalf("got %+v", decoded)
	}
}
