package tlv

import (
	"errors"
	"reflect"
	"testing"
)

func TestApplicationValueRoundTrip(t *testing.T) {
	cases := []Value{
		{Tag: TagNull, Null: true},
		{Tag: TagBoolean, Bool: true},
		{Tag: TagBoolean, Bool: false},
		{Tag: TagUnsigned, Uint: 4194303},
		{Tag: TagSigned, Int: -42},
		{Tag: TagReal, Real: 21.5},
		{Tag: TagDouble, Double: -100.25},
		{Tag: TagOctetString, Octet: []byte{0x01, 0x02, 0x03}},
		{Tag: TagCharacterString, Str: "Zone Temp"},
		{Tag: TagEnumerated, Uint: 8},
		{Tag: TagDate, Date: Date{YearOffset: 125, Month: 1, Day: 1, Weekday: 4}},
		{Tag: TagTime, Time: Time{Hour: 8, Minute: 30}},
		{Tag: TagObjectID, ObjectID: ObjectIdentifier{Type: 0, Instance: 1}},
	}
	for _, v := range cases {
		enc := EncodeApplication(v)
		got, n, err := DecodeApplication(enc)
		if err != nil {
			t.Fatalf("tag %d: %v", v.Tag, err)
		}
		if n != len(enc) {
			t.Fatalf("tag %d: consumed %d, want %d", v.Tag, n, len(enc))
		}
		if !reflect.DeepEqual(got, v) {
			t.Fatalf("tag %d: got %+v want %+v", v.Tag, got, v)
		}
	}
}

func TestReaderConstructedSequence(t *testing.T) {
	var buf []byte
	buf = EncodeOpeningTag(buf, 0)
	buf = EncodeContextHeader(buf, 0, len(EncodeObjectIdentifier(ObjectIdentifier{Type: 8, Instance: 1})))
	buf = append(buf, EncodeObjectIdentifier(ObjectIdentifier{Type: 8, Instance: 1})...)
	buf = EncodeContextHeader(buf, 1, len(EncodeUnsigned(85)))
	buf = append(buf, EncodeUnsigned(85)...)
	buf = EncodeClosingTag(buf, 0)

	r := NewReader(buf)
	if err := r.ExpectOpening(0); err != nil {
		t.Fatal(err)
	}
	oidBody, err := r.ReadContextValue(0)
	if err != nil {
		t.Fatal(err)
	}
	oid, err := DecodeObjectIdentifier(oidBody)
	if err != nil {
		t.Fatal(err)
	}
	if oid != (ObjectIdentifier{Type: 8, Instance: 1}) {
		t.Fatalf("got %+v", oid)
	}
	propBody, err := r.ReadContextValue(1)
	if err != nil {
		t.Fatal(err)
	}
	if DecodeUnsigned(propBody) != 85 {
		t.Fatalf("got %d", DecodeUnsigned(propBody))
	}
	if err := r.ExpectClosing(0); err != nil {
		t.Fatal(err)
	}
	if r.Remaining() {
		t.Fatal("expected no remaining bytes")
	}
}

func TestReaderNestingDepthExceeded(t *testing.T) {
	var buf []byte
	for i := 0; i < MaxNestingDepth+1; i++ {
		buf = EncodeOpeningTag(buf, uint32(i%15))
	}

	r := NewReader(buf)
	var lastErr error
	for i := 0; i < MaxNestingDepth+1; i++ {
		lastErr = r.ExpectOpening(uint32(i % 15))
		if lastErr != nil {
			break
		}
	}
	if !errors.Is(lastErr, ErrNestingTooDeep) {
		t.Fatalf("expected ErrNestingTooDeep, got %v", lastErr)
	}
}

func TestReaderListCountExceeded(t *testing.T) {
	var buf []byte
	for i := 0; i < MaxListCount+1; i++ {
		buf = EncodeContextHeader(buf, 0, 0)
	}

	r := NewReader(buf)
	var lastErr error
	for i := 0; i < MaxListCount+1; i++ {
		_, lastErr = r.ReadContextValue(0)
		if lastErr != nil {
			break
		}
	}
	if !errors.Is(lastErr, ErrCountExceeded) {
		t.Fatalf("expected ErrCountExceeded, got %v", lastErr)
	}
}

func TestReaderTryReadContextValueNoMatch(t *testing.T) {
	buf := EncodeContextHeader(nil, 2, 1)
	buf = append(buf, 0x01)

	r := NewReader(buf)
	_, ok, err := r.TryReadContextValue(1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no match")
	}
	body, ok, err := r.TryReadContextValue(2)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || len(body) != 1 || body[0] != 0x01 {
		t.Fatalf("got body=%v ok=%v", body, ok)
	}
}

func TestSkipValueConstructed(t *testing.T) {
	var buf []byte
	buf = EncodeOpeningTag(buf, 3)
	buf = EncodeContextHeader(buf, 0, 1)
	buf = append(buf, 0xFF)
	buf = EncodeOpeningTag(buf, 1)
	buf = EncodeContextHeader(buf, 0, 1)
	buf = append(buf, 0x02)
	buf = EncodeClosingTag(buf, 1)
	buf = EncodeClosingTag(buf, 3)

	r := NewReader(buf)
	if err := r.SkipValue(); err != nil {
		t.Fatal(err)
	}
	if r.Remaining() {
		t.Fatal("expected all bytes consumed")
	}
}
