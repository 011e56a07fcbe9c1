package tlv

import (
	"errors"
	"reflect"
	"testing"
)

func TestUnsignedRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 255, 256, 65535, 65536, 1 << 40, ^uint64(0)}
	for _, v := range values {
		enc := EncodeUnsigned(v)
		got := DecodeUnsigned(enc)
		if got != v {
			t.Fatalf("EncodeUnsigned/DecodeUnsigned(%d): got %d", v, got)
		}
	}
}

func TestSignedRoundTrip(t *testing.T) {
	values := []int64{0, -1, 127, -128, 128, -129, 32767, -32768, 1 << 30, -(1 << 30)}
	for _, v := range values {
		enc := EncodeSigned(v)
		got := DecodeSigned(enc)
		if got != v {
			t.Fatalf("EncodeSigned/DecodeSigned(%d): got %d (enc=%v)", v, got, enc)
		}
	}
}

func TestRealRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1.5, -273.15, 3.4e38} {
		got, err := DecodeReal(EncodeReal(v))
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Fatalf("Real round trip: got %v, want %v", got, v)
		}
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1.5, -273.15, 1.7e308} {
		got, err := DecodeDouble(EncodeDouble(v))
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Fatalf("Double round trip: got %v, want %v", got, v)
		}
	}
}

func TestCharacterStringRoundTrip(t *testing.T) {
	s := "AHU-1 Supply Air Temp"
	got, err := DecodeCharacterString(EncodeCharacterString(s))
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Fatalf("got %q want %q", got, s)
	}
}

func TestDecodeCharacterStringRejectsUnsupportedCharset(t *testing.T) {
	_, err := DecodeCharacterString([]byte{byte(CharsetUCS2), 0x00, 0x41})
	if !errors.Is(err, ErrInvalidCharset) {
		t.Fatalf("expected ErrInvalidCharset, got %v", err)
	}
}

func TestBitStringRoundTrip(t *testing.T) {
	bs := BitString{Bits: []bool{true, false, true, true, false, false, false, true, true}}
	got, err := DecodeBitString(EncodeBitString(bs))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, bs) {
		t.Fatalf("got %+v want %+v", got, bs)
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	d := Date{YearOffset: 125, Month: 6, Day: 15, Weekday: 7}
	gotD, err := DecodeDate(EncodeDate(d))
	if err != nil {
		t.Fatal(err)
	}
	if gotD != d {
		t.Fatalf("got %+v want %+v", gotD, d)
	}

	tm := Time{Hour: 23, Minute: 59, Second: 59, Hundredths: 99}
	gotT, err := DecodeTime(EncodeTime(tm))
	if err != nil {
		t.Fatal(err)
	}
	if gotT != tm {
		t.Fatalf("got %+v want %+v", gotT, tm)
	}
}

func TestObjectIdentifierRoundTrip(t *testing.T) {
	oid := ObjectIdentifier{Type: 8, Instance: 4194302}
	got, err := DecodeObjectIdentifier(EncodeObjectIdentifier(oid))
	if err != nil {
		t.Fatal(err)
	}
	if got != oid {
		t.Fatalf("got %+v want %+v", got, oid)
	}
}
