package bip4

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	body := []byte{0x01, 0x02, 0x03}
	frame, err := Decode(Encode(FuncOriginalUnicastNPDU, body))
	if err != nil {
		t.Fatal(err)
	}
	if frame.Function != FuncOriginalUnicastNPDU || !bytes.Equal(frame.Body, body) {
		t.Fatalf("got %+v", frame)
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	buf := Encode(FuncOriginalUnicastNPDU, []byte{0x01})
	_, err := Decode(buf[:len(buf)-1])
	if !errors.Is(err, ErrInvalidBVLC) {
		t.Fatalf("expected ErrInvalidBVLC, got %v", err)
	}
}

func TestDecodeRejectsWrongType(t *testing.T) {
	buf := Encode(FuncOriginalUnicastNPDU, nil)
	buf[0] = 0x82
	_, err := Decode(buf)
	if !errors.Is(err, ErrInvalidBVLC) {
		t.Fatalf("expected ErrInvalidBVLC, got %v", err)
	}
}

func TestBDTRoundTrip(t *testing.T) {
	entries := []BDTEntry{
		{IP: [4]byte{192, 168, 1, 1}, Port: 47808, Mask: [4]byte{255, 255, 255, 0}},
		{IP: [4]byte{192, 168, 1, 2}, Port: 47808, Mask: [4]byte{255, 255, 255, 0}},
	}
	got, err := DecodeBDT(EncodeBDT(entries))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].IP != entries[1].IP {
		t.Fatalf("got %+v", got)
	}
}

func TestRegisterForeignDeviceRoundTrip(t *testing.T) {
	got, err := DecodeRegisterForeignDevice(EncodeRegisterForeignDevice(300))
	if err != nil {
		t.Fatal(err)
	}
	if got != 300 {
		t.Fatalf("got %d", got)
	}
}

func TestResultRoundTrip(t *testing.T) {
	got, err := DecodeResult(EncodeResult(ResultRegisterForeignDeviceNAK))
	if err != nil {
		t.Fatal(err)
	}
	if got != ResultRegisterForeignDeviceNAK {
		t.Fatalf("got %v", got)
	}
}
