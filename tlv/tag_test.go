package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		tagNum uint32
		class  Class
		length int
	}{
		{0, ClassApplication, 0},
		{4, ClassApplication, 4},
		{14, ClassContext, 4},
		{15, ClassApplication, 0},
		{255, ClassContext, 10},
		{3, ClassApplication, 5},
		{3, ClassApplication, 253},
		{3, ClassApplication, 254},
		{3, ClassApplication, 65535},
		{3, ClassApplication, 65536},
	}
	for _, c := range cases {
		buf := EncodeHeader(nil, c.tagNum, c.class, c.length)
		buf = append(buf, make([]byte, c.length)...)
		h, err := DecodeHeader(buf)
		if err != nil {
			t.Fatalf("tag %d class %d length %d: %v", c.tagNum, c.class, c.length, err)
		}
		if h.Number != c.tagNum || h.Class != c.class || h.Length != c.length {
			t.Fatalf("round trip mismatch: got %+v, want tag=%d class=%d length=%d", h, c.tagNum, c.class, c.length)
		}
	}
}

func TestOpeningClosingTagRoundTrip(t *testing.T) {
	buf := EncodeOpeningTag(nil, 2)
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !h.IsOpening() || h.Number != 2 {
		t.Fatalf("got %+v", h)
	}

	buf = EncodeClosingTag(nil, 2)
	h, err = DecodeHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !h.IsClosing() || h.Number != 2 {
		t.Fatalf("got %+v", h)
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	_, err := DecodeHeader(nil)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}

	buf := EncodeHeader(nil, 3, ClassApplication, 10)
	_, err = DecodeHeader(buf[:len(buf)-1])
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for short body, got %v", err)
	}
}

func TestDecodeHeaderLengthCapExceeded(t *testing.T) {
	buf := []byte{0x35, 255, 0x00, 0x11, 0x00, 0x00}
	_, err := DecodeHeader(buf)
	if !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestExtendedTagNumberRoundTrip(t *testing.T) {
	buf := EncodeContextHeader(nil, 20, 2)
	buf = append(buf, 0xAA, 0xBB)
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.Number != 20 || h.Class != ClassContext || h.Length != 2 {
		t.Fatalf("got %+v", h)
	}
	if !bytes.Equal(buf[h.HeaderLen:h.HeaderLen+h.Length], []byte{0xAA, 0xBB}) {
		t.Fatalf("body mismatch")
	}
}
