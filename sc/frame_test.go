package sc

import "testing"

func TestFrameRoundTripMinimal(t *testing.T) {
	f := Frame{Function: FuncEncapsulatedNPDU, MessageID: 42, Payload: []byte{1, 2, 3}}
	encoded, err := Encode(f)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Function != FuncEncapsulatedNPDU || decoded.MessageID != 42 || string(decoded.Payload) != "\x01\x02\x03" {
		t.Fatalf("got %+v", decoded)
	}
}

func TestFrameRoundTripWithVMACsAndOptions(t *testing.T) {
	origin := VMAC{1, 0, 0, 0, 0, 1}
	dest := VMAC{1, 0, 0, 0, 0, 2}
	f := Frame{
		Function:   FuncEncapsulatedNPDU,
		MessageID:  7,
		OriginVMAC: &origin,
		DestVMAC:   &dest,
		Options:    []HeaderOption{{Type: 1, Data: []byte("x")}},
		Payload:    []byte{0xAA},
	}
	encoded, err := Encode(f)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if *decoded.OriginVMAC != origin || *decoded.DestVMAC != dest {
		t.Fatalf("got %+v", decoded)
	}
	if len(decoded.Options) != 1 || decoded.Options[0].Type != 1 {
		t.Fatalf("got options %+v", decoded.Options)
	}
	if len(decoded.Payload) != 1 || decoded.Payload[0] != 0xAA {
		t.Fatalf("got payload %+v", decoded.Payload)
	}
}

func TestFrameTruncatedRejected(t *testing.T) {
	if _, err := Decode([]byte{0x01, 0x02}); err != ErrTruncatedFrame {
		t.Fatalf("expected ErrTruncatedFrame, got %v", err)
	}
}

func TestFrameTooManyOptionsRejected(t *testing.T) {
	f := Frame{Function: FuncResult, MessageID: 1}
	for i := 0; i < MaxHeaderOptions+1; i++ {
		f.Options = append(f.Options, HeaderOption{Type: 1})
	}
	if _, err := Encode(f); err != ErrTooManyOptions {
		t.Fatalf("expected ErrTooManyOptions, got %v", err)
	}
}

func TestFrameMoreFollowsAndNakFlags(t *testing.T) {
	f := &Frame{Flags: FlagMoreFollows | FlagIsNak}
	if !f.MoreFollows() || !f.IsNak() {
		t.Fatalf("expected both flags set")
	}
}
