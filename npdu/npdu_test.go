package npdu

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTripNoSpecifiers(t *testing.T) {
	n := &NPDU{Control: ControlPriorityNormal, Payload: []byte{0x01, 0x02}}
	enc, err := Encode(n)
	if err != nil {
		t.Fatal(err)
	}
	got, offset, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got.Dest != nil || got.Src != nil {
		t.Fatalf("expected no specifiers, got %+v", got)
	}
	if !bytes.Equal(got.Payload, n.Payload) {
		t.Fatalf("payload mismatch: %v", got.Payload)
	}
	if offset != 2 {
		t.Fatalf("offset = %d, want 2", offset)
	}
}

func TestEncodeDecodeRoundTripWithDestAndSrc(t *testing.T) {
	n := &NPDU{
		Control:      ControlExpectingReply,
		Dest:         &Address{Net: 42, MAC: []byte{0x01, 0x02, 0x03}},
		DestHopCount: 255,
		Src:          &Address{Net: 7, MAC: []byte{0xAA}},
		Payload:      []byte{0xDE, 0xAD},
	}
	enc, err := Encode(n)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got.Dest == nil || got.Dest.Net != 42 || !bytes.Equal(got.Dest.MAC, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("dest mismatch: %+v", got.Dest)
	}
	if got.DestHopCount != 255 {
		t.Fatalf("hop count = %d", got.DestHopCount)
	}
	if got.Src == nil || got.Src.Net != 7 || !bytes.Equal(got.Src.MAC, []byte{0xAA}) {
		t.Fatalf("src mismatch: %+v", got.Src)
	}
	if !got.ExpectingReply() {
		t.Fatal("expected ExpectingReply true")
	}
}

func TestEncodeDecodeNetworkMessage(t *testing.T) {
	n := &NPDU{
		Control:     ControlNetworkLayerMessage,
		MessageType: WhoIsRouterToNetwork,
		Payload:     []byte{0x00, 0x2A},
	}
	enc, err := Encode(n)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsNetworkMessage() || got.MessageType != WhoIsRouterToNetwork {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	_, _, err := Decode([]byte{0x02, 0x00})
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeTruncatedDestSpecifier(t *testing.T) {
	_, _, err := Decode([]byte{Version, byte(ControlDestSpecifier), 0x00})
	if !errors.Is(err, ErrInvalidNPDU) {
		t.Fatalf("expected ErrInvalidNPDU, got %v", err)
	}
}

func TestNetworkNumberListRoundTrip(t *testing.T) {
	nets := []uint16{1, 2, 4000, 65000}
	enc, err := EncodeNetworkNumberList(nets)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeNetworkNumberList(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(nets) {
		t.Fatalf("got %v want %v", got, nets)
	}
	for i := range nets {
		if got[i] != nets[i] {
			t.Fatalf("got %v want %v", got, nets)
		}
	}
}

func TestNetworkNumberListTooLong(t *testing.T) {
	nets := make([]uint16, MaxNetworkListEntries+1)
	_, err := EncodeNetworkNumberList(nets)
	if !errors.Is(err, ErrNetworkListTooLong) {
		t.Fatalf("expected ErrNetworkListTooLong, got %v", err)
	}
}

func TestRejectMessageRoundTrip(t *testing.T) {
	enc := EncodeRejectMessageToNetwork(RejectBusy, 99)
	reason, network, err := DecodeRejectMessageToNetwork(enc)
	if err != nil {
		t.Fatal(err)
	}
	if reason != RejectBusy || network != 99 {
		t.Fatalf("got reason=%d network=%d", reason, network)
	}
}

func TestRoutingTableRoundTrip(t *testing.T) {
	entries := []RoutingTableEntry{
		{Network: 10, PortID: 1, PortInfo: []byte{0x01}},
		{Network: 20, PortID: 2, PortInfo: nil},
	}
	enc, err := EncodeInitializeRoutingTable(entries)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeInitializeRoutingTable(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Network != 10 || got[1].Network != 20 {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteCacheLearnLookupForget(t *testing.T) {
	c := NewRouteCache()
	if _, ok := c.Lookup(5); ok {
		t.Fatal("expected no route yet")
	}
	c.Learn(5, 1, []byte{0x01, 0x02})
	r, ok := c.Lookup(5)
	if !ok || r.PortID != 1 || !bytes.Equal(r.RouterMAC, []byte{0x01, 0x02}) {
		t.Fatalf("got %+v", r)
	}
	c.Forget(5)
	if _, ok := c.Lookup(5); ok {
		t.Fatal("expected route forgotten")
	}
}

func TestRouteCacheEnqueueDrain(t *testing.T) {
	c := NewRouteCache()
	c.Enqueue(9, Address{Net: 9}, []byte{0x01})
	c.Enqueue(9, Address{Net: 9}, []byte{0x02})
	drained := c.Drain(9)
	if len(drained) != 2 {
		t.Fatalf("got %d entries", len(drained))
	}
	if !bytes.Equal(drained[0].Payload(), []byte{0x01}) {
		t.Fatalf("got %v", drained[0].Payload())
	}
	if len(c.Drain(9)) != 0 {
		t.Fatal("expected queue empty after drain")
	}
}

func TestRouteCacheEnqueueBounded(t *testing.T) {
	c := NewRouteCache()
	for i := 0; i < maxPendingPerNetwork+10; i++ {
		c.Enqueue(1, Address{Net: 1}, []byte{byte(i)})
	}
	drained := c.Drain(1)
	if len(drained) != maxPendingPerNetwork {
		t.Fatalf("got %d entries, want %d", len(drained), maxPendingPerNetwork)
	}
}
