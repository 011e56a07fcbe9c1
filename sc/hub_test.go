package sc

import (
	"testing"
	"time"
)

func TestHubReserveRejectsDuplicateConfirmedVMAC(t *testing.T) {
	h := NewHub(nil, time.Second, time.Second, 10)
	vmac := VMAC{1}
	if err := h.reserve(vmac, [16]byte{1}); err != nil {
		t.Fatal(err)
	}
	h.confirm(vmac, NewConn(&fakeSender{}, time.Second, time.Second))
	if err := h.reserve(vmac, [16]byte{2}); err != ErrVMACInUse {
		t.Fatalf("expected ErrVMACInUse, got %v", err)
	}
}

func TestHubReserveEvictsExpiredPendingReservation(t *testing.T) {
	h := NewHub(nil, time.Second, time.Second, 10)
	vmac := VMAC{1}
	h.reserve(vmac, [16]byte{1})
	h.byVMAC[vmac].reservedAt = time.Now().Add(-pendingTTL * 2)
	if err := h.reserve(vmac, [16]byte{2}); err != nil {
		t.Fatalf("expected eviction to allow reservation, got %v", err)
	}
}

func TestHubReserveRejectsAtCapacity(t *testing.T) {
	h := NewHub(nil, time.Second, time.Second, 1)
	h.reserve(VMAC{1}, [16]byte{1})
	if err := h.reserve(VMAC{2}, [16]byte{2}); err != ErrHubAtCapacity {
		t.Fatalf("expected ErrHubAtCapacity, got %v", err)
	}
}

func TestHubRouteBroadcastsExceptOrigin(t *testing.T) {
	h := NewHub(nil, time.Second, time.Second, 10)
	vmacA, vmacB, vmacC := VMAC{1}, VMAC{2}, VMAC{3}
	senderB, senderC := &fakeSender{}, &fakeSender{}

	h.reserve(vmacA, [16]byte{1})
	h.confirm(vmacA, NewConn(&fakeSender{}, time.Second, time.Second))
	h.reserve(vmacB, [16]byte{2})
	h.confirm(vmacB, NewConn(senderB, time.Second, time.Second))
	h.reserve(vmacC, [16]byte{3})
	h.confirm(vmacC, NewConn(senderC, time.Second, time.Second))

	h.route(vmacA, &Frame{Function: FuncEncapsulatedNPDU, MessageID: 1, Payload: []byte("hi")})

	if len(senderB.written) != 1 || len(senderC.written) != 1 {
		t.Fatalf("expected broadcast to both other nodes, got B=%d C=%d", len(senderB.written), len(senderC.written))
	}
}

func TestHubRouteUnicastToDestVMAC(t *testing.T) {
	h := NewHub(nil, time.Second, time.Second, 10)
	vmacA, vmacB, vmacC := VMAC{1}, VMAC{2}, VMAC{3}
	senderB, senderC := &fakeSender{}, &fakeSender{}

	h.reserve(vmacA, [16]byte{1})
	h.confirm(vmacA, NewConn(&fakeSender{}, time.Second, time.Second))
	h.reserve(vmacB, [16]byte{2})
	h.confirm(vmacB, NewConn(senderB, time.Second, time.Second))
	h.reserve(vmacC, [16]byte{3})
	h.confirm(vmacC, NewConn(senderC, time.Second, time.Second))

	dest := vmacB
	h.route(vmacA, &Frame{Function: FuncEncapsulatedNPDU, MessageID: 1, DestVMAC: &dest, Payload: []byte("hi")})

	if len(senderB.written) != 1 {
		t.Fatalf("expected unicast delivery to B, got %d", len(senderB.written))
	}
	if len(senderC.written) != 0 {
		t.Fatalf("expected no delivery to C, got %d", len(senderC.written))
	}
}

func TestHubRouteRejectsOriginMismatch(t *testing.T) {
	h := NewHub(nil, time.Second, time.Second, 10)
	vmacA, vmacB := VMAC{1}, VMAC{2}
	senderA := &fakeSender{}

	h.reserve(vmacA, [16]byte{1})
	h.confirm(vmacA, NewConn(senderA, time.Second, time.Second))
	h.reserve(vmacB, [16]byte{2})
	h.confirm(vmacB, NewConn(&fakeSender{}, time.Second, time.Second))

	claimed := vmacB
	h.route(vmacA, &Frame{Function: FuncEncapsulatedNPDU, MessageID: 9, OriginVMAC: &claimed})

	if len(senderA.written) != 1 {
		t.Fatalf("expected a NAK result sent back to the real origin, got %d", len(senderA.written))
	}
	decoded, err := Decode(senderA.written[0])
	if err != nil || decoded.Function != FuncResult || !decoded.IsNak() {
		t.Fatalf("expected NAK result frame, got %+v err=%v", decoded, err)
	}
}

func TestHubRemoveClearsBothIndexes(t *testing.T) {
	h := NewHub(nil, time.Second, time.Second, 10)
	vmac := VMAC{1}
	h.reserve(vmac, [16]byte{9})
	h.confirm(vmac, NewConn(&fakeSender{}, time.Second, time.Second))
	h.remove(vmac)
	if h.Connections() != 0 {
		t.Fatalf("expected zero connections after remove")
	}
	if _, ok := h.byUUID[[16]byte{9}]; ok {
		t.Fatalf("expected uuid index cleared")
	}
}
