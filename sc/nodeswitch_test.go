package sc

import (
	"context"
	"testing"
	"time"
)

func TestValidateCandidateURIAcceptsWSAndWSS(t *testing.T) {
	if err := validateCandidateURI("ws://peer.example:47808/"); err != nil {
		t.Fatalf("expected ws:// accepted, got %v", err)
	}
	if err := validateCandidateURI("wss://peer.example:47809/"); err != nil {
		t.Fatalf("expected wss:// accepted, got %v", err)
	}
}

func TestValidateCandidateURIRejectsOtherSchemes(t *testing.T) {
	for _, raw := range []string{"http://peer.example/", "file:///etc/passwd", "ftp://peer.example/"} {
		if err := validateCandidateURI(raw); err != ErrUnsupportedScheme {
			t.Fatalf("expected ErrUnsupportedScheme for %q, got %v", raw, err)
		}
	}
}

func TestNodeSwitchDirectLookupMissing(t *testing.T) {
	ns := NewNodeSwitch(nil, nil, VMAC{1}, [16]byte{}, time.Second, time.Second, 8)
	if _, ok := ns.Direct(VMAC{9}); ok {
		t.Fatalf("expected no direct connection")
	}
}

func TestNodeSwitchResolveReturnsCachedDirectConnection(t *testing.T) {
	ns := NewNodeSwitch(nil, nil, VMAC{1}, [16]byte{}, time.Second, time.Second, 8)
	dest := VMAC{2}
	conn := NewConn(&fakeSender{}, time.Second, time.Second)
	conn.BeginConnect()
	conn.CompleteConnect(dest, [16]byte{})
	ns.direct[dest] = conn

	got, err := ns.Resolve(context.Background(), dest)
	if err != nil || got != conn {
		t.Fatalf("expected cached connection returned, got %v err=%v", got, err)
	}
}

func TestNodeSwitchOnAddressResolutionAckIgnoredWithoutPending(t *testing.T) {
	ns := NewNodeSwitch(nil, nil, VMAC{1}, [16]byte{}, time.Second, time.Second, 8)
	ns.OnAddressResolutionAck(VMAC{5}, []string{"ws://x"})
}

func TestNodeSwitchResolveFailsWithoutConnector(t *testing.T) {
	ns := NewNodeSwitch(nil, nil, VMAC{1}, [16]byte{}, time.Second, time.Second, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := ns.Resolve(ctx, VMAC{9}); err == nil {
		t.Fatalf("expected error resolving without a connector")
	}
}
