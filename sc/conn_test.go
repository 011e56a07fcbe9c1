package sc

import (
	"testing"
	"time"
)

type fakeSender struct {
	written [][]byte
	closed  bool
}

func (f *fakeSender) WriteMessage(data []byte) error {
	f.written = append(f.written, data)
	return nil
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func TestConnReentrantConnectRejected(t *testing.T) {
	c := NewConn(&fakeSender{}, time.Second, time.Second)
	if err := c.BeginConnect(); err != nil {
		t.Fatal(err)
	}
	if err := c.BeginConnect(); err != ErrAlreadyConnecting {
		t.Fatalf("expected ErrAlreadyConnecting, got %v", err)
	}
}

func TestConnCompleteConnectFiresCallback(t *testing.T) {
	c := NewConn(&fakeSender{}, time.Second, time.Second)
	fired := false
	c.SetCallbacks(Callbacks{OnConnected: func() { fired = true }})
	c.BeginConnect()
	c.CompleteConnect(VMAC{1}, [16]byte{2})
	if !fired || c.State() != StateConnected {
		t.Fatalf("expected connected with callback fired")
	}
}

func TestConnSendRequiresConnected(t *testing.T) {
	c := NewConn(&fakeSender{}, time.Second, time.Second)
	if err := c.Send(VMAC{1}, nil, []byte("x")); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnHeartbeatRequestAnswersWithAck(t *testing.T) {
	sender := &fakeSender{}
	c := NewConn(sender, time.Second, time.Second)
	c.BeginConnect()
	c.CompleteConnect(VMAC{1}, [16]byte{})
	if err := c.HandleFrame(&Frame{Function: FuncHeartbeatRequest, MessageID: 5}); err != nil {
		t.Fatal(err)
	}
	if len(sender.written) != 1 {
		t.Fatalf("expected one ack written, got %d", len(sender.written))
	}
	decoded, err := Decode(sender.written[0])
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Function != FuncHeartbeatAck {
		t.Fatalf("expected HeartbeatAck, got %v", decoded.Function)
	}
}

func TestConnCheckHeartbeatTimesOutConnection(t *testing.T) {
	sender := &fakeSender{}
	c := NewConn(sender, time.Millisecond, time.Millisecond)
	c.BeginConnect()
	var disconnectErr error
	c.SetCallbacks(Callbacks{OnDisconnected: func(err error) { disconnectErr = err }})
	c.CompleteConnect(VMAC{1}, [16]byte{})

	if err := c.CheckHeartbeat(time.Now().Add(10 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if err := c.CheckHeartbeat(time.Now().Add(30 * time.Millisecond)); err != ErrHeartbeatTimeout {
		t.Fatalf("expected ErrHeartbeatTimeout, got %v", err)
	}
	if disconnectErr != ErrHeartbeatTimeout {
		t.Fatalf("expected disconnect callback with timeout, got %v", disconnectErr)
	}
	if c.State() != StateFailed {
		t.Fatalf("expected failed state, got %v", c.State())
	}
}

func TestConnDisconnectRequestAcksAndCloses(t *testing.T) {
	sender := &fakeSender{}
	c := NewConn(sender, time.Second, time.Second)
	c.BeginConnect()
	c.CompleteConnect(VMAC{1}, [16]byte{})
	if err := c.HandleFrame(&Frame{Function: FuncDisconnectRequest, MessageID: 9}); err != nil {
		t.Fatal(err)
	}
	if !sender.closed {
		t.Fatalf("expected sender closed after disconnect")
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle after graceful disconnect, got %v", c.State())
	}
}

func TestConnOnMessageDispatchedForNonControlFrames(t *testing.T) {
	c := NewConn(&fakeSender{}, time.Second, time.Second)
	var got *Frame
	c.SetCallbacks(Callbacks{OnMessage: func(f *Frame) { got = f }})
	c.BeginConnect()
	c.CompleteConnect(VMAC{1}, [16]byte{})
	if err := c.HandleFrame(&Frame{Function: FuncEncapsulatedNPDU, Payload: []byte("hi")}); err != nil {
		t.Fatal(err)
	}
	if got == nil || string(got.Payload) != "hi" {
		t.Fatalf("expected message dispatched, got %+v", got)
	}
}
