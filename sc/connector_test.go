package sc

import (
	"testing"
	"time"
)

func TestJitterStaysWithinBounds(t *testing.T) {
	d := 10 * time.Second
	for i := 0; i < 20; i++ {
		j := jitter(d)
		if j < 0 || j > d {
			t.Fatalf("jitter %v out of bounds for base %v", j, d)
		}
	}
}

func TestJitterZeroForZeroDelay(t *testing.T) {
	if jitter(0) != 0 {
		t.Fatalf("expected zero jitter for zero delay")
	}
}

func TestConnectorSendWithoutConnectionFails(t *testing.T) {
	c := NewConnector(ConnectorConfig{LocalVMAC: VMAC{1}}, nil, Callbacks{})
	if err := c.Send(nil, []byte("x")); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectorSendUsesActiveConnection(t *testing.T) {
	c := NewConnector(ConnectorConfig{LocalVMAC: VMAC{1}}, nil, Callbacks{})
	sender := &fakeSender{}
	conn := NewConn(sender, time.Second, time.Second)
	conn.BeginConnect()
	conn.CompleteConnect(VMAC{2}, [16]byte{})
	c.setConn(conn)

	if err := c.Send(nil, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if len(sender.written) != 1 {
		t.Fatalf("expected one frame written, got %d", len(sender.written))
	}
}
