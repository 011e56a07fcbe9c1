// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sc

import (
	"errors"
	"sync"
	"time"
)

// State is a per-connection lifecycle state (spec §4.6 state diagram).
type State uint8

const (
	StateIdle State = iota
	StateAwaitConnect
	StateConnected
	StateDisconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitConnect:
		return "await_connect"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyConnecting = errors.New("sc: connect already in progress")
	ErrNotConnected      = errors.New("sc: connection not established")
	ErrHeartbeatTimeout  = errors.New("sc: heartbeat acknowledgement timed out")
)

// Sender abstracts the underlying WebSocket write path so Conn can be
// tested without a real socket.
type Sender interface {
	WriteMessage(data []byte) error
	Close() error
}

// Callbacks are invoked on lifecycle and message events. Any nil field is
// simply not called. On Close(), every field is cleared to break
// reference cycles back to whatever owns the connection (spec §4.6:
// "callbacks are cleared to break reference cycles").
type Callbacks struct {
	OnConnected    func()
	OnDisconnected func(error)
	OnMessage      func(*Frame)
}

// Conn is one BACnet/SC connection's state machine, independent of
// whether it plays the hub or node role.
type Conn struct {
	mu    sync.Mutex
	state State

	PeerVMAC VMAC
	PeerUUID [16]byte

	sender  Sender
	cb      Callbacks
	nextMsg uint16

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	lastActivity      time.Time
	awaitingHeartbeat bool
}

// NewConn creates an idle connection around sender with the given
// heartbeat interval/timeout (spec default 30s interval, half the idle
// limit for the timeout).
func NewConn(sender Sender, heartbeatInterval, heartbeatTimeout time.Duration) *Conn {
	return &Conn{
		state:             StateIdle,
		sender:            sender,
		heartbeatInterval: heartbeatInterval,
		heartbeatTimeout:  heartbeatTimeout,
		lastActivity:      time.Now(),
	}
}

// SetCallbacks installs the connection's event callbacks.
func (c *Conn) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeginConnect transitions IDLE -> AWAIT_CONNECT. Re-entrant calls from a
// non-IDLE state are rejected (spec: "connect() is re-entrant safe").
func (c *Conn) BeginConnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrAlreadyConnecting
	}
	c.state = StateAwaitConnect
	return nil
}

// CompleteConnect transitions AWAIT_CONNECT -> CONNECTED, recording the
// peer's VMAC/UUID and firing OnConnected.
func (c *Conn) CompleteConnect(peerVMAC VMAC, peerUUID [16]byte) {
	c.mu.Lock()
	c.state = StateConnected
	c.PeerVMAC = peerVMAC
	c.PeerUUID = peerUUID
	c.lastActivity = time.Now()
	cb := c.cb.OnConnected
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Send wraps payload in an Encapsulated-NPDU BVLC-SC frame tagged with
// originVMAC and, when destVMAC is non-nil, an explicit destination.
func (c *Conn) Send(originVMAC VMAC, destVMAC *VMAC, payload []byte) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.nextMsg++
	id := c.nextMsg
	c.lastActivity = time.Now()
	c.mu.Unlock()

	frame := Frame{
		Function:   FuncEncapsulatedNPDU,
		MessageID:  id,
		OriginVMAC: &originVMAC,
		DestVMAC:   destVMAC,
		Payload:    payload,
	}
	encoded, err := Encode(frame)
	if err != nil {
		return err
	}
	return c.sender.WriteMessage(encoded)
}

// HandleFrame dispatches an inbound frame: heartbeat request/ack keep the
// connection alive without surfacing to OnMessage; everything else is
// handed to the caller.
func (c *Conn) HandleFrame(f *Frame) error {
	c.mu.Lock()
	c.lastActivity = time.Now()
	switch f.Function {
	case FuncHeartbeatRequest:
		c.mu.Unlock()
		ack, err := Encode(Frame{Function: FuncHeartbeatAck, MessageID: f.MessageID})
		if err != nil {
			return err
		}
		return c.sender.WriteMessage(ack)
	case FuncHeartbeatAck:
		c.awaitingHeartbeat = false
		c.mu.Unlock()
		return nil
	case FuncDisconnectRequest:
		c.state = StateDisconnecting
		c.mu.Unlock()
		ack, err := Encode(Frame{Function: FuncDisconnectAck, MessageID: f.MessageID})
		if err != nil {
			return err
		}
		if err := c.sender.WriteMessage(ack); err != nil {
			return err
		}
		return c.Close(nil)
	default:
		cb := c.cb.OnMessage
		c.mu.Unlock()
		if cb != nil {
			cb(f)
		}
		return nil
	}
}

// CheckHeartbeat sends a Heartbeat-Request if the connection has been
// quiet for heartbeatInterval, or fails the connection if a previously
// sent heartbeat has gone unanswered past heartbeatTimeout.
func (c *Conn) CheckHeartbeat(now time.Time) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil
	}
	quiet := now.Sub(c.lastActivity)
	if c.awaitingHeartbeat {
		if quiet > c.heartbeatTimeout {
			c.mu.Unlock()
			c.Close(ErrHeartbeatTimeout)
			return ErrHeartbeatTimeout
		}
		c.mu.Unlock()
		return nil
	}
	if quiet < c.heartbeatInterval {
		c.mu.Unlock()
		return nil
	}
	c.awaitingHeartbeat = true
	c.lastActivity = now
	c.mu.Unlock()

	req, err := Encode(Frame{Function: FuncHeartbeatRequest, MessageID: 0})
	if err != nil {
		return err
	}
	return c.sender.WriteMessage(req)
}

// Close tears the connection down, firing OnDisconnected(cause) and then
// clearing every callback to break reference cycles back to the owner.
func (c *Conn) Close(cause error) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	wasFailed := cause != nil
	if wasFailed {
		c.state = StateFailed
	} else {
		c.state = StateIdle
	}
	cb := c.cb.OnDisconnected
	c.cb = Callbacks{}
	c.mu.Unlock()

	err := c.sender.Close()
	if cb != nil {
		cb(cause)
	}
	return err
}
