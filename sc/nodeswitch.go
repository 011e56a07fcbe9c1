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
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrUnsupportedScheme    = errors.New("sc: candidate URI must use ws:// or wss://")
	ErrResolutionPending    = errors.New("sc: address resolution already in progress for this vmac")
	ErrResolutionTableFull  = errors.New("sc: pending address-resolution table full")
	ErrResolutionTimeout    = errors.New("sc: address resolution timed out")
)

// resolution tracks one outstanding Address-Resolution request.
type resolution struct {
	done chan []string // candidate URIs received via Address-Resolution-ACK
}

// NodeSwitch implements the BACnet/SC Node Switch role (Annex AB.5.4):
// it accepts direct inbound connections from peer nodes and, when it
// needs to reach a node it has no direct connection to, resolves that
// node's address through the hub and dials it directly.
type NodeSwitch struct {
	logger    *slog.Logger
	connector *Connector // the hub uplink used for Address-Resolution
	dialer    *websocket.Dialer
	localVMAC VMAC
	localUUID [16]byte

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	maxConnections    int

	mu        sync.Mutex
	direct    map[VMAC]*Conn
	pending   map[VMAC]*resolution
}

// NewNodeSwitch builds a Node Switch that resolves unknown peers through
// connector (the node's uplink to the hub) and enforces maxConnections
// direct connections.
func NewNodeSwitch(logger *slog.Logger, connector *Connector, localVMAC VMAC, localUUID [16]byte, heartbeatInterval, heartbeatTimeout time.Duration, maxConnections int) *NodeSwitch {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeSwitch{
		logger:            logger.With("component", "sc.nodeswitch"),
		connector:         connector,
		dialer:            &websocket.Dialer{Subprotocols: []string{"dc.bsc.bacnet.org"}, HandshakeTimeout: 10 * time.Second},
		localVMAC:         localVMAC,
		localUUID:         localUUID,
		heartbeatInterval: heartbeatInterval,
		heartbeatTimeout:  heartbeatTimeout,
		maxConnections:    maxConnections,
		direct:            make(map[VMAC]*Conn),
		pending:           make(map[VMAC]*resolution),
	}
}

// validateCandidateURI rejects any scheme other than ws/wss, guarding
// against being tricked into dialing an arbitrary protocol/host via a
// forged Address-Resolution-ACK.
func validateCandidateURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return ErrUnsupportedScheme
	}
	return nil
}

// Resolve returns a direct connection to dest, establishing one via
// Address-Resolution through the hub if none already exists.
func (ns *NodeSwitch) Resolve(ctx context.Context, dest VMAC) (*Conn, error) {
	ns.mu.Lock()
	if conn, ok := ns.direct[dest]; ok && conn.State() == StateConnected {
		ns.mu.Unlock()
		return conn, nil
	}
	if _, ok := ns.pending[dest]; ok {
		ns.mu.Unlock()
		return nil, ErrResolutionPending
	}
	if len(ns.pending) >= ns.maxConnections {
		ns.mu.Unlock()
		return nil, ErrResolutionTableFull
	}
	res := &resolution{done: make(chan []string, 1)}
	ns.pending[dest] = res
	ns.mu.Unlock()

	defer func() {
		ns.mu.Lock()
		delete(ns.pending, dest)
		ns.mu.Unlock()
	}()

	if ns.connector == nil {
		return nil, ErrNotConnected
	}

	destCopy := dest
	req := Frame{Function: FuncAddressResolution, MessageID: 1, DestVMAC: &destCopy}
	encoded, err := Encode(req)
	if err != nil {
		return nil, err
	}
	if err := ns.connector.Send(&destCopy, encoded); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case uris := <-res.done:
		return ns.dialCandidates(ctx, dest, uris)
	}
}

// OnAddressResolutionAck feeds a received Address-Resolution-ACK's
// candidate URI list back to whichever Resolve call is waiting on it.
func (ns *NodeSwitch) OnAddressResolutionAck(dest VMAC, candidateURIs []string) {
	if len(candidateURIs) > MaxResolutionURIs {
		candidateURIs = candidateURIs[:MaxResolutionURIs]
	}
	ns.mu.Lock()
	res, ok := ns.pending[dest]
	ns.mu.Unlock()
	if !ok {
		return
	}
	select {
	case res.done <- candidateURIs:
	default:
	}
}

func (ns *NodeSwitch) dialCandidates(ctx context.Context, dest VMAC, uris []string) (*Conn, error) {
	var lastErr error = ErrResolutionTimeout
	for _, raw := range uris {
		if err := validateCandidateURI(raw); err != nil {
			ns.logger.Warn("rejecting candidate uri", "uri", raw, "error", err)
			lastErr = err
			continue
		}
		conn, err := ns.dialDirect(ctx, raw, dest)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}
	return nil, lastErr
}

func (ns *NodeSwitch) dialDirect(ctx context.Context, uri string, dest VMAC) (*Conn, error) {
	ws, _, err := ns.dialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, err
	}
	conn := NewConn(&wsSender{ws: ws}, ns.heartbeatInterval, ns.heartbeatTimeout)
	conn.BeginConnect()

	req := Frame{Function: FuncConnectRequest, MessageID: 1, OriginVMAC: &ns.localVMAC, Payload: ns.localUUID[:]}
	encoded, err := Encode(req)
	if err != nil {
		ws.Close()
		return nil, err
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		ws.Close()
		return nil, err
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, err
	}
	accept, err := Decode(data)
	if err != nil || accept.Function != FuncConnectAccept {
		ws.Close()
		return nil, ErrVMACMismatch
	}
	conn.CompleteConnect(dest, [16]byte{})

	ns.mu.Lock()
	if len(ns.direct) >= ns.maxConnections {
		ns.mu.Unlock()
		conn.Close(nil)
		return nil, ErrResolutionTableFull
	}
	ns.direct[dest] = conn
	ns.mu.Unlock()

	conn.SetCallbacks(Callbacks{
		OnDisconnected: func(error) {
			ns.mu.Lock()
			delete(ns.direct, dest)
			ns.mu.Unlock()
		},
	})
	go ns.pump(conn, ws)
	return conn, nil
}

func (ns *NodeSwitch) pump(conn *Conn, ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			conn.Close(err)
			return
		}
		f, err := Decode(data)
		if err != nil {
			ns.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}
		if err := conn.HandleFrame(f); err != nil {
			ns.logger.Warn("frame handling error", "error", err)
		}
	}
}

// Direct returns the current direct connection to dest, if any.
func (ns *NodeSwitch) Direct(dest VMAC) (*Conn, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	conn, ok := ns.direct[dest]
	return conn, ok
}
