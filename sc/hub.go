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
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrVMACInUse       = errors.New("sc: vmac already reserved or connected")
	ErrVMACMismatch    = errors.New("sc: origin vmac does not match connection's reserved vmac")
	ErrHubAtCapacity   = errors.New("sc: hub connection table at capacity")
)

// pendingTTL bounds how long a reserved-but-unconfirmed VMAC holds its slot.
const pendingTTL = 30 * time.Second

// wsSender adapts a *websocket.Conn to the Sender interface.
type wsSender struct {
	ws *websocket.Conn
}

func (w *wsSender) WriteMessage(data []byte) error {
	return w.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wsSender) Close() error {
	return w.ws.Close()
}

type hubEntry struct {
	conn      *Conn
	uuid      [16]byte
	reservedAt time.Time
	confirmed bool
}

// Hub implements the BACnet/SC Hub Function (Annex AB.5.2): it accepts
// inbound WebSocket connections, assigns and enforces each peer's VMAC,
// and forwards Encapsulated-NPDU traffic between connected nodes.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	maxConnections    int

	mu      sync.Mutex
	byVMAC  map[VMAC]*hubEntry
	byUUID  map[[16]byte]VMAC
}

// NewHub builds a Hub Function ready to accept connections via ServeHTTP.
func NewHub(logger *slog.Logger, heartbeatInterval, heartbeatTimeout time.Duration, maxConnections int) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:            logger.With("component", "sc.hub"),
		heartbeatInterval: heartbeatInterval,
		heartbeatTimeout:  heartbeatTimeout,
		maxConnections:    maxConnections,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"hub.bsc.bacnet.org"},
		},
		byVMAC: make(map[VMAC]*hubEntry),
		byUUID: make(map[[16]byte]VMAC),
	}
}

// ServeHTTP upgrades an inbound request to a WebSocket and runs the
// BACnet/SC Connect-Request handshake before admitting the peer to the
// connection table.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := NewConn(&wsSender{ws: ws}, h.heartbeatInterval, h.heartbeatTimeout)
	conn.BeginConnect()

	_, data, err := ws.ReadMessage()
	if err != nil {
		h.logger.Warn("no connect-request received", "error", err)
		ws.Close()
		return
	}
	frame, err := Decode(data)
	if err != nil || frame.Function != FuncConnectRequest || frame.OriginVMAC == nil {
		h.logger.Warn("malformed connect-request")
		ws.Close()
		return
	}
	var uuid [16]byte
	if len(frame.Payload) >= 16 {
		copy(uuid[:], frame.Payload[:16])
	}

	if err := h.reserve(*frame.OriginVMAC, uuid); err != nil {
		nak, _ := Encode(Frame{Function: FuncResult, Flags: FlagIsNak, MessageID: frame.MessageID})
		ws.WriteMessage(websocket.BinaryMessage, nak)
		ws.Close()
		return
	}

	conn.CompleteConnect(*frame.OriginVMAC, uuid)
	h.confirm(*frame.OriginVMAC, conn)

	accept, _ := Encode(Frame{Function: FuncConnectAccept, MessageID: frame.MessageID})
	ws.WriteMessage(websocket.BinaryMessage, accept)

	conn.SetCallbacks(Callbacks{
		OnMessage: func(f *Frame) { h.route(*frame.OriginVMAC, f) },
		OnDisconnected: func(error) { h.remove(*frame.OriginVMAC) },
	})

	h.pump(conn, ws)
}

func (h *Hub) pump(conn *Conn, ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			conn.Close(err)
			return
		}
		f, err := Decode(data)
		if err != nil {
			h.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}
		if err := conn.HandleFrame(f); err != nil {
			h.logger.Warn("frame handling error", "error", err)
		}
	}
}

// reserve grants vmac a slot in the connection table, subject to the
// overall connection limit. A previous unconfirmed reservation for the
// same VMAC that has outlived pendingTTL is evicted and replaced.
func (h *Hub) reserve(vmac VMAC, uuid [16]byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.byVMAC[vmac]; ok {
		if existing.confirmed || time.Since(existing.reservedAt) < pendingTTL {
			return ErrVMACInUse
		}
		delete(h.byUUID, existing.uuid)
	}
	if len(h.byVMAC) >= h.maxConnections {
		return ErrHubAtCapacity
	}
	h.byVMAC[vmac] = &hubEntry{uuid: uuid, reservedAt: time.Now()}
	h.byUUID[uuid] = vmac
	return nil
}

func (h *Hub) confirm(vmac VMAC, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.byVMAC[vmac]; ok {
		e.conn = conn
		e.confirmed = true
	}
}

func (h *Hub) remove(vmac VMAC) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.byVMAC[vmac]; ok {
		delete(h.byUUID, e.uuid)
		delete(h.byVMAC, vmac)
	}
}

// route enforces that origin's connection may only claim its own VMAC as
// origin_vmac, then forwards to the named destination or, if none is
// given, broadcasts to every other connected node.
func (h *Hub) route(origin VMAC, f *Frame) {
	if f.OriginVMAC != nil && *f.OriginVMAC != origin {
		h.logger.Warn("origin vmac mismatch, dropping frame", "claimed", *f.OriginVMAC, "actual", origin)
		h.sendResult(origin, f.MessageID)
		return
	}
	originCopy := origin
	f.OriginVMAC = &originCopy

	h.mu.Lock()
	defer h.mu.Unlock()

	if f.DestVMAC != nil {
		if e, ok := h.byVMAC[*f.DestVMAC]; ok && e.confirmed {
			h.forward(e, f)
		}
		return
	}
	for vmac, e := range h.byVMAC {
		if vmac == origin || !e.confirmed {
			continue
		}
		h.forward(e, f)
	}
}

func (h *Hub) forward(e *hubEntry, f *Frame) {
	encoded, err := Encode(*f)
	if err != nil {
		h.logger.Warn("failed to re-encode forwarded frame", "error", err)
		return
	}
	if err := e.conn.sender.WriteMessage(encoded); err != nil {
		h.logger.Warn("failed to forward frame", "error", err)
	}
}

func (h *Hub) sendResult(origin VMAC, messageID uint16) {
	if e, ok := h.byVMAC[origin]; ok && e.confirmed {
		nak, err := Encode(Frame{Function: FuncResult, Flags: FlagIsNak, MessageID: messageID})
		if err == nil {
			e.conn.sender.WriteMessage(nak)
		}
	}
}

// Connections reports the number of admitted (confirmed) peers.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.byVMAC {
		if e.confirmed {
			n++
		}
	}
	return n
}
