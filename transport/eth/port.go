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

// Package eth implements BACnet/Ethernet (Clause 7): NPDUs carried
// directly over 802.3 frames, addressed by 6-byte Ethernet MAC rather
// than an IPv4:port pair.
package eth

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/raw"
)

// EtherType is the BACnet/Ethernet protocol identifier (Clause 7.2),
// carried in the Ethernet II EtherType field that wraps each NPDU.
const EtherType = ethernet.EtherType(0x82DC)

var broadcastMAC = net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Port implements transport.Port over a raw AF_PACKET socket, wrapping
// each NPDU in a single (unfragmented) Ethernet II frame tagged with
// EtherType.
type Port struct {
	ifaceName string

	mu          sync.RWMutex
	iface       *net.Interface
	conn        *raw.Conn
	readTimeout time.Duration
}

// NewPort creates a BACnet/Ethernet port bound to the named network
// interface (e.g. "eth0").
func NewPort(ifaceName string) *Port {
	return &Port{ifaceName: ifaceName, readTimeout: 3 * time.Second}
}

// Open resolves the interface and opens a raw packet socket filtered to
// EtherType frames.
func (p *Port) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return nil
	}
	ifi, err := net.InterfaceByName(p.ifaceName)
	if err != nil {
		return fmt.Errorf("eth: resolve interface %q: %w", p.ifaceName, err)
	}
	conn, err := raw.ListenPacket(ifi, uint16(EtherType), nil)
	if err != nil {
		return fmt.Errorf("eth: listen on %q: %w", p.ifaceName, err)
	}
	p.iface = ifi
	p.conn = conn
	return nil
}

// Close releases the raw socket.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// LocalAddr returns this port's 6-byte Ethernet hardware address.
func (p *Port) LocalAddr() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.iface == nil {
		return nil
	}
	return []byte(p.iface.HardwareAddr)
}

func (p *Port) send(ctx context.Context, dest net.HardwareAddr, payload []byte) error {
	p.mu.RLock()
	conn := p.conn
	iface := p.iface
	p.mu.RUnlock()
	if conn == nil || iface == nil {
		return fmt.Errorf("eth: port not open")
	}

	frame := &ethernet.Frame{
		Destination: dest,
		Source:      iface.HardwareAddr,
		EtherType:   EtherType,
		Payload:     payload,
	}
	raw, err := frame.MarshalBinary()
	if err != nil {
		return fmt.Errorf("eth: marshal frame: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(p.readTimeout)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("eth: set write deadline: %w", err)
	}
	_, err = conn.WriteTo(raw, &addr{HardwareAddr: dest})
	if err != nil {
		return fmt.Errorf("eth: write: %w", err)
	}
	return nil
}

// Send transmits payload (an NPDU) to dest, a 6-byte Ethernet MAC.
func (p *Port) Send(ctx context.Context, dest []byte, payload []byte) error {
	if len(dest) != 6 {
		return fmt.Errorf("eth: destination MAC must be 6 bytes, got %d", len(dest))
	}
	return p.send(ctx, net.HardwareAddr(dest), payload)
}

// Broadcast transmits payload to the Ethernet broadcast address.
func (p *Port) Broadcast(ctx context.Context, payload []byte) error {
	return p.send(ctx, broadcastMAC, payload)
}

// Receive blocks for the next inbound BACnet/Ethernet frame, returning
// the NPDU payload and the sender's 6-byte MAC.
func (p *Port) Receive(ctx context.Context) ([]byte, []byte, error) {
	p.mu.RLock()
	conn := p.conn
	readTimeout := p.readTimeout
	p.mu.RUnlock()
	if conn == nil {
		return nil, nil, fmt.Errorf("eth: port not open")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(readTimeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, fmt.Errorf("eth: set read deadline: %w", err)
	}

	buf := make([]byte, 1514)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return nil, nil, err
		}
		var frame ethernet.Frame
		if err := frame.UnmarshalBinary(buf[:n]); err != nil {
			continue
		}
		if frame.EtherType != EtherType {
			continue
		}
		return frame.Payload, []byte(frame.Source), nil
	}
}

// addr adapts a hardware address to net.Addr for raw.Conn's WriteTo.
type addr struct {
	HardwareAddr net.HardwareAddr
}

func (a *addr) Network() string { return "raw" }
func (a *addr) String() string  { return a.HardwareAddr.String() }
