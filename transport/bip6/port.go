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

package bip6

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPort is the well-known BACnet/IPv6 UDP port (Annex U.1).
const DefaultPort = 47808

// MulticastGroup is the BACnet/IPv6 link-local multicast group
// (Annex U.1) used for Original-Broadcast-NPDU and Address-Resolution.
const MulticastGroup = "ff02::bac0"

// maxVMACCacheEntries bounds the VMAC-to-socket-address cache learned
// from Forwarded-NPDU, Address-Resolution-Ack, Virtual-Address-Resolution
// and Virtual-Address-Resolution-Ack frames. Oldest entries are evicted
// once the bound is hit, so an adversarial flood of distinct VMACs cannot
// grow the cache without limit (bip4/bbmd.go bounds its foreign device
// table with MaxForeignDevices too, but refuses new entries instead of
// evicting).
const maxVMACCacheEntries = 512

// Port implements transport.Port over UDP/IPv6 with BVLC framing,
// addressed by a 3-byte VMAC rather than bip4's 6-byte IPv4:port MAC.
// Destination resolution is learned passively from inbound frames that
// carry a VMAC (Forwarded-NPDU, the resolution acks, and
// Virtual-Address-Resolution); Original-Unicast/Broadcast-NPDU frames
// carry none and add nothing to the cache. ResolveVMAC actively solicits
// a mapping via Address-Resolution for a VMAC not yet in the cache.
type Port struct {
	localAddr string
	localVMAC VMAC

	mu           sync.RWMutex
	conn         *net.UDPConn
	readTimeout  time.Duration
	writeTimeout time.Duration
	closed       bool

	cache      map[VMAC]*net.UDPAddr
	cacheOrder []VMAC
}

// NewPort creates a BACnet/IPv6 port bound to localAddr (host:port, port
// defaults to DefaultPort if omitted), identified on the BACnet/IPv6
// network by vmac.
func NewPort(localAddr string, vmac VMAC) *Port {
	return &Port{
		localAddr:    localAddr,
		localVMAC:    vmac,
		readTimeout:  3 * time.Second,
		writeTimeout: 3 * time.Second,
		cache:        make(map[VMAC]*net.UDPAddr),
	}
}

func (p *Port) SetReadTimeout(d time.Duration)  { p.mu.Lock(); p.readTimeout = d; p.mu.Unlock() }
func (p *Port) SetWriteTimeout(d time.Duration) { p.mu.Lock(); p.writeTimeout = d; p.mu.Unlock() }

// Open binds the UDP/IPv6 socket.
func (p *Port) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return nil
	}
	var addr *net.UDPAddr
	var err error
	if p.localAddr != "" {
		local := p.localAddr
		if _, _, splitErr := net.SplitHostPort(local); splitErr != nil {
			local = net.JoinHostPort(strings.Trim(local, "[]"), strconv.Itoa(DefaultPort))
		}
		addr, err = net.ResolveUDPAddr("udp6", local)
		if err != nil {
			return fmt.Errorf("bip6: resolve local address: %w", err)
		}
	}
	conn, err := net.ListenUDP("udp6", addr)
	if err != nil {
		return fmt.Errorf("bip6: listen: %w", err)
	}
	p.conn = conn
	p.closed = false
	return nil
}

// Close releases the UDP socket.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// LocalAddr returns this port's 3-byte VMAC.
func (p *Port) LocalAddr() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil {
		return nil
	}
	return append([]byte(nil), p.localVMAC[:]...)
}

func vmacFromBytes(mac []byte) (VMAC, error) {
	if len(mac) != 3 {
		return VMAC{}, fmt.Errorf("bip6: VMAC must be 3 bytes, got %d", len(mac))
	}
	var v VMAC
	copy(v[:], mac)
	return v, nil
}

// learn records vmac's current IPv6 socket address, evicting the oldest
// cached entry if the bound is reached.
func (p *Port) learn(vmac VMAC, addr *net.UDPAddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.cache[vmac]; !exists {
		if len(p.cacheOrder) >= maxVMACCacheEntries {
			oldest := p.cacheOrder[0]
			p.cacheOrder = p.cacheOrder[1:]
			delete(p.cache, oldest)
		}
		p.cacheOrder = append(p.cacheOrder, vmac)
	}
	p.cache[vmac] = addr
}

func (p *Port) lookup(vmac VMAC) (*net.UDPAddr, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	addr, ok := p.cache[vmac]
	return addr, ok
}

// reverseLookup returns the VMAC previously learned for addr, if any.
func (p *Port) reverseLookup(addr *net.UDPAddr) (VMAC, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for vmac, cached := range p.cache {
		if cached.IP.Equal(addr.IP) && cached.Port == addr.Port {
			return vmac, true
		}
	}
	return VMAC{}, false
}

func (p *Port) write(ctx context.Context, addr *net.UDPAddr, frame []byte) error {
	p.mu.RLock()
	conn := p.conn
	writeTimeout := p.writeTimeout
	p.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("bip6: port not open")
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("bip6: set write deadline: %w", err)
	}
	n, err := conn.WriteToUDP(frame, addr)
	if err != nil {
		return fmt.Errorf("bip6: write: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("bip6: partial write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// ResolveVMAC broadcasts an Address-Resolution request for target. The
// resulting Address-Resolution-Ack, once observed by Receive, populates
// the VMAC cache; this call does not itself block for the answer, since
// a single port's socket is meant to be read by one Receive loop.
func (p *Port) ResolveVMAC(ctx context.Context, target VMAC) error {
	addr := &net.UDPAddr{IP: net.ParseIP(MulticastGroup), Port: DefaultPort}
	return p.write(ctx, addr, Encode(FuncAddressResolution, EncodeAddressResolution(target)))
}

// Send transmits payload (an NPDU) as an Original-Unicast-NPDU to dest, a
// 3-byte VMAC previously learned via Receive or ResolveVMAC.
func (p *Port) Send(ctx context.Context, dest []byte, payload []byte) error {
	vmac, err := vmacFromBytes(dest)
	if err != nil {
		return err
	}
	addr, ok := p.lookup(vmac)
	if !ok {
		return fmt.Errorf("bip6: no cached IPv6 address for VMAC %s, call ResolveVMAC first", vmac)
	}
	return p.write(ctx, addr, Encode(FuncOriginalUnicastNPDU, payload))
}

// Broadcast transmits payload as an Original-Broadcast-NPDU to the
// BACnet/IPv6 multicast group.
func (p *Port) Broadcast(ctx context.Context, payload []byte) error {
	addr := &net.UDPAddr{IP: net.ParseIP(MulticastGroup), Port: DefaultPort}
	return p.write(ctx, addr, Encode(FuncOriginalBroadcastNPDU, payload))
}

// Receive blocks for the next inbound frame, unwrapping BVLC6 framing,
// learning the sender's VMAC-to-address mapping from frames that carry
// a VMAC, and answering Address-Resolution/Virtual-Address-Resolution
// requests addressed to this port's own VMAC before returning an NPDU
// payload to the caller.
func (p *Port) Receive(ctx context.Context) ([]byte, []byte, error) {
	for {
		p.mu.RLock()
		conn := p.conn
		readTimeout := p.readTimeout
		p.mu.RUnlock()
		if conn == nil {
			return nil, nil, fmt.Errorf("bip6: port not open")
		}

		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(readTimeout)
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, fmt.Errorf("bip6: set read deadline: %w", err)
		}

		buf := make([]byte, 1500)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return nil, nil, err
		}

		frame, err := Decode(buf[:n])
		if err != nil {
			continue
		}

		switch frame.Function {
		case FuncOriginalUnicastNPDU, FuncOriginalBroadcastNPDU:
			// Original-Unicast/Broadcast-NPDU carries no VMAC of its
			// own (Annex U.1); report the sender's VMAC if a prior
			// Address-Resolution/Virtual-Address-Resolution exchange
			// already mapped this socket address, otherwise fall back
			// to the raw IPv6:port so the caller still has something
			// to reply through once resolution completes.
			if vmac, ok := p.reverseLookup(addr); ok {
				return frame.Body, append([]byte(nil), vmac[:]...), nil
			}
			return frame.Body, addrKey(addr), nil

		case FuncForwardedNPDU:
			origin, npdu, err := DecodeForwardedNPDU(frame.Body)
			if err != nil {
				continue
			}
			p.learn(origin, addr)
			return npdu, append([]byte(nil), origin[:]...), nil

		case FuncAddressResolution:
			target, err := DecodeAddressResolution(frame.Body)
			if err != nil {
				continue
			}
			if target == p.localVMAC {
				ack := Encode(FuncAddressResolutionAck, EncodeAddressResolutionAck(p.localVMAC))
				_ = p.write(ctx, addr, ack)
			}

		case FuncAddressResolutionAck:
			vmac, err := DecodeAddressResolutionAck(frame.Body)
			if err != nil {
				continue
			}
			p.learn(vmac, addr)

		case FuncVirtualAddressResolution:
			vmac, err := DecodeVirtualAddressResolution(frame.Body)
			if err != nil {
				continue
			}
			p.learn(vmac, addr)
			ack := Encode(FuncVirtualAddressResolutionAck, EncodeVirtualAddressResolutionAck(p.localVMAC))
			_ = p.write(ctx, addr, ack)

		case FuncVirtualAddressResolutionAck:
			vmac, err := DecodeVirtualAddressResolutionAck(frame.Body)
			if err != nil {
				continue
			}
			p.learn(vmac, addr)

		default:
			// BDT/FDT management, Secure-BVLL, and Distribute-Broadcast-
			// To-Network are BBMD-role concerns this port does not act
			// on; a directly-connected device simply ignores them.
		}
	}
}

func addrKey(addr *net.UDPAddr) []byte {
	return []byte(addr.String())
}
