package bip4

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// DefaultPort is the well-known BACnet/IP UDP port (Annex J.1).
const DefaultPort = 47808

// Port implements transport.Port over UDP/IPv4 with BVLC framing,
// forwarding unicast NPDUs as Original-Unicast-NPDU and broadcasts as
// Original-Broadcast-NPDU (Annex J.2).
type Port struct {
	localAddr string

	mu           sync.RWMutex
	conn         *net.UDPConn
	readTimeout  time.Duration
	writeTimeout time.Duration
	closed       bool

	bbmd *BBMD
}

// NewPort creates a BACnet/IP port bound to localAddr (host:port, port
// defaults to DefaultPort if omitted). Pass a non-nil bbmd to act as a
// BACnet Broadcast Management Device for this port.
func NewPort(localAddr string, bbmd *BBMD) *Port {
	return &Port{
		localAddr:    localAddr,
		readTimeout:  3 * time.Second,
		writeTimeout: 3 * time.Second,
		bbmd:         bbmd,
	}
}

func (p *Port) SetReadTimeout(d time.Duration)  { p.mu.Lock(); p.readTimeout = d; p.mu.Unlock() }
func (p *Port) SetWriteTimeout(d time.Duration) { p.mu.Lock(); p.writeTimeout = d; p.mu.Unlock() }

// Open binds the UDP socket.
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
			local = net.JoinHostPort(local, strconv.Itoa(DefaultPort))
		}
		addr, err = net.ResolveUDPAddr("udp4", local)
		if err != nil {
			return fmt.Errorf("bip4: resolve local address: %w", err)
		}
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("bip4: listen: %w", err)
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

// LocalAddr returns the 6-byte IPv4:port BACnet/IP MAC address of this
// port, or nil if not yet open.
func (p *Port) LocalAddr() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil {
		return nil
	}
	udpAddr, ok := p.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil
	}
	return macFromUDPAddr(udpAddr)
}

func macFromUDPAddr(addr *net.UDPAddr) []byte {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return nil
	}
	mac := make([]byte, 6)
	copy(mac[:4], ip4)
	mac[4] = byte(addr.Port >> 8)
	mac[5] = byte(addr.Port)
	return mac
}

func udpAddrFromMAC(mac []byte) (*net.UDPAddr, error) {
	if len(mac) != 6 {
		return nil, fmt.Errorf("bip4: MAC address must be 6 bytes, got %d", len(mac))
	}
	return &net.UDPAddr{IP: net.IPv4(mac[0], mac[1], mac[2], mac[3]), Port: int(mac[4])<<8 | int(mac[5])}, nil
}

func (p *Port) write(ctx context.Context, addr *net.UDPAddr, frame []byte) error {
	p.mu.RLock()
	conn := p.conn
	writeTimeout := p.writeTimeout
	p.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("bip4: port not open")
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("bip4: set write deadline: %w", err)
	}
	n, err := conn.WriteToUDP(frame, addr)
	if err != nil {
		return fmt.Errorf("bip4: write: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("bip4: partial write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// Send transmits payload (an NPDU) as an Original-Unicast-NPDU to dest, a
// 6-byte IPv4:port MAC address.
func (p *Port) Send(ctx context.Context, dest []byte, payload []byte) error {
	addr, err := udpAddrFromMAC(dest)
	if err != nil {
		return err
	}
	return p.write(ctx, addr, Encode(FuncOriginalUnicastNPDU, payload))
}

// Broadcast transmits payload as an Original-Broadcast-NPDU to the local
// subnet's IPv4 limited broadcast address.
func (p *Port) Broadcast(ctx context.Context, payload []byte) error {
	addr := &net.UDPAddr{IP: net.IPv4bcast, Port: DefaultPort}
	return p.write(ctx, addr, Encode(FuncOriginalBroadcastNPDU, payload))
}

// Receive blocks for the next inbound frame and unwraps BVLC framing,
// returning the NPDU of an Original-Unicast-NPDU, Original-Broadcast-NPDU
// or Forwarded-NPDU frame. When this port has a BBMD, other BVLC functions
// go to BBMD.Handle and its reply is sent back to the requester; no
// broadcast is forwarded to BDT peers or foreign devices.
func (p *Port) Receive(ctx context.Context) ([]byte, []byte, error) {
	for {
		p.mu.RLock()
		conn := p.conn
		readTimeout := p.readTimeout
		p.mu.RUnlock()
		if conn == nil {
			return nil, nil, fmt.Errorf("bip4: port not open")
		}

		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(readTimeout)
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, fmt.Errorf("bip4: set read deadline: %w", err)
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
		srcMAC := macFromUDPAddr(addr)

		switch frame.Function {
		case FuncOriginalUnicastNPDU, FuncOriginalBroadcastNPDU:
			return frame.Body, srcMAC, nil
		case FuncForwardedNPDU:
			if len(frame.Body) < 6 {
				continue
			}
			origin := frame.Body[:6]
			return frame.Body[6:], origin, nil
		default:
			if p.bbmd != nil {
				resp, respAddr := p.bbmd.Handle(frame, addr)
				if resp != nil {
					_ = p.write(ctx, respAddr, resp)
				}
			}
		}
	}
}
