package bip4

import (
	"net"
	"sync"
	"time"
)

// MaxForeignDevices caps the foreign device table size, guarding against
// unbounded registration floods.
const MaxForeignDevices = 128

type foreignDevice struct {
	addr    *net.UDPAddr
	ttl     uint16
	expires time.Time
}

// BBMD holds the tables of a BACnet Broadcast Management Device (Annex
// J.4): a broadcast distribution table of peer BBMDs and a foreign device
// table of registered remote devices, and it answers the BVLC requests
// that read, write and register in them. It does not forward broadcasts:
// Targets lists the peers and foreign devices a forwarded broadcast would
// go to, but nothing in this package sends to them.
type BBMD struct {
	mu   sync.Mutex
	bdt  []BDTEntry
	fdt  map[string]*foreignDevice
}

// NewBBMD creates an empty BBMD.
func NewBBMD() *BBMD {
	return &BBMD{fdt: make(map[string]*foreignDevice)}
}

// SetBDT replaces the broadcast distribution table.
func (b *BBMD) SetBDT(entries []BDTEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bdt = entries
}

// BDT returns a copy of the broadcast distribution table.
func (b *BBMD) BDT() []BDTEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BDTEntry, len(b.bdt))
	copy(out, b.bdt)
	return out
}

// FDT returns the current foreign device table, excluding expired
// entries.
func (b *BBMD) FDT() []FDTEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	out := make([]FDTEntry, 0, len(b.fdt))
	for _, fd := range b.fdt {
		if fd.expires.Before(now) {
			continue
		}
		remaining := uint16(time.Until(fd.expires).Seconds())
		ip4 := fd.addr.IP.To4()
		var ipArr [4]byte
		copy(ipArr[:], ip4)
		out = append(out, FDTEntry{IP: ipArr, Port: uint16(fd.addr.Port), TTLSeconds: fd.ttl, RemainingSeconds: remaining})
	}
	return out
}

// register adds or refreshes a foreign device registration. BACnet adds a
// 30 second grace period to the requested TTL (Annex J.5.2.1).
func (b *BBMD) register(addr *net.UDPAddr, ttlSeconds uint16) ResultCode {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := addr.String()
	if _, exists := b.fdt[key]; !exists && len(b.fdt) >= MaxForeignDevices {
		return ResultRegisterForeignDeviceNAK
	}
	b.fdt[key] = &foreignDevice{
		addr:    addr,
		ttl:     ttlSeconds,
		expires: time.Now().Add(time.Duration(ttlSeconds)*time.Second + 30*time.Second),
	}
	return ResultSuccess
}

// ExpireForeignDevices removes registrations whose TTL has lapsed. Call
// periodically (e.g. every 30s) from the owning application's maintenance
// loop.
func (b *BBMD) ExpireForeignDevices() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for k, fd := range b.fdt {
		if fd.expires.Before(now) {
			delete(b.fdt, k)
		}
	}
}

// Handle services a BVLC frame directed at BDT/FDT management or
// broadcast distribution, returning an optional reply frame and the
// address to send it to.
func (b *BBMD) Handle(frame *Frame, from *net.UDPAddr) ([]byte, *net.UDPAddr) {
	switch frame.Function {
	case FuncRegisterForeignDevice:
		ttl, err := DecodeRegisterForeignDevice(frame.Body)
		if err != nil {
			return Encode(FuncResult, EncodeResult(ResultRegisterForeignDeviceNAK)), from
		}
		code := b.register(from, ttl)
		return Encode(FuncResult, EncodeResult(code)), from

	case FuncReadFDT:
		return Encode(FuncReadFDTAck, EncodeFDT(b.FDT())), from

	case FuncWriteBDT:
		entries, err := DecodeBDT(frame.Body)
		if err != nil {
			return Encode(FuncResult, EncodeResult(ResultWriteBDTNAK)), from
		}
		b.SetBDT(entries)
		return Encode(FuncResult, EncodeResult(ResultSuccess)), from

	case FuncReadBDT:
		return Encode(FuncReadBDTAck, EncodeBDT(b.BDT())), from

	case FuncDistributeBroadcastToNetwork:
		b.redistribute(frame.Body, from)
		return nil, nil

	default:
		return nil, nil
	}
}

// redistribute does nothing: a Distribute-Broadcast-To-Network frame gets
// no reply and is not forwarded to any BDT peer or foreign device.
func (b *BBMD) redistribute(npdu []byte, origin *net.UDPAddr) {
	_ = npdu
	_ = origin
}

// Targets returns every BDT peer and registered foreign device that
// should receive a forwarded broadcast, excluding origin.
func (b *BBMD) Targets(origin *net.UDPAddr) []*net.UDPAddr {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*net.UDPAddr
	for _, e := range b.bdt {
		addr := &net.UDPAddr{IP: net.IPv4(e.IP[0], e.IP[1], e.IP[2], e.IP[3]), Port: int(e.Port)}
		if origin != nil && addr.String() == origin.String() {
			continue
		}
		out = append(out, addr)
	}
	now := time.Now()
	for _, fd := range b.fdt {
		if fd.expires.Before(now) {
			continue
		}
		if origin != nil && fd.addr.String() == origin.String() {
			continue
		}
		out = append(out, fd.addr)
	}
	return out
}
