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

// Package npdu implements the BACnet Clause 6 network layer: NPDU framing,
// routing control octet semantics, and the twelve network layer message
// types used to discover and maintain routes between networks.
package npdu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Control bits (Clause 6.2.2).
type Control uint8

const (
	ControlNetworkLayerMessage Control = 0x80
	ControlDestSpecifier       Control = 0x20
	ControlSourceSpecifier     Control = 0x08
	ControlExpectingReply      Control = 0x04
	ControlPriorityNormal      Control = 0x00
	ControlPriorityUrgent      Control = 0x01
	ControlPriorityCritical    Control = 0x02
	ControlPriorityLifeSafety  Control = 0x03
)

// Version is the only NPDU protocol version defined by ASHRAE 135.
const Version = 0x01

var (
	ErrInvalidNPDU     = errors.New("npdu: malformed network protocol data unit")
	ErrUnsupportedVersion = errors.New("npdu: unsupported protocol version")
	ErrHopCountExceeded = errors.New("npdu: hop count exhausted")
	ErrNetworkListTooLong = errors.New("npdu: network number list exceeds 512 entries")
)

// MaxNetworkListEntries caps the number of network numbers accepted in a
// single Reject-Message-To-Network / I-Could-Be-Router-To-Network style
// list-bearing message, guarding against unbounded allocation.
const MaxNetworkListEntries = 512

// Address identifies a network-layer peer: a network number (0 = local
// network, 0xFFFF = global broadcast) and a MAC address (empty for a
// network-number-only broadcast address).
type Address struct {
	Net  uint16
	MAC  []byte
}

// IsGlobalBroadcast reports whether a addresses every network.
func (a Address) IsGlobalBroadcast() bool { return a.Net == 0xFFFF }

// IsLocalBroadcast reports whether a is a local-network broadcast (no
// destination specifier at all) represented as the zero Address.
func (a Address) IsLocalBroadcast() bool { return a.Net == 0 && len(a.MAC) == 0 }

// NPDU is a decoded network protocol data unit.
type NPDU struct {
	Control       Control
	Dest          *Address // nil when no destination specifier present
	DestHopCount  uint8
	Src           *Address // nil when no source specifier present
	MessageType   MessageType
	VendorID      uint16
	Payload       []byte // APDU bytes, or network-message body when MessageType is set
}

// IsNetworkMessage reports whether the NPDU carries a network layer
// message rather than an APDU.
func (n *NPDU) IsNetworkMessage() bool { return n.Control&ControlNetworkLayerMessage != 0 }

// ExpectingReply reports the expecting-reply bit.
func (n *NPDU) ExpectingReply() bool { return n.Control&ControlExpectingReply != 0 }

// Priority extracts the 2-bit priority field.
func (n *NPDU) Priority() Control { return n.Control & 0x03 }

// Encode serializes the NPDU to its wire form.
func Encode(n *NPDU) ([]byte, error) {
	control := n.Control
	if n.Dest != nil {
		control |= ControlDestSpecifier
	}
	if n.Src != nil {
		control |= ControlSourceSpecifier
	}
	if n.MessageType != 0 || n.IsNetworkMessage() {
		control |= ControlNetworkLayerMessage
	}

	buf := make([]byte, 0, 8+len(n.Payload))
	buf = append(buf, Version, byte(control))

	if n.Dest != nil {
		if len(n.Dest.MAC) > 255 {
			return nil, fmt.Errorf("%w: destination MAC too long", ErrInvalidNPDU)
		}
		buf = append(buf, byte(n.Dest.Net>>8), byte(n.Dest.Net))
		buf = append(buf, byte(len(n.Dest.MAC)))
		buf = append(buf, n.Dest.MAC...)
		buf = append(buf, n.DestHopCount)
	}

	if n.Src != nil {
		if len(n.Src.MAC) > 255 {
			return nil, fmt.Errorf("%w: source MAC too long", ErrInvalidNPDU)
		}
		buf = append(buf, byte(n.Src.Net>>8), byte(n.Src.Net))
		buf = append(buf, byte(len(n.Src.MAC)))
		buf = append(buf, n.Src.MAC...)
	}

	if control&ControlNetworkLayerMessage != 0 {
		buf = append(buf, byte(n.MessageType))
		if n.MessageType >= 0x80 {
			buf = append(buf, byte(n.VendorID>>8), byte(n.VendorID))
		}
	}

	buf = append(buf, n.Payload...)
	return buf, nil
}

// Decode parses an NPDU from data, returning the decoded frame and the
// number of header bytes consumed before the payload begins.
func Decode(data []byte) (*NPDU, int, error) {
	if len(data) < 2 {
		return nil, 0, ErrInvalidNPDU
	}
	if data[0] != Version {
		return nil, 0, fmt.Errorf("%w: got %d", ErrUnsupportedVersion, data[0])
	}

	n := &NPDU{Control: Control(data[1])}
	offset := 2

	if n.Control&ControlDestSpecifier != 0 {
		if len(data) < offset+3 {
			return nil, 0, ErrInvalidNPDU
		}
		net := binary.BigEndian.Uint16(data[offset:])
		offset += 2
		macLen := int(data[offset])
		offset++
		if len(data) < offset+macLen+1 {
			return nil, 0, ErrInvalidNPDU
		}
		mac := make([]byte, macLen)
		copy(mac, data[offset:offset+macLen])
		offset += macLen
		n.Dest = &Address{Net: net, MAC: mac}
		n.DestHopCount = data[offset]
		offset++
	}

	if n.Control&ControlSourceSpecifier != 0 {
		if len(data) < offset+3 {
			return nil, 0, ErrInvalidNPDU
		}
		net := binary.BigEndian.Uint16(data[offset:])
		offset += 2
		macLen := int(data[offset])
		offset++
		if len(data) < offset+macLen {
			return nil, 0, ErrInvalidNPDU
		}
		mac := make([]byte, macLen)
		copy(mac, data[offset:offset+macLen])
		offset += macLen
		n.Src = &Address{Net: net, MAC: mac}
	}

	if n.Control&ControlNetworkLayerMessage != 0 {
		if len(data) < offset+1 {
			return nil, 0, ErrInvalidNPDU
		}
		n.MessageType = MessageType(data[offset])
		offset++
		if n.MessageType >= 0x80 {
			if len(data) < offset+2 {
				return nil, 0, ErrInvalidNPDU
			}
			n.VendorID = binary.BigEndian.Uint16(data[offset:])
			offset += 2
		}
	}

	n.Payload = data[offset:]
	return n, offset, nil
}
