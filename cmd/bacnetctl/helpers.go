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

package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/edgeo/bacnetstack/npdu"
	"github.com/edgeo/bacnetstack/tlv"
)

// parseHostMAC resolves a "host:port" string to the 6-byte IPv4:port MAC
// address BACnet/IP ports expect as a destination.
func parseHostMAC(hostport string) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", hostport, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", host, err)
		}
		ip = resolved.IP
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address", host)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	mac := make([]byte, 6)
	copy(mac[:4], ip4)
	mac[4] = byte(port >> 8)
	mac[5] = byte(port)
	return mac, nil
}

// encodeLocalBroadcast wraps apduBytes in an NPDU with no destination
// specifier, which every BACnet/IP binding treats as a local broadcast
// when handed to Port.Broadcast.
func encodeLocalBroadcast(apduBytes []byte) ([]byte, error) {
	return npdu.Encode(&npdu.NPDU{Payload: apduBytes})
}

// encodeUnicast wraps apduBytes in a bare NPDU (no routing specifiers),
// suitable for Port.Send to a directly reachable BACnet/IP peer.
func encodeUnicast(apduBytes []byte) ([]byte, error) {
	return npdu.Encode(&npdu.NPDU{Payload: apduBytes})
}

// parseObjectID parses a "type:instance" object identifier, e.g. "0:1"
// for analog-input instance 1.
func parseObjectID(s string) (tlv.ObjectIdentifier, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return tlv.ObjectIdentifier{}, fmt.Errorf("invalid object id %q, expected type:instance", s)
	}
	typ, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return tlv.ObjectIdentifier{}, fmt.Errorf("invalid object type %q: %w", parts[0], err)
	}
	instance, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return tlv.ObjectIdentifier{}, fmt.Errorf("invalid object instance %q: %w", parts[1], err)
	}
	return tlv.ObjectIdentifier{Type: uint16(typ), Instance: uint32(instance)}, nil
}

// parseValue converts a CLI-supplied string into a tagged application
// value, guessing real vs. unsigned vs. character string from its
// syntax (no type flag, matching a simple diagnostic tool's ergonomics).
func parseValue(s string) tlv.Value {
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return tlv.Value{Tag: tlv.TagUnsigned, Uint: u}
	}
	if f, err := strconv.ParseFloat(s, 32); err == nil {
		return tlv.Value{Tag: tlv.TagReal, Real: float32(f)}
	}
	return tlv.Value{Tag: tlv.TagCharacterString, Str: s}
}

// formatValue renders a decoded application value for table/CSV output.
func formatValue(v tlv.Value) string {
	switch v.Tag {
	case tlv.TagNull:
		return "null"
	case tlv.TagBoolean:
		return strconv.FormatBool(v.Bool)
	case tlv.TagUnsigned, tlv.TagEnumerated:
		return strconv.FormatUint(v.Uint, 10)
	case tlv.TagSigned:
		return strconv.FormatInt(v.Int, 10)
	case tlv.TagReal:
		return strconv.FormatFloat(float64(v.Real), 'f', -1, 32)
	case tlv.TagDouble:
		return strconv.FormatFloat(v.Double, 'f', -1, 64)
	case tlv.TagCharacterString:
		return v.Str
	case tlv.TagObjectID:
		return fmt.Sprintf("%d:%d", v.ObjectID.Type, v.ObjectID.Instance)
	default:
		return fmt.Sprintf("<tag %d>", v.Tag)
	}
}
