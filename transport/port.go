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

// Package transport defines the port contract every BACnet datalink
// binding (BACnet/IP, BACnet/IPv6, BACnet/Ethernet, BACnet Secure
// Connect) implements, so the network layer can address any of them
// uniformly.
package transport

import "context"

// Port is a directly connected datalink binding. Addr is an
// implementation-defined MAC address: a 6-byte IPv4:port pair for
// BACnet/IP, a 3-byte VMAC for BACnet/IPv6, a 6-byte Ethernet
// MAC for BACnet/Ethernet, or a VMAC for BACnet Secure Connect.
type Port interface {
	// Open prepares the port for use (binds a socket, dials a hub, opens
	// a raw socket) and must be safe to call once before any Send/Receive.
	Open(ctx context.Context) error

	// Close releases the port's resources.
	Close() error

	// Send transmits payload to the unicast MAC address dest.
	Send(ctx context.Context, dest []byte, payload []byte) error

	// Broadcast transmits payload to every directly connected peer.
	Broadcast(ctx context.Context, payload []byte) error

	// Receive blocks until a frame arrives, returning its payload and the
	// MAC address of the sender.
	Receive(ctx context.Context) (payload []byte, src []byte, err error)

	// LocalAddr returns this port's own MAC address.
	LocalAddr() []byte
}
