package npdu

import "encoding/binary"

// MessageType enumerates the Clause 6.4 network layer message types.
type MessageType uint8

const (
	WhoIsRouterToNetwork          MessageType = 0x00
	IAmRouterToNetwork            MessageType = 0x01
	ICouldBeRouterToNetwork       MessageType = 0x02
	RejectMessageToNetwork        MessageType = 0x03
	RouterBusyToNetwork           MessageType = 0x04
	RouterAvailableToNetwork      MessageType = 0x05
	InitializeRoutingTable        MessageType = 0x06
	InitializeRoutingTableAck     MessageType = 0x07
	EstablishConnectionToNetwork  MessageType = 0x08
	DisconnectConnectionToNetwork MessageType = 0x09
	ChallengeRequest              MessageType = 0x0A
	SecurityPayload               MessageType = 0x0B
	SecurityResponse              MessageType = 0x0C
	RequestKeyUpdate              MessageType = 0x0D
	UpdateKeySet                  MessageType = 0x0E
	UpdateDistributionKey         MessageType = 0x0F
	RequestMasterKey              MessageType = 0x10
	SetMasterKey                  MessageType = 0x11
	WhatIsNetworkNumber           MessageType = 0x12
	NetworkNumberIs               MessageType = 0x13
)

// RejectReason enumerates the Reject-Message-To-Network reason codes.
type RejectReason uint8

const (
	RejectOtherError                  RejectReason = 0
	RejectNotDirectlyConnected        RejectReason = 1
	RejectBusy                        RejectReason = 2
	RejectUnknownMessageType          RejectReason = 3
	RejectMessageTooLong              RejectReason = 4
	RejectSecurityError               RejectReason = 5
	RejectAddressingError             RejectReason = 6
)

// EncodeNetworkNumberList encodes a Who-Is-Router-To-Network /
// I-Could-Be-Router-To-Network style body: zero or more network numbers,
// each optionally paired with a hop-count-like performance index. Here we
// only need the plain network number list used by Who-Is/I-Am-Router.
func EncodeNetworkNumberList(nets []uint16) ([]byte, error) {
	if len(nets) > MaxNetworkListEntries {
		return nil, ErrNetworkListTooLong
	}
	buf := make([]byte, 0, 2*len(nets))
	for _, n := range nets {
		buf = append(buf, byte(n>>8), byte(n))
	}
	return buf, nil
}

// DecodeNetworkNumberList decodes a list of 16-bit network numbers,
// rejecting lists longer than MaxNetworkListEntries.
func DecodeNetworkNumberList(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, ErrInvalidNPDU
	}
	count := len(data) / 2
	if count > MaxNetworkListEntries {
		return nil, ErrNetworkListTooLong
	}
	nets := make([]uint16, count)
	for i := 0; i < count; i++ {
		nets[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return nets, nil
}

// EncodeRejectMessageToNetwork encodes the reason byte plus rejected
// network number body for a Reject-Message-To-Network message.
func EncodeRejectMessageToNetwork(reason RejectReason, network uint16) []byte {
	return []byte{byte(reason), byte(network >> 8), byte(network)}
}

// DecodeRejectMessageToNetwork decodes the body of a
// Reject-Message-To-Network message.
func DecodeRejectMessageToNetwork(data []byte) (RejectReason, uint16, error) {
	if len(data) != 3 {
		return 0, 0, ErrInvalidNPDU
	}
	return RejectReason(data[0]), binary.BigEndian.Uint16(data[1:]), nil
}

// EncodeInitializeRoutingTable encodes the port-list body of an
// Initialize-Routing-Table / Initialize-Routing-Table-Ack message. Each
// entry is (network number, port ID, port info length, port info).
type RoutingTableEntry struct {
	Network  uint16
	PortID   uint8
	PortInfo []byte
}

func EncodeInitializeRoutingTable(entries []RoutingTableEntry) ([]byte, error) {
	if len(entries) > MaxNetworkListEntries {
		return nil, ErrNetworkListTooLong
	}
	buf := []byte{byte(len(entries))}
	for _, e := range entries {
		if len(e.PortInfo) > 255 {
			return nil, ErrInvalidNPDU
		}
		buf = append(buf, byte(e.Network>>8), byte(e.Network), e.PortID, byte(len(e.PortInfo)))
		buf = append(buf, e.PortInfo...)
	}
	return buf, nil
}

func DecodeInitializeRoutingTable(data []byte) ([]RoutingTableEntry, error) {
	if len(data) < 1 {
		return nil, ErrInvalidNPDU
	}
	count := int(data[0])
	if count > MaxNetworkListEntries {
		return nil, ErrNetworkListTooLong
	}
	offset := 1
	entries := make([]RoutingTableEntry, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < offset+4 {
			return nil, ErrInvalidNPDU
		}
		net := binary.BigEndian.Uint16(data[offset:])
		portID := data[offset+2]
		infoLen := int(data[offset+3])
		offset += 4
		if len(data) < offset+infoLen {
			return nil, ErrInvalidNPDU
		}
		info := make([]byte, infoLen)
		copy(info, data[offset:offset+infoLen])
		offset += infoLen
		entries = append(entries, RoutingTableEntry{Network: net, PortID: portID, PortInfo: info})
	}
	return entries, nil
}

// EncodeNetworkNumberIs encodes the body of a Network-Number-Is message:
// the network number and a configured/learned flag.
func EncodeNetworkNumberIs(network uint16, configured bool) []byte {
	flag := byte(0)
	if configured {
		flag = 1
	}
	return []byte{byte(network >> 8), byte(network), flag}
}

func DecodeNetworkNumberIs(data []byte) (network uint16, configured bool, err error) {
	if len(data) != 3 {
		return 0, false, ErrInvalidNPDU
	}
	return binary.BigEndian.Uint16(data), data[2] != 0, nil
}
