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

// Package apdu implements the BACnet Clause 5/20 application layer PDU
// envelope: the eight PDU type encodings, the confirmed/unconfirmed
// service choice enumerations, and the structured codecs for the core set
// of services an application actually drives.
package apdu

import (
	"errors"
	"fmt"
)

// PDUType is the high nibble of the first APDU octet (Clause 20.1.2).
type PDUType uint8

const (
	TypeConfirmedRequest   PDUType = 0x00
	TypeUnconfirmedRequest PDUType = 0x10
	TypeSimpleAck          PDUType = 0x20
	TypeComplexAck         PDUType = 0x30
	TypeSegmentAck         PDUType = 0x40
	TypeError              PDUType = 0x50
	TypeReject             PDUType = 0x60
	TypeAbort              PDUType = 0x70
)

// ConfirmedServiceChoice enumerates Clause 21 confirmed services.
type ConfirmedServiceChoice uint8

const (
	ServiceAcknowledgeAlarm            ConfirmedServiceChoice = 0
	ServiceConfirmedCOVNotification    ConfirmedServiceChoice = 1
	ServiceConfirmedEventNotification  ConfirmedServiceChoice = 2
	ServiceGetAlarmSummary             ConfirmedServiceChoice = 3
	ServiceGetEnrollmentSummary        ConfirmedServiceChoice = 4
	ServiceSubscribeCOV                ConfirmedServiceChoice = 5
	ServiceAtomicReadFile              ConfirmedServiceChoice = 6
	ServiceAtomicWriteFile             ConfirmedServiceChoice = 7
	ServiceAddListElement              ConfirmedServiceChoice = 8
	ServiceRemoveListElement           ConfirmedServiceChoice = 9
	ServiceCreateObject                ConfirmedServiceChoice = 10
	ServiceDeleteObject                ConfirmedServiceChoice = 11
	ServiceReadProperty                ConfirmedServiceChoice = 12
	ServiceReadPropertyConditional     ConfirmedServiceChoice = 13
	ServiceReadPropertyMultiple        ConfirmedServiceChoice = 14
	ServiceWriteProperty               ConfirmedServiceChoice = 15
	ServiceWritePropertyMultiple        ConfirmedServiceChoice = 16
	ServiceDeviceCommunicationControl  ConfirmedServiceChoice = 17
	ServiceConfirmedPrivateTransfer    ConfirmedServiceChoice = 18
	ServiceConfirmedTextMessage        ConfirmedServiceChoice = 19
	ServiceReinitializeDevice          ConfirmedServiceChoice = 20
	ServiceVTOpen                      ConfirmedServiceChoice = 21
	ServiceVTClose                     ConfirmedServiceChoice = 22
	ServiceVTData                      ConfirmedServiceChoice = 23
	ServiceAuthenticate                ConfirmedServiceChoice = 24
	ServiceRequestKey                  ConfirmedServiceChoice = 25
	ServiceReadRange                   ConfirmedServiceChoice = 26
	ServiceLifeSafetyOperation         ConfirmedServiceChoice = 27
	ServiceSubscribeCOVProperty        ConfirmedServiceChoice = 28
	ServiceGetEventInformation         ConfirmedServiceChoice = 29
	ServiceSubscribeCOVPropertyMultiple ConfirmedServiceChoice = 30
	ServiceConfirmedCOVNotificationMultiple ConfirmedServiceChoice = 31
	ServiceConfirmedAuditNotification  ConfirmedServiceChoice = 32
	ServiceAuditLogQuery               ConfirmedServiceChoice = 33
)

// UnconfirmedServiceChoice enumerates Clause 21 unconfirmed services.
type UnconfirmedServiceChoice uint8

const (
	ServiceIAm                          UnconfirmedServiceChoice = 0
	ServiceIHave                        UnconfirmedServiceChoice = 1
	ServiceUnconfirmedCOVNotification   UnconfirmedServiceChoice = 2
	ServiceUnconfirmedEventNotification UnconfirmedServiceChoice = 3
	ServiceUnconfirmedPrivateTransfer   UnconfirmedServiceChoice = 4
	ServiceUnconfirmedTextMessage       UnconfirmedServiceChoice = 5
	ServiceTimeSynchronization          UnconfirmedServiceChoice = 6
	ServiceWhoHas                       UnconfirmedServiceChoice = 7
	ServiceWhoIs                        UnconfirmedServiceChoice = 8
	ServiceUTCTimeSynchronization       UnconfirmedServiceChoice = 9
	ServiceWriteGroup                   UnconfirmedServiceChoice = 10
	ServiceUnconfirmedCOVNotificationMultiple UnconfirmedServiceChoice = 11
	ServiceUnconfirmedAuditNotification UnconfirmedServiceChoice = 12
	ServiceWhoAmI                       UnconfirmedServiceChoice = 13
	ServiceYouAre                       UnconfirmedServiceChoice = 14
)

var (
	ErrInvalidAPDU  = errors.New("apdu: malformed application protocol data unit")
	ErrTooShort     = errors.New("apdu: data shorter than minimum PDU size")
	ErrUnknownType  = errors.New("apdu: unrecognized PDU type")
)

// PDU is a decoded application layer protocol data unit. Only the fields
// relevant to the PDU's Type are populated; callers switch on Type before
// reading them.
type PDU struct {
	Type PDUType

	// Confirmed request / segmented responses.
	Segmented     bool
	MoreFollows   bool
	SegmentedResponseAccepted bool
	MaxSegments   uint8
	MaxAPDU       uint8
	InvokeID      uint8
	SequenceNumber uint8
	ProposedWindowSize uint8
	ConfirmedService   ConfirmedServiceChoice

	// Unconfirmed request.
	UnconfirmedService UnconfirmedServiceChoice

	// Complex ack carries the same segmentation fields as confirmed
	// request plus ConfirmedService identifying which response this is.

	// Error.
	ErrorClass uint8
	ErrorCode  uint8

	// Reject / Abort.
	Reason uint8
	Server bool // Abort only: true if the server originated the abort

	Data []byte
}

// maxAPDULengthTable maps the 4-bit max-APDU-length-accepted nibble used
// in the confirmed-request header to a length in octets (Clause 20.1.2.4).
var maxAPDULengthTable = [16]int{50, 128, 206, 480, 1024, 1476, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

// MaxAPDULengthFor decodes the 4-bit max-APDU-length-accepted nibble.
func MaxAPDULengthFor(nibble uint8) int {
	if int(nibble) >= len(maxAPDULengthTable) {
		return 0
	}
	return maxAPDULengthTable[nibble]
}

// EncodeConfirmedRequest encodes a (possibly segmented) confirmed
// request. For the common unsegmented case, pass segmented=false and
// sequenceNumber/windowSize are ignored.
func EncodeConfirmedRequest(invokeID uint8, service ConfirmedServiceChoice, data []byte, maxSegments, maxAPDU uint8, segmented, moreFollows, segRespAccepted bool, sequenceNumber, windowSize uint8) []byte {
	flags := byte(TypeConfirmedRequest)
	if segmented {
		flags |= 0x08
	}
	if moreFollows {
		flags |= 0x04
	}
	if segRespAccepted {
		flags |= 0x02
	}

	buf := make([]byte, 0, 5+len(data))
	buf = append(buf, flags)
	buf = append(buf, (maxSegments<<4)|maxAPDU)
	buf = append(buf, invokeID)
	if segmented {
		buf = append(buf, sequenceNumber, windowSize)
	}
	buf = append(buf, byte(service))
	buf = append(buf, data...)
	return buf
}

// EncodeUnconfirmedRequest encodes an unconfirmed service request.
func EncodeUnconfirmedRequest(service UnconfirmedServiceChoice, data []byte) []byte {
	buf := make([]byte, 0, 2+len(data))
	buf = append(buf, byte(TypeUnconfirmedRequest), byte(service))
	buf = append(buf, data...)
	return buf
}

// EncodeSimpleAck encodes a Simple-ACK for the given invoke ID/service.
func EncodeSimpleAck(invokeID uint8, service ConfirmedServiceChoice) []byte {
	return []byte{byte(TypeSimpleAck), invokeID, byte(service)}
}

// EncodeComplexAck encodes a (possibly segmented) Complex-ACK.
func EncodeComplexAck(invokeID uint8, service ConfirmedServiceChoice, data []byte, segmented, moreFollows bool, sequenceNumber, windowSize uint8) []byte {
	flags := byte(TypeComplexAck)
	if segmented {
		flags |= 0x08
	}
	if moreFollows {
		flags |= 0x04
	}
	buf := make([]byte, 0, 4+len(data))
	buf = append(buf, flags, invokeID)
	if segmented {
		buf = append(buf, sequenceNumber, windowSize)
	}
	buf = append(buf, byte(service))
	buf = append(buf, data...)
	return buf
}

// EncodeSegmentAck encodes a Segment-ACK.
func EncodeSegmentAck(invokeID uint8, negativeAck, server bool, sequenceNumber, actualWindowSize uint8) []byte {
	flags := byte(TypeSegmentAck)
	if negativeAck {
		flags |= 0x02
	}
	if server {
		flags |= 0x01
	}
	return []byte{flags, invokeID, sequenceNumber, actualWindowSize}
}

// EncodeError encodes an Error PDU.
func EncodeError(invokeID uint8, service ConfirmedServiceChoice, errorClass, errorCode uint8) []byte {
	return []byte{byte(TypeError), invokeID, byte(service), errorClass, errorCode}
}

// EncodeReject encodes a Reject PDU.
func EncodeReject(invokeID, reason uint8) []byte {
	return []byte{byte(TypeReject), invokeID, reason}
}

// EncodeAbort encodes an Abort PDU.
func EncodeAbort(invokeID, reason uint8, server bool) []byte {
	flags := byte(TypeAbort)
	if server {
		flags |= 0x01
	}
	return []byte{flags, invokeID, reason}
}

// Decode dispatches on the PDU type nibble and decodes the full envelope.
func Decode(data []byte) (*PDU, error) {
	if len(data) < 1 {
		return nil, ErrTooShort
	}
	switch PDUType(data[0] & 0xF0) {
	case TypeConfirmedRequest:
		return decodeConfirmedRequest(data)
	case TypeUnconfirmedRequest:
		return decodeUnconfirmedRequest(data)
	case TypeSimpleAck:
		return decodeSimpleAck(data)
	case TypeComplexAck:
		return decodeComplexAck(data)
	case TypeSegmentAck:
		return decodeSegmentAck(data)
	case TypeError:
		return decodeError(data)
	case TypeReject:
		return decodeReject(data)
	case TypeAbort:
		return decodeAbort(data)
	default:
		return nil, fmt.Errorf("%w: %#02x", ErrUnknownType, data[0]&0xF0)
	}
}

func decodeConfirmedRequest(data []byte) (*PDU, error) {
	if len(data) < 4 {
		return nil, ErrTooShort
	}
	flags := data[0]
	p := &PDU{
		Type:                      TypeConfirmedRequest,
		Segmented:                 flags&0x08 != 0,
		MoreFollows:               flags&0x04 != 0,
		SegmentedResponseAccepted: flags&0x02 != 0,
		MaxSegments:               data[1] >> 4,
		MaxAPDU:                   data[1] & 0x0F,
		InvokeID:                  data[2],
	}
	offset := 3
	if p.Segmented {
		if len(data) < offset+2 {
			return nil, ErrInvalidAPDU
		}
		p.SequenceNumber = data[offset]
		p.ProposedWindowSize = data[offset+1]
		offset += 2
	}
	if len(data) < offset+1 {
		return nil, ErrInvalidAPDU
	}
	p.ConfirmedService = ConfirmedServiceChoice(data[offset])
	offset++
	p.Data = data[offset:]
	return p, nil
}

func decodeUnconfirmedRequest(data []byte) (*PDU, error) {
	if len(data) < 2 {
		return nil, ErrTooShort
	}
	return &PDU{Type: TypeUnconfirmedRequest, UnconfirmedService: UnconfirmedServiceChoice(data[1]), Data: data[2:]}, nil
}

func decodeSimpleAck(data []byte) (*PDU, error) {
	if len(data) < 3 {
		return nil, ErrTooShort
	}
	return &PDU{Type: TypeSimpleAck, InvokeID: data[1], ConfirmedService: ConfirmedServiceChoice(data[2])}, nil
}

func decodeComplexAck(data []byte) (*PDU, error) {
	if len(data) < 3 {
		return nil, ErrTooShort
	}
	flags := data[0]
	p := &PDU{
		Type:        TypeComplexAck,
		Segmented:   flags&0x08 != 0,
		MoreFollows: flags&0x04 != 0,
		InvokeID:    data[1],
	}
	offset := 2
	if p.Segmented {
		if len(data) < offset+2 {
			return nil, ErrInvalidAPDU
		}
		p.SequenceNumber = data[offset]
		p.ProposedWindowSize = data[offset+1]
		offset += 2
	}
	if len(data) < offset+1 {
		return nil, ErrInvalidAPDU
	}
	p.ConfirmedService = ConfirmedServiceChoice(data[offset])
	offset++
	p.Data = data[offset:]
	return p, nil
}

func decodeSegmentAck(data []byte) (*PDU, error) {
	if len(data) < 4 {
		return nil, ErrTooShort
	}
	flags := data[0]
	return &PDU{
		Type:           TypeSegmentAck,
		MoreFollows:    flags&0x02 != 0, // reused as "negative ack" bit for segment-ack
		Server:         flags&0x01 != 0,
		InvokeID:       data[1],
		SequenceNumber: data[2],
		ProposedWindowSize: data[3],
	}, nil
}

func decodeError(data []byte) (*PDU, error) {
	if len(data) < 3 {
		return nil, ErrTooShort
	}
	p := &PDU{Type: TypeError, InvokeID: data[1], ConfirmedService: ConfirmedServiceChoice(data[2])}
	if len(data) >= 5 {
		p.ErrorClass = data[3]
		p.ErrorCode = data[4]
	}
	p.Data = data[3:]
	return p, nil
}

func decodeReject(data []byte) (*PDU, error) {
	if len(data) < 3 {
		return nil, ErrTooShort
	}
	return &PDU{Type: TypeReject, InvokeID: data[1], Reason: data[2]}, nil
}

func decodeAbort(data []byte) (*PDU, error) {
	if len(data) < 3 {
		return nil, ErrTooShort
	}
	flags := data[0]
	return &PDU{Type: TypeAbort, Server: flags&0x01 != 0, InvokeID: data[1], Reason: data[2]}, nil
}
