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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgeo/bacnetstack/apdu"
	"github.com/edgeo/bacnetstack/npdu"
)

// unsegmentedMaxAPDUNibble selects the 1476-byte max-APDU-length
// encoding (Clause 20.1.2.4, index 5), the largest unsegmented size.
const unsegmentedMaxAPDUNibble = 5

var (
	readDevice string
	readObject string
	readProp   uint32
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a property from a BACnet device",
	Long: `Read sends a ReadProperty request and prints the returned value.

Example:
  bacnetctl read --device 192.0.2.10:47808 -O 0:1 -p 85`,
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVarP(&readDevice, "device", "d", "", "device address (host:port)")
	readCmd.Flags().StringVarP(&readObject, "object", "O", "", "object identifier (type:instance)")
	readCmd.Flags().Uint32VarP(&readProp, "property", "p", 85, "property identifier (default 85 = present-value)")
	readCmd.MarkFlagRequired("device")
	readCmd.MarkFlagRequired("object")
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dest, err := parseHostMAC(readDevice)
	if err != nil {
		return err
	}
	obj, err := parseObjectID(readObject)
	if err != nil {
		return err
	}

	port, err := openPort(ctx)
	if err != nil {
		return err
	}
	defer port.Close()

	const invokeID = 1
	reqData := apdu.EncodeReadPropertyRequest(apdu.ReadPropertyRequest{ObjectID: obj, Property: readProp})
	apduBytes := apdu.EncodeConfirmedRequest(invokeID, apdu.ServiceReadProperty, reqData, 0, unsegmentedMaxAPDUNibble, false, false, false, 0, 0)
	frame, err := encodeUnicast(apduBytes)
	if err != nil {
		return err
	}
	if err := port.Send(ctx, dest, frame); err != nil {
		return fmt.Errorf("send read-property: %w", err)
	}

	for {
		data, _, err := port.Receive(ctx)
		if err != nil {
			return fmt.Errorf("no response: %w", err)
		}
		n, _, err := npdu.Decode(data)
		if err != nil || n.IsNetworkMessage() {
			continue
		}
		pdu, err := apdu.Decode(n.Payload)
		if err != nil || pdu.InvokeID != invokeID {
			continue
		}
		switch pdu.Type {
		case apdu.TypeComplexAck:
			ack, err := apdu.DecodeReadPropertyAck(pdu.Data)
			if err != nil {
				return err
			}
			for _, v := range ack.Value {
				fmt.Println(formatValue(v))
			}
			return nil
		case apdu.TypeError:
			return fmt.Errorf("device returned error class=%d code=%d", pdu.ErrorClass, pdu.ErrorCode)
		case apdu.TypeReject:
			return fmt.Errorf("device rejected request, reason=%d", pdu.Reason)
		case apdu.TypeAbort:
			return fmt.Errorf("device aborted request, reason=%d", pdu.Reason)
		}
	}
}
