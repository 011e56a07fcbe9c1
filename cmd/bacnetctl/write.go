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
	"github.com/edgeo/bacnetstack/tlv"
)

var (
	writeDevice   string
	writeObject   string
	writeProp     uint32
	writeValue    string
	writePriority uint8
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a property on a BACnet device",
	Long: `Write sends a WriteProperty request with the given value.

Example:
  bacnetctl write --device 192.0.2.10:47808 -O 1:1 -p 85 -V 75.5`,
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVarP(&writeDevice, "device", "d", "", "device address (host:port)")
	writeCmd.Flags().StringVarP(&writeObject, "object", "O", "", "object identifier (type:instance)")
	writeCmd.Flags().Uint32VarP(&writeProp, "property", "p", 85, "property identifier (default 85 = present-value)")
	writeCmd.Flags().StringVarP(&writeValue, "value", "V", "", "value to write")
	writeCmd.Flags().Uint8Var(&writePriority, "priority", 0, "write priority 1-16 (0 = omit)")
	writeCmd.MarkFlagRequired("device")
	writeCmd.MarkFlagRequired("object")
	writeCmd.MarkFlagRequired("value")
}

func runWrite(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dest, err := parseHostMAC(writeDevice)
	if err != nil {
		return err
	}
	obj, err := parseObjectID(writeObject)
	if err != nil {
		return err
	}

	port, err := openPort(ctx)
	if err != nil {
		return err
	}
	defer port.Close()

	req := apdu.WritePropertyRequest{
		ObjectID: obj,
		Property: writeProp,
		Value:    []tlv.Value{parseValue(writeValue)},
	}
	if writePriority != 0 {
		p := writePriority
		req.Priority = &p
	}

	const invokeID = 1
	reqData := apdu.EncodeWritePropertyRequest(req)
	apduBytes := apdu.EncodeConfirmedRequest(invokeID, apdu.ServiceWriteProperty, reqData, 0, unsegmentedMaxAPDUNibble, false, false, false, 0, 0)
	frame, err := encodeUnicast(apduBytes)
	if err != nil {
		return err
	}
	if err := port.Send(ctx, dest, frame); err != nil {
		return fmt.Errorf("send write-property: %w", err)
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
		case apdu.TypeSimpleAck:
			fmt.Println("write accepted")
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
