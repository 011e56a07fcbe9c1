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
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo/bacnetstack/apdu"
	"github.com/edgeo/bacnetstack/npdu"
)

var (
	watchDevice   string
	watchObject   string
	watchLifetime uint32
	watchConfirmed bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to COV notifications for an object and print updates",
	Long: `Watch subscribes for change-of-value notifications on an object and
prints each notification as it arrives until interrupted.

Example:
  bacnetctl watch --device 192.0.2.10:47808 -O 0:1`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchDevice, "device", "d", "", "device address (host:port)")
	watchCmd.Flags().StringVarP(&watchObject, "object", "O", "", "object identifier (type:instance)")
	watchCmd.Flags().Uint32Var(&watchLifetime, "lifetime", 0, "subscription lifetime in seconds (0 = indefinite)")
	watchCmd.Flags().BoolVar(&watchConfirmed, "confirmed", false, "request confirmed notifications")
	watchCmd.MarkFlagRequired("device")
	watchCmd.MarkFlagRequired("object")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dest, err := parseHostMAC(watchDevice)
	if err != nil {
		return err
	}
	obj, err := parseObjectID(watchObject)
	if err != nil {
		return err
	}

	port, err := openPort(ctx)
	if err != nil {
		return err
	}
	defer port.Close()

	sub := apdu.SubscribeCOVRequest{SubscriberProcessID: 1, ObjectID: obj, IssueConfirmed: &watchConfirmed}
	if watchLifetime > 0 {
		life := watchLifetime
		sub.Lifetime = &life
	}

	subCtx, subCancel := context.WithTimeout(ctx, timeout)
	defer subCancel()

	const invokeID = 1
	reqData := apdu.EncodeSubscribeCOV(sub)
	apduBytes := apdu.EncodeConfirmedRequest(invokeID, apdu.ServiceSubscribeCOV, reqData, 0, unsegmentedMaxAPDUNibble, false, false, false, 0, 0)
	frame, err := encodeUnicast(apduBytes)
	if err != nil {
		return err
	}
	if err := port.Send(subCtx, dest, frame); err != nil {
		return fmt.Errorf("send subscribe-cov: %w", err)
	}
	if err := awaitSimpleAck(subCtx, port, invokeID); err != nil {
		return fmt.Errorf("subscription rejected: %w", err)
	}

	fmt.Println("Subscribed. Waiting for notifications (Ctrl-C to stop)...")
	for {
		data, _, err := port.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		n, _, err := npdu.Decode(data)
		if err != nil || n.IsNetworkMessage() {
			continue
		}
		pdu, err := apdu.Decode(n.Payload)
		if err != nil {
			continue
		}

		var notifData []byte
		switch {
		case pdu.Type == apdu.TypeConfirmedRequest && pdu.ConfirmedService == apdu.ServiceConfirmedCOVNotification:
			notifData = pdu.Data
			ack := apdu.EncodeSimpleAck(pdu.InvokeID, apdu.ServiceConfirmedCOVNotification)
			ackFrame, err := encodeUnicast(ack)
			if err == nil {
				port.Send(ctx, dest, ackFrame)
			}
		case pdu.Type == apdu.TypeUnconfirmedRequest && pdu.UnconfirmedService == apdu.ServiceUnconfirmedCOVNotification:
			notifData = pdu.Data
		default:
			continue
		}

		notif, err := apdu.DecodeCOVNotification(notifData)
		if err != nil {
			continue
		}
		printNotification(notif)
	}
}

func printNotification(n apdu.COVNotification) {
	fmt.Printf("[%s] object %d:%d time-remaining=%d\n", time.Now().Format(time.RFC3339), n.MonitoredObjectID.Type, n.MonitoredObjectID.Instance, n.TimeRemaining)
	for _, pv := range n.Values {
		for _, v := range pv.Value {
			fmt.Printf("  property %d = %s\n", pv.Property, formatValue(v))
		}
	}
}

// awaitSimpleAck blocks until a Simple-ACK or error/reject/abort for
// invokeID arrives, returning nil only for an outright Simple-ACK.
func awaitSimpleAck(ctx context.Context, port interface {
	Receive(context.Context) ([]byte, []byte, error)
}, invokeID uint8) error {
	for {
		data, _, err := port.Receive(ctx)
		if err != nil {
			return err
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
			return nil
		case apdu.TypeError:
			return fmt.Errorf("error class=%d code=%d", pdu.ErrorClass, pdu.ErrorCode)
		case apdu.TypeReject:
			return fmt.Errorf("rejected, reason=%d", pdu.Reason)
		case apdu.TypeAbort:
			return fmt.Errorf("aborted, reason=%d", pdu.Reason)
		}
	}
}
