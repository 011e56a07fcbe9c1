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
	scanTimeout  time.Duration
	scanLowLimit uint32
	scanHighLimit uint32
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BACnet devices on the network",
	Long: `Scan discovers BACnet devices by broadcasting a Who-Is request and
collecting I-Am responses for the scan window.

Examples:
  # Discover all devices
  bacnetctl scan

  # Discover devices with instance IDs 1-100
  bacnetctl scan --low 1 --high 100`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", 5*time.Second, "discovery window")
	scanCmd.Flags().Uint32Var(&scanLowLimit, "low", 0, "low limit for device instance range (0 = no limit)")
	scanCmd.Flags().Uint32Var(&scanHighLimit, "high", 0, "high limit for device instance range (0 = no limit)")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	port, err := openPort(ctx)
	if err != nil {
		return err
	}
	defer port.Close()

	req := apdu.WhoIsRequest{}
	if scanLowLimit > 0 || scanHighLimit > 0 {
		low, high := scanLowLimit, scanHighLimit
		if high == 0 {
			high = 4194303
		}
		req.DeviceInstanceLow = &low
		req.DeviceInstanceHigh = &high
	}
	payload, err := encodeLocalBroadcast(apdu.EncodeUnconfirmedRequest(apdu.ServiceWhoIs, apdu.EncodeWhoIs(req)))
	if err != nil {
		return err
	}
	if err := port.Broadcast(ctx, payload); err != nil {
		return fmt.Errorf("broadcast who-is: %w", err)
	}

	fmt.Println("Scanning for BACnet devices...")
	var found []apdu.IAmRequest
	for {
		data, src, err := port.Receive(ctx)
		if err != nil {
			break
		}
		n, _, err := npdu.Decode(data)
		if err != nil || n.IsNetworkMessage() {
			continue
		}
		pdu, err := apdu.Decode(n.Payload)
		if err != nil || pdu.Type != apdu.TypeUnconfirmedRequest || pdu.UnconfirmedService != apdu.ServiceIAm {
			continue
		}
		iam, err := apdu.DecodeIAm(pdu.Data)
		if err != nil {
			continue
		}
		found = append(found, iam)
		logger.Debug("received i-am", "device", iam.DeviceID.Instance, "from", fmt.Sprintf("%x", src))
	}

	if len(found) == 0 {
		fmt.Println("No devices found")
		return nil
	}
	switch outputFmt {
	case "json":
		printIAmJSON(found)
	case "csv":
		printIAmCSV(found)
	default:
		printIAmTable(found)
	}
	return nil
}

func printIAmTable(devices []apdu.IAmRequest) {
	fmt.Printf("\n%-12s %-10s %-10s\n", "DEVICE ID", "VENDOR", "MAX APDU")
	fmt.Println("------------ ---------- ----------")
	for _, d := range devices {
		fmt.Printf("%-12d %-10d %-10d\n", d.DeviceID.Instance, d.VendorID, d.MaxAPDULength)
	}
	fmt.Printf("\nFound %d device(s)\n", len(devices))
}

func printIAmCSV(devices []apdu.IAmRequest) {
	fmt.Println("device_id,vendor_id,max_apdu")
	for _, d := range devices {
		fmt.Printf("%d,%d,%d\n", d.DeviceID.Instance, d.VendorID, d.MaxAPDULength)
	}
}

func printIAmJSON(devices []apdu.IAmRequest) {
	fmt.Println("[")
	for i, d := range devices {
		comma := ","
		if i == len(devices)-1 {
			comma = ""
		}
		fmt.Printf(`  {"device_id": %d, "vendor_id": %d, "max_apdu": %d}%s`+"\n", d.DeviceID.Instance, d.VendorID, d.MaxAPDULength, comma)
	}
	fmt.Println("]")
}
