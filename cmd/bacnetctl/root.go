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

// Command bacnetctl is a command-line client for exercising a BACnet/IP
// network: device discovery, property read/write, and change-of-value
// watching.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo/bacnetstack/app"
	"github.com/edgeo/bacnetstack/transport/bip4"
)

var (
	cfgFile      string
	localAddr    string
	timeout      time.Duration
	outputFmt    string
	verbose      bool

	logger *slog.Logger
	cfg    app.Config
)

var rootCmd = &cobra.Command{
	Use:   "bacnetctl",
	Short: "A BACnet/IP diagnostic and control CLI",
	Long: `bacnetctl is a command-line tool for communicating with BACnet/IP devices.

It supports device discovery, property read/write operations, and
change-of-value watching for building automation systems.

Examples:
  # Discover devices on the network
  bacnetctl scan

  # Read a property from a device
  bacnetctl read -d 192.0.2.10:47808 -O 0:1 -p 85

  # Write a value to a device
  bacnetctl write -d 192.0.2.10:47808 -O 1:1 -p 85 -V 75.5

  # Watch a device's present-value for changes
  bacnetctl watch -d 192.0.2.10:47808 -O 0:1`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := slog.LevelInfo
		if verbose {
			logLevel = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

		loaded, err := app.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if !cmd.Flags().Changed("timeout") {
			timeout = cfg.APDUTimeout()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml/json/toml, BACNET_ env prefix)")
	rootCmd.PersistentFlags().StringVar(&localAddr, "local", "0.0.0.0:47808", "local BACnet/IP bind address")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Second, "request timeout")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, json, csv)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// openPort opens a BACnet/IP transport bound to localAddr, ready for a
// one-shot command's Send/Receive cycle.
func openPort(ctx context.Context) (*bip4.Port, error) {
	port := bip4.NewPort(localAddr, nil)
	if err := port.Open(ctx); err != nil {
		return nil, fmt.Errorf("open bacnet/ip port on %s: %w", localAddr, err)
	}
	return port, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("bacnetctl version 1.0.0")
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
