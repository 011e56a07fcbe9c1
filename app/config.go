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

// Package app wires the protocol packages (tlv, npdu, apdu, tsm,
// transport, cov, event, objdb, sc) into a runnable BACnet device:
// configuration loading, the object database, the router and device
// caches, and the COV/event dispatch glue.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RouterPortConfig describes one local data-link binding a router
// forwards between (§6 "router_ports").
type RouterPortConfig struct {
	PortID    uint8  `mapstructure:"port_id"`
	Network   uint16 `mapstructure:"network"`
	Transport string `mapstructure:"transport"` // "bip4", "bip6", "ethernet", "sc"
	Bind      string `mapstructure:"bind"`
}

// SCTLSConfig carries the Secure Connect mutual-TLS material. Paths only
// are held here; certificates and keys are loaded at connection time so
// they never pass through a logger.
type SCTLSConfig struct {
	CA             string `mapstructure:"ca"`
	Cert           string `mapstructure:"cert"`
	Key            string `mapstructure:"key"`
	KeyPassword    string `mapstructure:"key_password"`
	AllowPlaintext bool   `mapstructure:"allow_plaintext"`
}

// SCConfig is the Annex AB Secure Connect transport configuration.
type SCConfig struct {
	PrimaryURI          string        `mapstructure:"primary_uri"`
	SecondaryURI        string        `mapstructure:"secondary_uri"`
	TLS                 SCTLSConfig   `mapstructure:"tls"`
	HeartbeatIntervalS  int           `mapstructure:"heartbeat_interval_s"`
	ReconnectMinDelayS  int           `mapstructure:"reconnect_min_delay_s"`
	ReconnectMaxDelayS  int           `mapstructure:"reconnect_max_delay_s"`
}

// Config is the complete configuration schema from spec §6, loaded by
// LoadConfig from an optional config file and BACNET_-prefixed
// environment variables, the environment taking priority. LoadConfig binds
// no command-line flags, and an environment variable only applies to a
// key that has a default in setDefaults or appears in the config file.
type Config struct {
	InstanceNumber uint32 `mapstructure:"instance_number"`
	NetworkNumber  uint16 `mapstructure:"network_number"`

	APDUTimeoutMS int `mapstructure:"apdu_timeout_ms"`
	APDURetries   int `mapstructure:"apdu_retries"`
	MaxSegments   int `mapstructure:"max_segments"`
	MaxAPDULength int `mapstructure:"max_apdu_length"`

	BBMDAddress string `mapstructure:"bbmd_address"`
	BBMDTTL     int    `mapstructure:"bbmd_ttl"`

	RouterPorts []RouterPortConfig `mapstructure:"router_ports"`

	SC SCConfig `mapstructure:"sc"`
}

// DefaultConfig returns the configuration baseline applied before any
// file, environment, or flag overrides, mirroring the teacher's
// defaultOptions() pattern in options.go.
func DefaultConfig() Config {
	return Config{
		InstanceNumber: 0xFFFFFFFF,
		NetworkNumber:  0,
		APDUTimeoutMS:  3000,
		APDURetries:    3,
		MaxSegments:    8,
		MaxAPDULength:  1476,
		BBMDTTL:        60,
		SC: SCConfig{
			HeartbeatIntervalS: 300,
			ReconnectMinDelayS: 1,
			ReconnectMaxDelayS: 60,
		},
	}
}

// LoadConfig reads configPath (if non-empty) plus BACNET_-prefixed
// environment variables into a Config seeded with DefaultConfig.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("app: reading config: %w", err)
		}
	}

	v.SetEnvPrefix("BACNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("app: unmarshalling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("instance_number", cfg.InstanceNumber)
	v.SetDefault("network_number", cfg.NetworkNumber)
	v.SetDefault("apdu_timeout_ms", cfg.APDUTimeoutMS)
	v.SetDefault("apdu_retries", cfg.APDURetries)
	v.SetDefault("max_segments", cfg.MaxSegments)
	v.SetDefault("max_apdu_length", cfg.MaxAPDULength)
	v.SetDefault("bbmd_ttl", cfg.BBMDTTL)
	v.SetDefault("sc.heartbeat_interval_s", cfg.SC.HeartbeatIntervalS)
	v.SetDefault("sc.reconnect_min_delay_s", cfg.SC.ReconnectMinDelayS)
	v.SetDefault("sc.reconnect_max_delay_s", cfg.SC.ReconnectMaxDelayS)
}

// APDUTimeout returns the configured APDU timeout as a time.Duration.
func (c Config) APDUTimeout() time.Duration {
	return time.Duration(c.APDUTimeoutMS) * time.Millisecond
}
