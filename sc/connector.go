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

package sc

import (
	"context"
	"crypto/tls"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectorConfig configures a Hub Connector's dial targets and backoff.
type ConnectorConfig struct {
	PrimaryURI   string
	SecondaryURI string
	TLSConfig    *tls.Config

	LocalVMAC VMAC
	LocalUUID [16]byte

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	MinReconnectDelay time.Duration
	MaxReconnectDelay time.Duration
}

// Connector implements the BACnet/SC Hub Connector role (Annex AB.5.3):
// it maintains a persistent connection to a primary hub URI, falling
// back to a secondary URI after repeated failures, with exponential
// backoff between attempts.
type Connector struct {
	cfg    ConnectorConfig
	logger *slog.Logger
	dialer *websocket.Dialer

	cb Callbacks

	connMu sync.Mutex
	conn   *Conn
}

// NewConnector builds a Hub Connector. Callbacks fire on every
// successful connect/disconnect cycle; cb.OnMessage receives frames
// forwarded from the hub.
func NewConnector(cfg ConnectorConfig, logger *slog.Logger, cb Callbacks) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		cfg:    cfg,
		logger: logger.With("component", "sc.connector"),
		cb:     cb,
		dialer: &websocket.Dialer{
			TLSClientConfig:  cfg.TLSConfig,
			Subprotocols:     []string{"hub.bsc.bacnet.org"},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Run dials and redials the configured hub until ctx is cancelled, with
// exponential backoff after each failed or dropped connection. It dials
// the primary URI; after three failed attempts there it moves to the
// secondary URI (when one is configured) and stays on it until a
// connection ends without error, which sends it back to the primary. A
// connection that drops with an error counts as a failed attempt.
func (c *Connector) Run(ctx context.Context) {
	delay := c.cfg.MinReconnectDelay
	useSecondary := false
	failuresOnPrimary := 0

	for {
		if ctx.Err() != nil {
			return
		}

		uri := c.cfg.PrimaryURI
		if useSecondary && c.cfg.SecondaryURI != "" {
			uri = c.cfg.SecondaryURI
		}

		err := c.connectOnce(ctx, uri)
		if err == nil {
			delay = c.cfg.MinReconnectDelay
			failuresOnPrimary = 0
			useSecondary = false
			continue
		}

		c.logger.Warn("hub connection failed", "uri", uri, "error", err)
		if !useSecondary {
			failuresOnPrimary++
			if failuresOnPrimary >= 3 && c.cfg.SecondaryURI != "" {
				useSecondary = true
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(delay)):
		}
		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d)/2+1))
}

// connectOnce performs one dial-connect-pump cycle and blocks until the
// connection drops or ctx is cancelled.
func (c *Connector) connectOnce(ctx context.Context, uri string) error {
	ws, _, err := c.dialer.DialContext(ctx, uri, nil)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	conn := NewConn(&wsSender{ws: ws}, c.cfg.HeartbeatInterval, c.cfg.HeartbeatTimeout)
	conn.BeginConnect()

	reqPayload := append([]byte(nil), c.cfg.LocalUUID[:]...)
	req := Frame{
		Function:   FuncConnectRequest,
		MessageID:  1,
		OriginVMAC: &c.cfg.LocalVMAC,
		Payload:    reqPayload,
	}
	encoded, err := Encode(req)
	if err != nil {
		ws.Close()
		return err
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		ws.Close()
		return err
	}

	_, data, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return err
	}
	accept, err := Decode(data)
	if err != nil || accept.Function != FuncConnectAccept {
		ws.Close()
		return ErrVMACMismatch
	}

	conn.CompleteConnect(c.cfg.LocalVMAC, [16]byte{})
	c.setConn(conn)
	defer c.setConn(nil)

	conn.SetCallbacks(c.cb)
	if c.cb.OnConnected != nil {
		c.cb.OnConnected()
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			conn.Close(err)
			return err
		}
		f, err := Decode(data)
		if err != nil {
			c.logger.Warn("dropping undecodable frame from hub", "error", err)
			continue
		}
		if err := conn.HandleFrame(f); err != nil {
			c.logger.Warn("frame handling error", "error", err)
		}
		if conn.State() != StateConnected {
			return nil
		}
	}
}

func (c *Connector) setConn(conn *Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}

// Send relays payload to the hub over the currently active connection,
// returning ErrNotConnected if none is established.
func (c *Connector) Send(destVMAC *VMAC, payload []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(c.cfg.LocalVMAC, destVMAC, payload)
}
