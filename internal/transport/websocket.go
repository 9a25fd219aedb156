// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"
)

// PasswordEnv names the environment variable consulted for bridge auth
const PasswordEnv = "FROSTLOCK_PASSWORD"

const (
	bridgeHandshakeTimeout = 10 * time.Second
	bridgeDialTimeout      = 15 * time.Second
)

// BridgeConfig describes a WebSocket serial bridge endpoint
type BridgeConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
	ReadTimeout   time.Duration
}

// header returns the handshake headers, carrying Basic auth when both
// credentials are set
func (c BridgeConfig) header() http.Header {
	req := http.Request{Header: http.Header{}}
	if c.Username != "" && c.Password != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	return req.Header
}

func (c BridgeConfig) dialer(u *url.URL) (*websocket.Dialer, error) {
	d := &websocket.Dialer{HandshakeTimeout: bridgeHandshakeTimeout}
	switch u.Scheme {
	case "ws":
	case "wss":
		d.TLSClientConfig = &tls.Config{InsecureSkipVerify: c.SkipSSLVerify}
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}
	return d, nil
}

// bridgeConn streams the payload of binary WebSocket messages as one
// continuous byte stream. Text and control messages are skipped.
type bridgeConn struct {
	conn    *websocket.Conn
	msg     io.Reader
	writeMu sync.Mutex
}

func (b *bridgeConn) Read(p []byte) (int, error) {
	for {
		if b.msg != nil {
			n, err := b.msg.Read(p)
			if errors.Is(err, io.EOF) {
				b.msg = nil
				err = nil
			}
			if n > 0 || err != nil {
				return n, err
			}
			continue
		}

		kind, r, err := b.conn.NextReader()
		if err != nil {
			return 0, err
		}
		if kind == websocket.BinaryMessage {
			b.msg = r
		}
	}
}

func (b *bridgeConn) Write(p []byte) (int, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (b *bridgeConn) Close() error {
	return b.conn.Close()
}

// OpenWebSocket dials a serial bridge and wraps it as a Channel
func OpenWebSocket(cfg BridgeConfig) (Channel, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	d, err := cfg.dialer(u)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), bridgeDialTimeout)
	defer cancel()

	conn, resp, err := d.DialContext(ctx, u.String(), cfg.header())
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return NewStreamChannel(&bridgeConn{conn: conn}, timeout), nil
}

// GetPassword returns the bridge password from PasswordEnv, or prompts on
// stderr and reads it from stdin
func GetPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	return promptPassword(os.Stdin, os.Stderr)
}

// promptPassword reads without echo from a terminal and falls back to a
// plain line read otherwise
func promptPassword(in *os.File, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	defer fmt.Fprintln(prompt)

	if fd := int(in.Fd()); term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
