// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the duplex byte channels the controller talks
// through: a serial port, a WebSocket serial bridge, and an in-memory pipe.
package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrClosed is returned by every operation on a closed channel
var ErrClosed = errors.New("channel closed")

// Channel is a duplex byte stream with a way to ask how many received bytes
// are waiting. Read never blocks longer than the channel's read timeout.
type Channel interface {
	io.Reader
	io.Writer
	io.Closer
	// Buffered returns the number of bytes that can be read without waiting
	Buffered() (int, error)
}

// ChannelError wraps an I/O failure on a channel
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// streamChannel adapts a blocking io.ReadWriteCloser into a Channel. A pump
// goroutine moves bytes from the source into an internal buffer so that
// Buffered can answer without blocking.
type streamChannel struct {
	rwc         io.ReadWriteCloser
	readTimeout time.Duration

	mu      sync.Mutex
	buf     []byte
	err     error
	arrived chan struct{}
	closed  bool

	writeMu sync.Mutex
}

// NewStreamChannel wraps rwc. Reads wait at most readTimeout for data.
func NewStreamChannel(rwc io.ReadWriteCloser, readTimeout time.Duration) Channel {
	s := &streamChannel{
		rwc:         rwc,
		readTimeout: readTimeout,
		arrived:     make(chan struct{}, 1),
	}
	go s.pump()
	return s
}

func (s *streamChannel) pump() {
	chunk := make([]byte, 256)
	for {
		n, err := s.rwc.Read(chunk)

		s.mu.Lock()
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil && s.err == nil {
			s.err = err
		}
		stop := s.err != nil || s.closed
		s.mu.Unlock()

		if n > 0 || err != nil {
			select {
			case s.arrived <- struct{}{}:
			default:
			}
		}
		if stop {
			return
		}
	}
}

func (s *streamChannel) Buffered() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.buf) == 0 && s.err != nil {
		return 0, s.err
	}
	return len(s.buf), nil
}

func (s *streamChannel) Read(p []byte) (int, error) {
	deadline := time.NewTimer(s.readTimeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, ErrClosed
		}
		if len(s.buf) > 0 {
			n := copy(p, s.buf)
			s.buf = s.buf[n:]
			s.mu.Unlock()
			return n, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return 0, err
		}
		s.mu.Unlock()

		select {
		case <-s.arrived:
		case <-deadline.C:
			return 0, nil
		}
	}
}

func (s *streamChannel) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.rwc.Write(p)
}

func (s *streamChannel) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.rwc.Close()
}

// ReadBuffered reads exactly what ch reports as buffered. It returns an
// empty slice when nothing is waiting.
func ReadBuffered(ch Channel) ([]byte, error) {
	pending, err := ch.Buffered()
	if err != nil || pending == 0 {
		return nil, err
	}

	buf := make([]byte, pending)
	got := 0
	for got < pending {
		n, err := ch.Read(buf[got:])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		got += n
	}
	return buf[:got], nil
}
