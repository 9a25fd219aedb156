// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitBuffered(t *testing.T, ch Channel, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		n, err := ch.Buffered()
		return err == nil && n >= want
	}, time.Second, 5*time.Millisecond)
}

func TestPipeDeliversBytes(t *testing.T) {
	a, b := Pipe(50 * time.Millisecond)
	defer a.Close()
	defer b.Close()

	n, err := a.Write([]byte{0xFF, 0xFF, 0x0B})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	waitBuffered(t, b, 3)

	buf := make([]byte, 16)
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x0B}, buf[:n])

	avail, err := b.Buffered()
	require.NoError(t, err)
	assert.Zero(t, avail)
}

func TestReadTimesOutWithoutData(t *testing.T) {
	a, b := Pipe(30 * time.Millisecond)
	defer a.Close()
	defer b.Close()

	start := time.Now()
	n, err := b.Read(make([]byte, 8))
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestPartialReadsDrainBuffer(t *testing.T) {
	a, b := Pipe(50 * time.Millisecond)
	defer a.Close()
	defer b.Close()

	_, err := a.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	waitBuffered(t, b, 5)

	first := make([]byte, 2)
	n, err := b.Read(first)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, first[:n])

	rest := make([]byte, 8)
	n, err = b.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5}, rest[:n])
}

func TestClosedChannelReportsErrClosed(t *testing.T) {
	a, b := Pipe(20 * time.Millisecond)
	defer b.Close()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "second Close must be a no-op")

	_, err := a.Buffered()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.Write([]byte{1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPeerCloseSurfacesAsError(t *testing.T) {
	a, b := Pipe(20 * time.Millisecond)
	defer b.Close()

	require.NoError(t, a.Close())

	require.Eventually(t, func() bool {
		_, err := b.Buffered()
		return err != nil
	}, time.Second, 5*time.Millisecond)

	_, err := b.Read(make([]byte, 4))
	assert.ErrorIs(t, err, io.EOF)
}

func TestChannelErrorUnwraps(t *testing.T) {
	err := &ChannelError{Op: "write", Err: io.ErrClosedPipe}
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Contains(t, err.Error(), "channel write")
}

func TestReadBuffered(t *testing.T) {
	a, b := Pipe(50 * time.Millisecond)
	defer a.Close()
	defer b.Close()

	got, err := ReadBuffered(b)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = a.Write([]byte{0xFF, 0xFF, 0x0B, 0x01})
	require.NoError(t, err)
	waitBuffered(t, b, 4)

	got, err = ReadBuffered(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x0B, 0x01}, got)

	n, err := b.Buffered()
	require.NoError(t, err)
	assert.Zero(t, n)
}
