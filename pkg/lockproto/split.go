// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import "bytes"

var (
	header  = []byte{HeaderByte0, HeaderByte1}
	trailer = []byte{TrailerByte0, TrailerByte1}
)

// SplitFrames cuts one read into the frames it contains. A frame whose
// length byte lands on a trailer is taken at that length. A frame with a
// bad length runs to the next valid header, or failing that to the next
// trailer. Bytes ahead of the first header come back as their own piece so
// they can be reported as noise. The pieces share buf's backing array.
func SplitFrames(buf []byte) [][]byte {
	var pieces [][]byte
	for len(buf) > 0 {
		start := bytes.Index(buf, header)
		if start < 0 {
			return append(pieces, buf)
		}
		if start > 0 {
			pieces = append(pieces, buf[:start])
			buf = buf[start:]
		}
		n := frameExtent(buf)
		pieces = append(pieces, buf[:n])
		buf = buf[n:]
	}
	return pieces
}

// frameExtent returns the size of the piece at the start of buf, which
// begins with a header
func frameExtent(buf []byte) int {
	if n, ok := declaredExtent(buf); ok {
		return n
	}
	for k := 1; k+len(header) <= len(buf); k++ {
		if bytes.HasPrefix(buf[k:], header) {
			if _, ok := declaredExtent(buf[k:]); ok {
				return k
			}
		}
	}
	if i := bytes.Index(buf[offsetLength:], trailer); i >= 0 {
		return offsetLength + i + len(trailer)
	}
	return len(buf)
}

// declaredExtent checks that the length byte points at a trailer
func declaredExtent(buf []byte) (int, bool) {
	if len(buf) <= offsetLength {
		return 0, false
	}
	n := int(buf[offsetLength])
	if n < FrameOverhead || n > len(buf) {
		return 0, false
	}
	return n, bytes.Equal(buf[n-len(trailer):n], trailer)
}
