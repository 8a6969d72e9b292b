/*
NAME
  vag.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package vag writes the 48-byte VAG/VAGi header Sony tools wrap around raw
// SPU-ADPCM sample data: mono streams get "VAGp", interleaved multi-channel
// streams get "VAGi" with a non-zero interleave field.
package vag

import "strings"

// HeaderSize is the fixed size in bytes of a VAG/VAGi header.
const HeaderSize = 0x30

// version is the fixed VAG format version byte this encoder emits.
const version = 0x20

// Header describes the fields callers provide; WriteHeader fills in the
// fixed layout from them.
type Header struct {
	Interleaved    bool
	Interleave     uint32 // Bytes per channel per interleave period; VAGi only.
	SizePerChannel uint32 // Bytes of SPU data for one channel.
	SampleRate     uint32
	LoopPoint      int    // Loop start in samples; negative when the stream has none.
	Channels       uint16
	Name           string // Truncated/padded to 16 bytes, conventionally the output file's basename.
}

// WriteHeader fills dst (which must be at least HeaderSize bytes) with a
// VAG or VAGi header built from h.
func WriteHeader(dst []byte, h Header) {
	if len(dst) < HeaderSize {
		panic("vag: destination buffer too small")
	}
	for i := range dst[:HeaderSize] {
		dst[i] = 0
	}

	dst[0x00] = 'V'
	dst[0x01] = 'A'
	dst[0x02] = 'G'
	if h.Interleaved {
		dst[0x03] = 'i'
	} else {
		dst[0x03] = 'p'
	}

	dst[0x04] = 0x00
	dst[0x05] = 0x00
	dst[0x06] = 0x00
	dst[0x07] = version

	if h.Interleaved {
		dst[0x08] = byte(h.Interleave)
		dst[0x09] = byte(h.Interleave >> 8)
		dst[0x0a] = byte(h.Interleave >> 16)
		dst[0x0b] = byte(h.Interleave >> 24)
	}

	dst[0x0c] = byte(h.SizePerChannel >> 24)
	dst[0x0d] = byte(h.SizePerChannel >> 16)
	dst[0x0e] = byte(h.SizePerChannel >> 8)
	dst[0x0f] = byte(h.SizePerChannel)

	dst[0x10] = byte(h.SampleRate >> 24)
	dst[0x11] = byte(h.SampleRate >> 16)
	dst[0x12] = byte(h.SampleRate >> 8)
	dst[0x13] = byte(h.SampleRate)

	if h.LoopPoint >= 0 {
		dst[0x14] = byte(uint32(h.LoopPoint) >> 24)
		dst[0x15] = byte(uint32(h.LoopPoint) >> 16)
		dst[0x16] = byte(uint32(h.LoopPoint) >> 8)
		dst[0x17] = byte(uint32(h.LoopPoint))
	}

	dst[0x1e] = byte(h.Channels)
	dst[0x1f] = byte(h.Channels >> 8)

	name := basename(h.Name)
	if len(name) > 16 {
		name = name[:16]
	}
	copy(dst[0x20:0x30], name)
}

// basename strips any leading path components, accepting either slash
// style so Windows-authored paths name their samples correctly.
func basename(path string) string {
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// WriteInterleavedHeader writes a VAGi header, then pads dst so the header
// occupies a whole multiple of alignment bytes and the interleaved channel
// data begins on an aligned boundary.
func WriteInterleavedHeader(dst []byte, h Header, alignment int) int {
	h.Interleaved = true
	WriteHeader(dst, h)
	size := HeaderSize
	if alignment > 0 {
		size = ((HeaderSize + alignment - 1) / alignment) * alignment
	}
	for i := HeaderSize; i < size; i++ {
		dst[i] = 0
	}
	return size
}
