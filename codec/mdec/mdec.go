/*
NAME
  mdec.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mdec encodes raw video frames into the PS1 MDEC chip's BS
// bitstream format: a block-DCT, variable-length-coded format closely
// related to MPEG-1 intra frames but packed and Huffman-coded to match
// what the console's hardware decompressor expects.
package mdec

import (
	"errors"
	"fmt"
)

// Version selects the BS bitstream dialect, which changes how DC
// coefficients are coded.
type Version int

const (
	// Version2 codes every DC coefficient as a raw 10-bit value.
	Version2 Version = iota
	// Version3 codes DC coefficients as a Huffman-coded delta from the
	// previous block of the same plane class.
	Version3
	// Version3DC behaves like Version3, but folds DC deltas outside
	// [-0x80, +0x80] by 0x100 rather than coding them directly, relying on
	// the decoder's modular wraparound of the DC value to land on the
	// correct absolute value with a shorter code.
	Version3DC
)

// byteValue returns the header byte this version is tagged with.
func (v Version) byteValue() byte {
	if v == Version2 {
		return 0x02
	}
	return 0x03
}

// plane class indices into lastDC and the DC Huffman map; block order
// within a macroblock determines which class each of the 6 blocks
// belongs to.
const (
	indexCr = iota
	indexCb
	indexY
)

// blockTypeClass maps a macroblock's running block_type (0..5, Cr Cb Y
// Y Y Y) to its plane class, clamping every Y block to indexY.
func blockTypeClass(blockType int) int {
	if blockType > indexY {
		return indexY
	}
	return blockType
}

// ErrFrameTooLarge is returned by EncodeFrame when no quantization scale
// between 1 and 63 makes the frame fit within maxSize bytes.
var ErrFrameTooLarge = errors.New("mdec: frame does not fit at any quantization scale")

// Header is the 8-byte BS frame header prefixed to every encoded frame:
// an MDEC decompress command (blocks_used word count plus a fixed
// 0x3800 marker) followed by the quantization scale and format version.
type Header struct {
	BlocksUsed uint16
	QuantScale uint16
	Version    Version
}

// Put writes the header's 8-byte wire encoding to dst.
func (h Header) Put(dst []byte) {
	_ = dst[7]
	dst[0] = byte(h.BlocksUsed)
	dst[1] = byte(h.BlocksUsed >> 8)
	dst[2] = 0x00
	dst[3] = 0x38
	dst[4] = byte(h.QuantScale)
	dst[5] = byte(h.QuantScale >> 8)
	dst[6] = h.Version.byteValue()
	dst[7] = 0x00
}

// Frame is one encoded video frame: an 8-byte Header followed by its
// Huffman-coded bitstream Payload, padded so the total demuxed size is a
// multiple of 4 bytes. Muxers slice Payload into fixed-size chunks across
// as many sectors as the frame needs.
type Frame struct {
	Header  Header
	Payload []byte
}

// BytesUsed returns the demuxed size of the frame: header plus padded
// payload, always a multiple of 4. STR sub-chunk headers carry this value.
func (f *Frame) BytesUsed() int {
	return 8 + len(f.Payload)
}

// Bytes returns the header and payload concatenated, the layout a BS
// decoder expects as one contiguous frame buffer.
func (f *Frame) Bytes() []byte {
	out := make([]byte, 8+len(f.Payload))
	f.Header.Put(out)
	copy(out[8:], f.Payload)
	return out
}

// Encoder encodes successive NV21 video frames at a fixed resolution
// into BS bitstream frames, searching for the lowest quantization scale
// that keeps each frame within a caller-supplied size budget.
type Encoder struct {
	version       Version
	width, height int
	blocksX       int
	blocksY       int
	tables        *tables

	blocks [6][]int32 // one [blocksX*blocksY*64] slice per plane position.
	coeffs [6][][64]int32
}

// NewEncoder returns an Encoder for width x height NV21 frames, which
// must both be multiples of 16.
func NewEncoder(version Version, width, height int) (*Encoder, error) {
	if width%16 != 0 || height%16 != 0 {
		return nil, fmt.Errorf("mdec: width and height must be multiples of 16, got %dx%d", width, height)
	}
	bx, by := width/16, height/16
	e := &Encoder{
		version: version,
		width:   width,
		height:  height,
		blocksX: bx,
		blocksY: by,
		tables:  newTables(),
	}
	for i := range e.blocks {
		e.blocks[i] = make([]int32, bx*by*64)
		e.coeffs[i] = make([][64]int32, bx*by)
	}
	return e, nil
}

// extractBlocks splits an NV21 frame (a full-resolution Y plane followed
// by a half-resolution, horizontally-interleaved Cr/Cb plane) into the
// six 8x8, level-shifted DCT input blocks of every 16x16 macroblock, in
// raster order: Cr, Cb, Y top-left, Y top-right, Y bottom-left, Y
// bottom-right.
func (e *Encoder) extractBlocks(frame []byte) {
	pitch := e.width
	y := frame
	c := frame[e.width*e.height:]

	for fy := 0; fy < e.blocksY; fy++ {
		for fx := 0; fx < e.blocksX; fx++ {
			off := 64 * (fy*e.blocksX + fx)
			for by := 0; by < 8; by++ {
				for bx := 0; bx < 8; bx++ {
					k := by*8 + bx
					cx, cy := fx*8+bx, fy*8+by
					lx, ly := fx*16+bx, fy*16+by

					e.blocks[0][off+k] = int32(c[pitch*cy+2*cx+0]) - 128
					e.blocks[1][off+k] = int32(c[pitch*cy+2*cx+1]) - 128
					e.blocks[2][off+k] = int32(y[pitch*(ly+0)+(lx+0)]) - 128
					e.blocks[3][off+k] = int32(y[pitch*(ly+0)+(lx+8)]) - 128
					e.blocks[4][off+k] = int32(y[pitch*(ly+8)+(lx+0)]) - 128
					e.blocks[5][off+k] = int32(y[pitch*(ly+8)+(lx+8)]) - 128
				}
			}
		}
	}
}

// transformBlocks runs the forward DCT over every macroblock position
// once per frame; the quantization-scale search below then requantizes
// the same coefficients repeatedly without redoing the DCT.
func (e *Encoder) transformBlocks() {
	for plane := 0; plane < 6; plane++ {
		for i := 0; i < e.blocksX*e.blocksY; i++ {
			var block [64]int32
			copy(block[:], e.blocks[plane][i*64:i*64+64])
			forwardDCT(block, &e.coeffs[plane][i])
		}
	}
}

// EncodeFrame encodes one NV21 frame (length must be width*height*3/2),
// searching quantization scales 1..63 for the smallest one whose
// Huffman-coded bitstream fits within maxSize bytes. maxSize should
// leave room for the 8-byte header inclusive of itself.
func (e *Encoder) EncodeFrame(frame []byte, maxSize int) (*Frame, error) {
	want := e.width * e.height * 3 / 2
	if len(frame) < want {
		return nil, fmt.Errorf("mdec: frame has %d bytes, want at least %d", len(frame), want)
	}

	e.extractBlocks(frame)
	e.transformBlocks()

	budget := maxSize - 8
	if budget < 0 {
		budget = 0
	}

	for scale := int32(1); scale < 64; scale++ {
		payload, hwordsUsed, ok := e.tryEncode(scale, budget)
		if !ok {
			continue
		}

		// Pad the demuxed size (header included) to a multiple of 4; the
		// MDEC's DMA engine transfers whole words.
		for (8+len(payload))%4 != 0 {
			payload = append(payload, 0)
		}
		if 8+len(payload) > maxSize {
			continue
		}

		// MDEC DMA is usually configured for 32-word chunks, so the
		// decompressed half-word count is rounded up to 64.
		hwordsUsed = (hwordsUsed + 0x3F) &^ 0x3F
		blocksUsed := uint16((hwordsUsed + 1) >> 1)

		return &Frame{
			Header: Header{
				BlocksUsed: blocksUsed,
				QuantScale: uint16(scale),
				Version:    e.version,
			},
			Payload: payload,
		}, nil
	}

	return nil, ErrFrameTooLarge
}

// tryEncode attempts to Huffman-code every macroblock's DCT coefficients
// at the given quantization scale, bailing out as soon as the bitstream
// would exceed budget bytes.
func (e *Encoder) tryEncode(scale int32, budget int) ([]byte, int, bool) {
	w := newBitWriter()
	lastDC := [3]int32{0, 0, 0}
	blockType := 0
	hwordsUsed := 0

	var endOfBlock uint32 = 0x3FF
	if e.version == Version2 {
		endOfBlock = 0x1FF
	}

	// Macroblocks are transmitted in column-major order: the MDEC decodes
	// the frame as a sequence of 16-pixel-wide vertical strips.
	for fx := 0; fx < e.blocksX; fx++ {
		for fy := 0; fy < e.blocksY; fy++ {
			i := fy*e.blocksX + fx
			for plane := 0; plane < 6; plane++ {
				n, ok := e.encodeBlock(w, &e.coeffs[plane][i], scale, blockType, &lastDC)
				if !ok || w.Len() > budget {
					return nil, 0, false
				}
				hwordsUsed += n
				blockType = (blockType + 1) % 6
			}
		}
	}

	w.Put(10, endOfBlock)
	w.Flush()
	if w.Len() > budget {
		return nil, 0, false
	}
	hwordsUsed += 2

	return w.Bytes(), hwordsUsed, true
}

// encodeBlock quantizes one coefficient block and writes its DC and AC
// Huffman codes plus an end-of-block marker, returning the number of
// decompressed half-words (one per non-zero AC coefficient, plus two for
// the DC/EOB pair) counted for MDEC DMA sizing.
func (e *Encoder) encodeBlock(w *bitWriter, block *[64]int32, scale int32, blockType int, lastDC *[3]int32) (int, bool) {
	var q [64]int32
	quantize(*block, scale, &q)

	dc := e.tables.clamp[uint16(q[0])]
	hwords := 0

	if e.version == Version2 {
		w.Put(10, uint32(dc)&0x3FF)
	} else {
		class := blockTypeClass(blockType)
		delta := divRound(int32(dc)-lastDC[class], 4)
		lastDC[class] += delta * 4

		if e.version == Version3DC {
			if delta < -0x80 {
				delta += 0x100
			} else if delta > 0x80 {
				delta -= 0x100
			}
		}

		outword := e.tables.dc[(class<<9)|int(uint32(delta)&0x1FF)]
		w.Put(int(outword>>24), outword&0xFFFFFF)
	}

	zeroes := 0
	for i := 1; i < 64; i++ {
		ac := e.tables.clamp[uint16(q[i])]
		if ac == 0 {
			zeroes++
			continue
		}
		outword := e.tables.ac[(zeroes<<10)|int(uint32(ac)&0x3FF)]
		w.Put(int(outword>>24), outword&0xFFFFFF)
		zeroes = 0
		hwords++
	}

	w.Put(2, 0x2)
	hwords += 2

	return hwords, true
}
