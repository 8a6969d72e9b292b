/*
NAME
  spu_test.go

DESCRIPTION
  spu_test.go contains tests for the spu package.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package spu

import (
	"bytes"
	"testing"

	"github.com/ausocean/psxav/codec/adpcm"
)

// TestEncodeSimpleAllZeroNoLoop reproduces the documented all-zero mono SPU
// scenario: 280 samples of silence, no loop, should yield 10 zeroed blocks
// followed by one trailing LoopTrap dummy block, 176 bytes total.
func TestEncodeSimpleAllZeroNoLoop(t *testing.T) {
	const sampleCount = 280
	samples := make([]int16, sampleCount)
	output := make([]byte, BufferSize(sampleCount)+BlockSize)

	length := EncodeSimple(samples, sampleCount, output, -1)
	if length != 176 {
		t.Fatalf("length = %d, want 176", length)
	}

	for b := 0; b < 10; b++ {
		block := output[b*BlockSize : (b+1)*BlockSize]
		if block[0] != 0 {
			t.Errorf("block %d header = 0x%02x, want 0x00", b, block[0])
		}
		for i := 1; i < BlockSize; i++ {
			// The final sample block is flagged loop-end ahead of the trap.
			if b == 9 && i == 1 {
				if block[i] != LoopEnd {
					t.Errorf("final block flag = 0x%02x, want LoopEnd", block[i])
				}
				continue
			}
			if block[i] != 0 {
				t.Errorf("block %d byte %d = 0x%02x, want 0x00", b, i, block[i])
			}
		}
	}

	trailing := output[160:176]
	if trailing[1] != LoopTrap {
		t.Errorf("trailing block flag = 0x%02x, want LoopTrap (0x%02x)", trailing[1], LoopTrap)
	}
	for i, b := range trailing {
		if i == 1 {
			continue
		}
		if b != 0 {
			t.Errorf("trailing block byte %d = 0x%02x, want 0x00", i, b)
		}
	}
}

// TestEncodeSimpleLoop checks that a declared loop point sets LoopStart on
// the containing block and LoopRepeat on the final block, with no trailing
// dummy block appended.
func TestEncodeSimpleLoop(t *testing.T) {
	const sampleCount = 280
	samples := make([]int16, sampleCount)
	output := make([]byte, BufferSize(sampleCount)+BlockSize)

	loopStart := 56 // falls in block index 2.
	length := EncodeSimple(samples, sampleCount, output, loopStart)
	if length != 160 {
		t.Fatalf("length = %d, want 160 (no trailing block for a declared loop)", length)
	}

	loopBlock := output[2*BlockSize : 3*BlockSize]
	if loopBlock[1]&LoopStart == 0 {
		t.Errorf("loop-start block flag = 0x%02x, want LoopStart bit set", loopBlock[1])
	}

	last := output[length-BlockSize : length]
	if last[1] != LoopRepeat {
		t.Errorf("final block flag = 0x%02x, want LoopRepeat (0x%02x)", last[1], LoopRepeat)
	}
}

// TestEncodeStreamLeadingDummyShiftsLoop checks that the priming block
// occupies block 0 and that the loop-start flag lands one block later
// than it would without it.
func TestEncodeStreamLeadingDummyShiftsLoop(t *testing.T) {
	const sampleCount = 84 // Three blocks.
	samples := make([]int16, sampleCount)
	output := make([]byte, BufferSize(sampleCount)+2*BlockSize)

	length := EncodeStream(samples, sampleCount, output, Options{
		LoopStart:    28,
		LeadingDummy: true,
	})
	if length != 4*BlockSize {
		t.Fatalf("length = %d, want %d (dummy plus three blocks, no trap)", length, 4*BlockSize)
	}

	for i := 0; i < BlockSize; i++ {
		if output[i] != 0 {
			t.Fatalf("dummy block byte %d = 0x%02x, want 0x00", i, output[i])
		}
	}
	if output[2*BlockSize+1]&LoopStart == 0 {
		t.Errorf("loop-start flag not on block 2: flag = 0x%02x", output[2*BlockSize+1])
	}
	if output[3*BlockSize+1] != LoopRepeat {
		t.Errorf("final block flag = 0x%02x, want LoopRepeat", output[3*BlockSize+1])
	}
}

// TestEncodeStreamEndFlagOnly checks that the end-flag mode marks the
// final block without appending a trap block.
func TestEncodeStreamEndFlagOnly(t *testing.T) {
	const sampleCount = 84
	samples := make([]int16, sampleCount)
	output := make([]byte, BufferSize(sampleCount)+2*BlockSize)

	length := EncodeStream(samples, sampleCount, output, Options{
		LoopStart: -1,
		EndFlag:   true,
	})
	if length != 3*BlockSize {
		t.Fatalf("length = %d, want %d", length, 3*BlockSize)
	}
	if output[2*BlockSize+1] != LoopEnd {
		t.Errorf("final block flag = 0x%02x, want LoopEnd", output[2*BlockSize+1])
	}
}

// TestInterleavedEncoderAdvancesIndependently checks that each channel in
// an InterleavedEncoder keeps its own predictor state rather than sharing
// one across channels: every channel's blocks must equal those of the same
// channel encoded on its own from fresh state.
func TestInterleavedEncoderAdvancesIndependently(t *testing.T) {
	const frames = SamplesPerBlock
	samples := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		samples[2*i] = 1000
		samples[2*i+1] = -1000
	}

	enc := NewInterleavedEncoder(2)
	outputs := [][]byte{make([]byte, BufferSize(frames)), make([]byte, BufferSize(frames))}
	enc.Encode(samples, frames, outputs)

	for ch := 0; ch < 2; ch++ {
		mono := make([]int16, frames)
		for i := range mono {
			mono[i] = samples[2*i+ch]
		}
		var state adpcm.ChannelState
		want := make([]byte, BufferSize(frames))
		Encode(&state, mono, frames, 1, want)

		if !bytes.Equal(outputs[ch], want) {
			t.Errorf("channel %d blocks = % x, want % x (channel encoded alone from fresh state)", ch, outputs[ch], want)
		}
	}
}
