/*
NAME
  spu.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package spu encodes PCM samples into SPU-ADPCM blocks: 16 bytes each,
// the PS1 sound chip's native sample format, plus the loop-flag state
// machine that primes and terminates a voice's playback.
package spu

import "github.com/ausocean/psxav/codec/adpcm"

// BlockSize is the size in bytes of one SPU-ADPCM block.
const BlockSize = 16

// SamplesPerBlock is the number of PCM samples packed into one block.
const SamplesPerBlock = adpcm.SamplesPerBlock

// Loop flag bits, stored in byte 1 of each block.
const (
	LoopEnd    = 0b001
	LoopRepeat = 0b011
	LoopStart  = 0b100
	// LoopTrap combines LoopEnd and LoopStart: the flag a decoder sees on
	// the dummy block appended to a stream with no declared loop point.
	LoopTrap = LoopEnd | LoopStart
)

// BufferSize returns the number of bytes needed to hold sampleCount samples
// encoded as SPU blocks, not including any trailing dummy block EncodeSimple
// may append.
func BufferSize(sampleCount int) int {
	return ((sampleCount + SamplesPerBlock - 1) / SamplesPerBlock) << 4
}

// Encode encodes sampleCount samples (read from samples with the given
// pitch, supporting interleaved multi-channel sources) into 16-byte SPU
// blocks written to output, and returns the number of bytes written. Flag
// bytes are left zero; loop semantics are applied afterwards by the caller
// (see EncodeSimple).
func Encode(state *adpcm.ChannelState, samples []int16, sampleCount, pitch int, output []byte) int {
	var prebuf [SamplesPerBlock]byte
	n := 0
	for i := 0; i < sampleCount; i += SamplesPerBlock {
		var sl []int16
		if i*pitch < len(samples) {
			sl = samples[i*pitch:]
		}
		buf := output[n : n+BlockSize]
		buf[0] = adpcm.EncodeBlock(state, sl, sampleCount-i, pitch, prebuf[:], 0, 1, adpcm.FilterCountSPU, adpcm.ShiftRange4Bit)
		buf[1] = 0
		for j := 0; j < SamplesPerBlock; j += 2 {
			buf[2+(j>>1)] = (prebuf[j] & 0x0F) | (prebuf[j+1] << 4)
		}
		n += BlockSize
	}
	return n
}

// EncodeSimple encodes an entire single-channel stream with fresh channel
// state and applies the loop-flag state machine: if loopStart is negative,
// the last block gets LoopEnd and a trailing all-zero dummy block tagged
// LoopTrap is appended; otherwise the last block gets LoopRepeat and the
// block containing loopStart gets LoopStart ORed in. output must have room
// for one block beyond BufferSize(sampleCount) to allow for the dummy
// block in the no-loop case.
func EncodeSimple(samples []int16, sampleCount int, output []byte, loopStart int) int {
	var state adpcm.ChannelState
	length := Encode(&state, samples, sampleCount, 1, output)
	if length < BlockSize {
		return length
	}

	last := output[length-BlockSize:]
	if loopStart < 0 {
		last[1] |= LoopEnd

		dummy := output[length : length+BlockSize]
		for i := range dummy {
			dummy[i] = 0
		}
		dummy[1] = LoopTrap
		length += BlockSize
	} else {
		loopOffset := (loopStart / SamplesPerBlock) * BlockSize
		last[1] |= LoopRepeat
		output[loopOffset+1] |= LoopStart
	}

	return length
}

// Options configures the loop-flag state machine applied to a complete
// stream encode.
type Options struct {
	// LoopStart is the loop start offset in samples; negative when the
	// stream does not loop.
	LoopStart int
	// EndFlag marks the final block LoopEnd without appending a trap
	// block, for samples that should stop cleanly at their end.
	EndFlag bool
	// LeadingDummy prepends an all-zero block to prime the decoder's
	// predictor on hardware that does not reset it at voice key-on. The
	// loop offset compensates for the extra block automatically.
	LeadingDummy bool
}

// EncodeStream encodes a complete single-channel stream with fresh channel
// state and applies loop flags per opts. output must have room for
// BufferSize(sampleCount) plus up to two extra blocks (leading dummy and
// trailing trap). It returns the number of bytes written.
func EncodeStream(samples []int16, sampleCount int, output []byte, opts Options) int {
	start := 0
	if opts.LeadingDummy {
		for i := 0; i < BlockSize; i++ {
			output[i] = 0
		}
		start = BlockSize
	}

	var state adpcm.ChannelState
	length := start + Encode(&state, samples, sampleCount, 1, output[start:])
	if length-start < BlockSize {
		return length
	}

	last := output[length-BlockSize:]
	switch {
	case opts.LoopStart >= 0:
		loopOffset := start + (opts.LoopStart/SamplesPerBlock)*BlockSize
		last[1] |= LoopRepeat
		output[loopOffset+1] |= LoopStart
	case opts.EndFlag:
		last[1] |= LoopEnd
	default:
		last[1] |= LoopEnd

		dummy := output[length : length+BlockSize]
		for i := range dummy {
			dummy[i] = 0
		}
		dummy[1] = LoopTrap
		length += BlockSize
	}

	return length
}

// InterleavedEncoder encodes a multi-channel PCM stream into one SPU block
// stream per channel, advancing each channel's ADPCM predictor
// independently even though the source samples are channel-interleaved.
// This supports the SPUI/VAGi container, which stores channels as
// side-by-side block sequences rather than interleaving ADPCM nibbles.
type InterleavedEncoder struct {
	states []adpcm.ChannelState
}

// NewInterleavedEncoder returns an encoder for the given channel count.
func NewInterleavedEncoder(channels int) *InterleavedEncoder {
	return &InterleavedEncoder{states: make([]adpcm.ChannelState, channels)}
}

// Channels returns the number of channels this encoder was built for.
func (e *InterleavedEncoder) Channels() int { return len(e.states) }

// EncodeChunk encodes sampleCount of channel ch's samples from the
// channel-interleaved slice into output, advancing only that channel's
// predictor. Containers that alternate channel runs call this once per
// channel per interleave period.
func (e *InterleavedEncoder) EncodeChunk(samples []int16, sampleCount int, output []byte, ch int) int {
	var sl []int16
	if ch < len(samples) {
		sl = samples[ch:]
	}
	return Encode(&e.states[ch], sl, sampleCount, len(e.states), output)
}

// Encode encodes sampleCount interleaved frames from samples into one
// output buffer per channel, returning the bytes written to each.
func (e *InterleavedEncoder) Encode(samples []int16, sampleCount int, outputs [][]byte) []int {
	if len(outputs) != len(e.states) {
		panic("spu: outputs length does not match channel count")
	}
	lengths := make([]int, len(e.states))
	for ch := range e.states {
		var sl []int16
		if ch < len(samples) {
			sl = samples[ch:]
		}
		lengths[ch] = Encode(&e.states[ch], sl, sampleCount, len(e.states), outputs[ch])
	}
	return lengths
}
