/*
NAME
  adpcm.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package adpcm implements the closed-loop ADPCM core shared by the PS1 XA
// and SPU audio encoders: a fixed-filter predictor, a per-block shift search
// that minimises quantisation error, and the nibble/byte packing the two
// container formats build on.
package adpcm

// SamplesPerBlock is the number of PCM samples compressed into one ADPCM
// block, for both XA sound groups and SPU blocks.
const SamplesPerBlock = 28

// Filter counts and shift ranges used by the two PS1 ADPCM consumers.
const (
	FilterCountXA  = 4 // XA sound data only uses the first four predictor filters.
	FilterCountSPU = 5 // SPU blocks may use all five.

	ShiftRange4Bit = 12 // 4-bit XA samples and all SPU samples.
	ShiftRange8Bit = 8  // 8-bit XA samples.
)

// filterK1 and filterK2 are the five fixed predictor coefficients (fixed
// point, >>6) used by both XA and SPU ADPCM.
var filterK1 = [5]int32{0, 60, 115, 98, 122}
var filterK2 = [5]int32{0, 0, -52, -55, -60}

// ChannelState is the running predictor state for one audio channel. It is
// carried across successive calls to EncodeBlock so that prediction spans
// block boundaries.
type ChannelState struct {
	QErr  int32  // Quantisation error carried into the next block (currently unused, see EncodeBlock).
	MSE   uint64 // Mean squared error of the most recent EncodeBlock call, used to compare candidates.
	Prev1 int32  // Most recently decoded sample.
	Prev2 int32  // Second most recently decoded sample.
}

// sampleAt reads the sample at idx, treating positions at or beyond the
// limit, or beyond the slice itself, as silence. The slice can run short
// of the limit for the interleaved blocks of a stream's final partial
// sector.
func sampleAt(samples []int16, idx, i, sampleLimit int) int32 {
	if i >= sampleLimit || idx >= len(samples) {
		return 0
	}
	return int32(samples[idx])
}

// findMinShift finds the smallest right-shift in [0, shiftRange] for which
// every predicted residual in the block fits the shiftRange-bit quantised
// range, without running the costly full encode, and returns the matching
// block shift (shiftRange minus that right-shift), the value stored in the
// header. A block whose residuals are all zero returns 0: every shift
// reproduces it exactly.
func findMinShift(state *ChannelState, samples []int16, sampleLimit, pitch, filter, shiftRange int) int {
	prev1 := state.Prev1
	prev2 := state.Prev2
	k1 := filterK1[filter]
	k2 := filterK2[filter]

	var sMin, sMax int32
	for i := 0; i < SamplesPerBlock; i++ {
		rawSample := sampleAt(samples, i*pitch, i, sampleLimit)
		predicted := (k1*prev1 + k2*prev2 + (1 << 5)) >> 6
		sample := rawSample - predicted
		if sample < sMin {
			sMin = sample
		}
		if sample > sMax {
			sMax = sample
		}
		prev2 = prev1
		prev1 = rawSample
	}

	if sMin == 0 && sMax == 0 {
		return 0
	}

	rightShift := 0
	for rightShift < shiftRange && (sMax>>rightShift) > (0x7FFF>>shiftRange) {
		rightShift++
	}
	for rightShift < shiftRange && (sMin>>rightShift) < (-0x8000>>shiftRange) {
		rightShift++
	}

	minShift := shiftRange - rightShift
	if minShift < 0 || minShift > shiftRange {
		panic("adpcm: min shift out of range")
	}
	return minShift
}

// attemptToEncode runs one candidate (filter, sampleShift) over the block,
// writing the quantised nibbles/bytes into data and recording the resulting
// mean squared error in outState. outState and instate may be the same
// pointer, in which case the block is committed in place; otherwise instate
// is left untouched so the caller can try further candidates from the same
// starting state.
func attemptToEncode(outState, inState *ChannelState, samples []int16, sampleLimit, pitch int, data []byte, dataShift, dataPitch, filter, sampleShift, shiftRange int) byte {
	sampleMask := byte(uint16(0xFFFF) >> shiftRange)
	nondataMask := ^(sampleMask << dataShift)

	k1 := filterK1[filter]
	k2 := filterK2[filter]
	hdr := byte(sampleShift&0x0F) | byte(filter<<4)

	if outState != inState {
		*outState = *inState
	}
	outState.MSE = 0

	for i := 0; i < SamplesPerBlock; i++ {
		raw := sampleAt(samples, i*pitch, i, sampleLimit)
		sample := raw + outState.QErr
		predicted := (k1*outState.Prev1 + k2*outState.Prev2 + (1 << 5)) >> 6
		sampleEnc := sample - predicted
		sampleEnc <<= sampleShift
		sampleEnc += 1 << (shiftRange - 1)
		sampleEnc >>= shiftRange
		if sampleEnc < (-0x8000 >> shiftRange) {
			sampleEnc = -0x8000 >> shiftRange
		}
		if sampleEnc > (0x7FFF >> shiftRange) {
			sampleEnc = 0x7FFF >> shiftRange
		}
		sampleEnc &= int32(sampleMask)

		sampleDec := int32(int16(int32(sampleEnc&int32(sampleMask)) << shiftRange))
		sampleDec >>= sampleShift
		sampleDec += predicted
		if sampleDec > 0x7FFF {
			sampleDec = 0x7FFF
		}
		if sampleDec < -0x8000 {
			sampleDec = -0x8000
		}
		sampleError := int64(sampleDec) - int64(sample)

		idx := i * dataPitch
		data[idx] = (data[idx] & nondataMask) | (byte(sampleEnc) << dataShift)
		// Dithering (outState.QErr += sampleError) stays disabled: it makes
		// the shift search's error model inaccurate.
		outState.MSE += uint64(sampleError * sampleError)

		outState.Prev2 = outState.Prev1
		outState.Prev1 = sampleDec
	}

	return hdr
}

// EncodeBlock searches every available filter and a small neighbourhood of
// candidate shifts around each filter's minimum shift, committing whichever
// (filter, shift) pair yields the lowest mean squared error. It mutates
// state with the winning candidate's final channel state and writes the
// quantised samples into data, and returns the packed header byte: the
// shift in the low nibble, the filter index in the high nibble.
//
// samples is read with the given pitch (stride), starting at index 0, for
// up to SamplesPerBlock elements; indices at or beyond sampleLimit are
// treated as silence. data is written with dataPitch stride starting at
// dataShift bits into the first byte, letting callers interleave multiple
// channels or sound-group slots into the same buffer.
func EncodeBlock(state *ChannelState, samples []int16, sampleLimit, pitch int, data []byte, dataShift, dataPitch, filterCount, shiftRange int) byte {
	var proposed ChannelState
	bestMSE := uint64(1) << 50
	bestFilter := 0
	bestShift := 0

	for filter := 0; filter < filterCount; filter++ {
		trueMinShift := findMinShift(state, samples, sampleLimit, pitch, filter, shiftRange)

		// The optimal shift can be off the true minimum by 1 in either
		// direction; this does not hold once dithering is reintroduced.
		minShift := trueMinShift - 1
		maxShift := trueMinShift + 1
		if minShift < 0 {
			minShift = 0
		}
		if maxShift > shiftRange {
			maxShift = shiftRange
		}

		for shift := minShift; shift <= maxShift; shift++ {
			attemptToEncode(&proposed, state, samples, sampleLimit, pitch, data, dataShift, dataPitch, filter, shift, shiftRange)
			if proposed.MSE < bestMSE {
				bestMSE = proposed.MSE
				bestFilter = filter
				bestShift = shift
			}
		}
	}

	return attemptToEncode(state, state, samples, sampleLimit, pitch, data, dataShift, dataPitch, bestFilter, bestShift, shiftRange)
}
