/*
NAME
  xa.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package xa assembles CD-ROM/XA audio sectors: 18 sound groups of four or
// eight ADPCM-encoded blocks per sector, with header duplication, subheader
// construction and EDC checksumming delegated to codec/cdrom.
package xa

import (
	"fmt"

	"github.com/ausocean/psxav/codec/adpcm"
	"github.com/ausocean/psxav/codec/cdrom"
)

// Format selects the on-disk sector size: XA omits the 16-byte sync and
// header that a CD-image sector would carry, XACD includes it.
type Format int

const (
	FormatXA Format = iota
	FormatXACD
)

// Frequency is one of the two sample rates the XA coding bits can express.
const (
	FreqSingle = 18900
	FreqDouble = 37800
)

// Settings parameterises one XA audio stream: sample format, addressing,
// and output sector size.
type Settings struct {
	Format        Format
	Stereo        bool
	Frequency     int
	BitsPerSample int // 4 or 8
	FileNumber    byte
	ChannelNumber byte
}

// State carries the two ADPCM channel states across successive sectors of
// one stream.
type State struct {
	Left, Right adpcm.ChannelState
}

// BufferSizePerSector returns the number of bytes one XA sector occupies in
// the output buffer for the given format.
func BufferSizePerSector(s Settings) int {
	if s.Format == FormatXA {
		return 2336
	}
	return 2352
}

// SamplesPerSector returns how many PCM frames (stereo pairs count once)
// one XA sector holds.
func SamplesPerSector(s Settings) int {
	base := 224
	if s.BitsPerSample == 8 {
		base = 112
	}
	if s.Stereo {
		base /= 2
	}
	return base * 18
}

// SectorInterleave returns the number of STR sectors occupied by one
// interleave period of this stream, used by the muxer to derive the
// audio:video sector ratio.
func SectorInterleave(s Settings) int {
	interleave := 4
	if s.Stereo {
		interleave = 2
	}
	if s.Frequency == FreqSingle {
		interleave <<= 1
	}
	if s.BitsPerSample == 4 {
		interleave <<= 1
	}
	return interleave
}

// BufferSize returns the number of bytes needed to hold sampleCount frames
// encoded under s, rounded up to a whole number of sectors.
func BufferSize(s Settings, sampleCount int) int {
	pitch := SamplesPerSector(s)
	sectors := (sampleCount + pitch - 1) / pitch
	return sectors * BufferSizePerSector(s)
}

func sliceFrom(s []int16, i int) []int16 {
	if i >= len(s) {
		return nil
	}
	return s[i:]
}

// encodeBlockXA encodes one sound group's worth of ADPCM blocks (four for
// 8-bit samples, eight for 4-bit) into data, a 0x80-byte sound-group slice,
// following the exact byte layout the PS1 XA hardware decoder expects.
func encodeBlockXA(samples []int16, sampleLimit int, data []byte, s Settings, state *State) {
	groupData := data[0x10:]
	if s.BitsPerSample == 4 {
		if s.Stereo {
			data[0] = adpcm.EncodeBlock(&state.Left, samples, sampleLimit, 2, groupData[0x00:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[1] = adpcm.EncodeBlock(&state.Right, sliceFrom(samples, 1), sampleLimit, 2, groupData[0x00:], 4, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[2] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 56), sampleLimit-28, 2, groupData[0x01:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[3] = adpcm.EncodeBlock(&state.Right, sliceFrom(samples, 57), sampleLimit-28, 2, groupData[0x01:], 4, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[8] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 112), sampleLimit-56, 2, groupData[0x02:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[9] = adpcm.EncodeBlock(&state.Right, sliceFrom(samples, 113), sampleLimit-56, 2, groupData[0x02:], 4, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[10] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 168), sampleLimit-84, 2, groupData[0x03:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[11] = adpcm.EncodeBlock(&state.Right, sliceFrom(samples, 169), sampleLimit-84, 2, groupData[0x03:], 4, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
		} else {
			data[0] = adpcm.EncodeBlock(&state.Left, samples, sampleLimit, 1, groupData[0x00:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[1] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 28), sampleLimit-28, 1, groupData[0x00:], 4, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[2] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 56), sampleLimit-56, 1, groupData[0x01:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[3] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 84), sampleLimit-84, 1, groupData[0x01:], 4, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[8] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 112), sampleLimit-112, 1, groupData[0x02:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[9] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 140), sampleLimit-140, 1, groupData[0x02:], 4, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[10] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 168), sampleLimit-168, 1, groupData[0x03:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
			data[11] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 196), sampleLimit-196, 1, groupData[0x03:], 4, 4, adpcm.FilterCountXA, adpcm.ShiftRange4Bit)
		}
		return
	}

	if s.Stereo {
		data[0] = adpcm.EncodeBlock(&state.Left, samples, sampleLimit, 2, groupData[0x00:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange8Bit)
		data[1] = adpcm.EncodeBlock(&state.Right, sliceFrom(samples, 1), sampleLimit, 2, groupData[0x01:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange8Bit)
		data[2] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 56), sampleLimit-28, 2, groupData[0x02:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange8Bit)
		data[3] = adpcm.EncodeBlock(&state.Right, sliceFrom(samples, 57), sampleLimit-28, 2, groupData[0x03:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange8Bit)
	} else {
		data[0] = adpcm.EncodeBlock(&state.Left, samples, sampleLimit, 1, groupData[0x00:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange8Bit)
		data[1] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 28), sampleLimit-28, 1, groupData[0x01:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange8Bit)
		data[2] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 56), sampleLimit-56, 1, groupData[0x02:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange8Bit)
		data[3] = adpcm.EncodeBlock(&state.Left, sliceFrom(samples, 84), sampleLimit-84, 1, groupData[0x03:], 0, 4, adpcm.FilterCountXA, adpcm.ShiftRange8Bit)
	}
}

func initSector(sector []byte, lba int, s Settings) {
	if s.Format == FormatXACD {
		cdrom.InitSector(sector, lba, cdrom.Mode2Form2)
	}

	sector[cdrom.OffsetSubhdr+0] = s.FileNumber
	sector[cdrom.OffsetSubhdr+1] = s.ChannelNumber & cdrom.ChannelMask
	sector[cdrom.OffsetSubhdr+2] = cdrom.SubmodeAudio | cdrom.SubmodeForm2 | cdrom.SubmodeRT
	sector[cdrom.OffsetSubhdr+3] = 0
	if s.Stereo {
		sector[cdrom.OffsetSubhdr+3] |= cdrom.CodingStereo
	} else {
		sector[cdrom.OffsetSubhdr+3] |= cdrom.CodingMono
	}
	if s.Frequency == FreqDouble {
		sector[cdrom.OffsetSubhdr+3] |= cdrom.CodingFreqDouble
	} else {
		sector[cdrom.OffsetSubhdr+3] |= cdrom.CodingFreqSingle
	}
	if s.BitsPerSample == 8 {
		sector[cdrom.OffsetSubhdr+3] |= cdrom.CodingBits8
	} else {
		sector[cdrom.OffsetSubhdr+3] |= cdrom.CodingBits4
	}
	copy(sector[cdrom.OffsetSubhdr+4:cdrom.OffsetSubhdr+8], sector[cdrom.OffsetSubhdr:cdrom.OffsetSubhdr+4])
}

// Encode encodes sampleCount frames (interleaved stereo pairs already
// flattened into samples) starting at the given LBA, appending complete
// sectors to output, and returns the number of bytes written. state is
// mutated so a subsequent call continues the ADPCM predictor seamlessly.
func Encode(s Settings, state *State, samples []int16, sampleCount, lba int, output []byte) int {
	sampleJump := 224
	if s.BitsPerSample == 8 {
		sampleJump = 112
	}
	if s.Stereo {
		sampleCount *= 2
	}

	sectorSize := BufferSizePerSector(s)
	var sector [cdrom.SectorSize]byte
	initNext := true

	i, j := 0, 0
	for ; i < sampleCount || j%18 != 0; i, j = i+sampleJump, j+1 {
		group := j % 18
		blockData := sector[0x18+group*0x80:]

		if initNext {
			initSector(sector[:], lba, s)
			initNext = false
		}

		encodeBlockXA(sliceFrom(samples, i), sampleCount-i, blockData, s, state)

		copy(blockData[4:8], blockData[0:4])
		copy(blockData[12:16], blockData[8:12])

		if (j+1)%18 == 0 {
			cdrom.CalculateChecksums(sector[:], cdrom.Mode2Form2)
			start := (j / 18) * sectorSize
			if start+sectorSize > len(output) {
				panic(fmt.Sprintf("xa: output buffer too small: need %d, have %d", start+sectorSize, len(output)))
			}
			copy(output[start:start+sectorSize], sector[cdrom.SectorSize-sectorSize:])
			initNext = true
			lba++
		}
	}

	return ((j + 17) / 18) * sectorSize
}

// Finalize sets the EOF submode bit on the last sector of output and
// re-duplicates its subheader.
func Finalize(s Settings, output []byte, length int) {
	sectorSize := BufferSizePerSector(s)
	if length < sectorSize {
		return
	}
	last := output[length-sectorSize:]
	subhdrOffset := cdrom.OffsetSubhdr - (cdrom.SectorSize - sectorSize)
	last[subhdrOffset+2] |= cdrom.SubmodeEOF
	copy(last[subhdrOffset+4:subhdrOffset+8], last[subhdrOffset:subhdrOffset+4])
}

// EncodeSimple encodes an entire stream with fresh channel state, useful
// for single-shot conversions (e.g. the `.xa` file output format).
func EncodeSimple(s Settings, samples []int16, sampleCount, lba int, output []byte) int {
	var state State
	length := Encode(s, &state, samples, sampleCount, lba, output)
	Finalize(s, output, length)
	return length
}
