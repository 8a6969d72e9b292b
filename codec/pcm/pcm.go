/*
NAME
  pcm.go

DESCRIPTION
  pcm.go contains functions for conditioning PCM audio ahead of the
  console encoders: integer-ratio decimation down to the XA and SPU
  target rates, and stereo to mono reduction for single-voice samples.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pcm prepares PCM audio for the PS1 audio encoders. Sources
// deliver whatever rate and channel layout they natively produce; the
// conversions here bring that down to the fixed rates the XA sector
// formats accept and the conventional SPU sample rates, all in the
// S16_LE layout the ADPCM core consumes.
package pcm

import (
	"encoding/binary"
	"fmt"
)

// SampleFormat is the format that a PCM Buffer's samples can be in.
type SampleFormat int

// Used to represent an unknown format.
const (
	Unknown SampleFormat = -1
)

// Sample formats that we use: what the encoders eat, and the wider
// format capture hardware commonly insists on.
const (
	S16_LE SampleFormat = iota
	S32_LE
)

// Target rates of the console formats. XA sectors encode at exactly one
// of the two XA rates; SPU samples conventionally use CD rate or an
// integer division of it.
const (
	RateXASingle = 18900 // XA single-rate (level C) audio.
	RateXADouble = 37800 // XA double-rate (level B) audio.
	RateSPU      = 44100 // Conventional SPU sample rate.
)

// BufferFormat contains the format for a PCM Buffer.
type BufferFormat struct {
	SFormat  SampleFormat
	Rate     uint
	Channels uint
}

// Buffer contains a buffer of PCM data and the format that it is in.
type Buffer struct {
	Format BufferFormat
	Data   []byte
}

// sampleBytes returns the byte width of one sample in format f.
func sampleBytes(f SampleFormat) (int, error) {
	switch f {
	case S16_LE:
		return 2, nil
	case S32_LE:
		return 4, nil
	default:
		return 0, fmt.Errorf("unhandled sample format: %v", f)
	}
}

// DataSize returns the size in bytes of period seconds of PCM audio with
// the given attributes.
func DataSize(rate, channels, bitDepth uint, period float64) int {
	return int(float64(channels) * float64(rate) * float64(bitDepth/8) * period)
}

// DecimationRatio returns how many source frames collapse into one
// output frame when converting from rate to target. Only integer-ratio
// decimation is supported: the console rates are fixed, so sources are
// expected to capture at a multiple of the target (e.g. 75600 Hz for
// RateXADouble, 88200 Hz for RateSPU).
func DecimationRatio(rate, target uint) (int, error) {
	if target == 0 {
		return 0, fmt.Errorf("cannot convert to 0 Hz")
	}
	if rate < target {
		return 0, fmt.Errorf("cannot upsample %d Hz to %d Hz", rate, target)
	}
	if rate%target != 0 {
		return 0, fmt.Errorf("cannot decimate %d Hz to %d Hz: not an integer ratio", rate, target)
	}
	return int(rate / target), nil
}

// Decimate converts c to the target rate by averaging each run of
// ratio frames, channel by channel. Trailing frames short of a whole
// run are dropped. The rate must divide c's rate exactly, per
// DecimationRatio.
func Decimate(c Buffer, rate uint) (Buffer, error) {
	if c.Format.Rate == rate {
		return c, nil
	}

	ratio, err := DecimationRatio(c.Format.Rate, rate)
	if err != nil {
		return Buffer{}, err
	}
	width, err := sampleBytes(c.Format.SFormat)
	if err != nil {
		return Buffer{}, err
	}

	channels := int(c.Format.Channels)
	frameLen := width * channels
	outFrames := len(c.Data) / (frameLen * ratio)

	out := make([]byte, outFrames*frameLen)
	for i := 0; i < outFrames; i++ {
		for ch := 0; ch < channels; ch++ {
			var sum int64
			for j := 0; j < ratio; j++ {
				off := (i*ratio+j)*frameLen + ch*width
				switch c.Format.SFormat {
				case S32_LE:
					sum += int64(int32(binary.LittleEndian.Uint32(c.Data[off:])))
				default:
					sum += int64(int16(binary.LittleEndian.Uint16(c.Data[off:])))
				}
			}
			avg := sum / int64(ratio)
			off := i*frameLen + ch*width
			switch c.Format.SFormat {
			case S32_LE:
				binary.LittleEndian.PutUint32(out[off:], uint32(avg))
			default:
				binary.LittleEndian.PutUint16(out[off:], uint16(avg))
			}
		}
	}

	return Buffer{
		Format: BufferFormat{
			SFormat:  c.Format.SFormat,
			Rate:     rate,
			Channels: c.Format.Channels,
		},
		Data: out,
	}, nil
}

// StereoToMono reduces a stereo buffer to mono by keeping the left
// channel, the convention for single-voice SPU samples cut from stereo
// masters.
func StereoToMono(c Buffer) (Buffer, error) {
	if c.Format.Channels == 1 {
		return c, nil
	}
	if c.Format.Channels != 2 {
		return Buffer{}, fmt.Errorf("audio is not stereo or mono, it has %v channels", c.Format.Channels)
	}

	width, err := sampleBytes(c.Format.SFormat)
	if err != nil {
		return Buffer{}, err
	}

	frames := len(c.Data) / (2 * width)
	mono := make([]byte, frames*width)
	for i := 0; i < frames; i++ {
		copy(mono[i*width:(i+1)*width], c.Data[i*2*width:])
	}

	return Buffer{
		Format: BufferFormat{
			SFormat:  c.Format.SFormat,
			Rate:     c.Format.Rate,
			Channels: 1,
		},
		Data: mono,
	}, nil
}

// String returns the string representation of a SampleFormat.
func (f SampleFormat) String() string {
	switch f {
	case S16_LE:
		return "S16_LE"
	case S32_LE:
		return "S32_LE"
	default:
		return "Unknown"
	}
}
