/*
DESCRIPTION
  resample.go adapts a Source to a lower sample rate or channel count by
  running its samples through the pcm package's conversion routines, so
  files recorded at studio rates can feed the fixed-rate XA encoder.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package file

import (
	"github.com/pkg/errors"

	"github.com/ausocean/psxav/codec/pcm"
	"github.com/ausocean/psxav/device"
)

// antiAliasTaps is the kernel length used when a Resampled source is
// built with anti-alias filtering.
const antiAliasTaps = 128

// Resampled wraps a Source, converting its samples from the given format
// to rate (and to mono when toMono is set) as they are pulled through.
type Resampled struct {
	device.Buffer

	src    device.Source
	format pcm.BufferFormat
	rate   uint
	toMono bool
	filter pcm.AudioFilter
	err    error
}

// NewResampled wraps src. from describes src's native sample layout;
// rate is the target. The source rate must be an integer multiple of the
// target, matching the decimating resampler underneath.
func NewResampled(src device.Source, from pcm.BufferFormat, rate uint, toMono bool) (*Resampled, error) {
	if _, err := pcm.DecimationRatio(from.Rate, rate); err != nil {
		return nil, err
	}

	r := &Resampled{src: src, format: from, rate: rate, toMono: toMono}
	r.SetPoll(r.pollConverted)
	if ms, ok := src.LoopPointMS(); ok {
		r.SetLoopPointMS(ms)
	}
	return r, nil
}

// NewResampledAntiAlias is NewResampled with an anti-alias lowpass run
// over the (mono) samples before decimation, cutting the energy above
// the target rate's Nyquist frequency that plain averaging would fold
// back into the encoded audio. The stream must be mono by the time the
// filter runs, so stereo input requires toMono.
func NewResampledAntiAlias(src device.Source, from pcm.BufferFormat, rate uint, toMono bool) (*Resampled, error) {
	if from.Channels != 1 && !toMono {
		return nil, errors.New("anti-alias filtering requires a mono stream; set toMono for stereo input")
	}

	r, err := NewResampled(src, from, rate, toMono)
	if err != nil {
		return nil, err
	}
	if rate != from.Rate {
		monoFormat := from
		monoFormat.Channels = 1
		r.filter, err = pcm.NewAntiAlias(monoFormat, rate, antiAliasTaps)
		if err != nil {
			return nil, errors.Wrap(err, "could not build anti-alias filter")
		}
	}
	return r, nil
}

// Err returns the first conversion error encountered, if any.
func (r *Resampled) Err() error { return r.err }

// pollConverted pulls one chunk from the wrapped source and converts it.
// Chunks are kept aligned to whole frames at the decimation ratio so no
// samples are dropped between polls.
func (r *Resampled) pollConverted() bool {
	ratio := int(r.format.Rate / r.rate)
	align := ratio * int(r.format.Channels)
	chunk := pollSamples * align

	r.src.Ensure(chunk, 0)
	if avail := len(r.src.Samples()); avail < chunk {
		// The tail of the stream: convert what remains in whole
		// decimation frames and drop the unaligned remainder, as the
		// decimator underneath would.
		chunk = avail - avail%align
		if chunk == 0 {
			r.src.Retire(avail, 0)
			return false
		}
	}

	in := r.src.Samples()[:chunk]
	buf := pcm.Buffer{Format: r.format, Data: samplesToBytes(in)}

	// Channel reduction runs first so the anti-alias filter sees one
	// contiguous signal rather than interleaved channels.
	var err error
	if r.toMono && r.format.Channels == 2 {
		buf, err = pcm.StereoToMono(buf)
		if err != nil {
			r.err = errors.Wrap(err, "stereo to mono failed")
			return false
		}
	}
	if r.filter != nil {
		buf.Data, err = r.filter.Apply(buf)
		if err != nil {
			r.err = errors.Wrap(err, "anti-alias filter failed")
			return false
		}
	}
	buf, err = pcm.Decimate(buf, r.rate)
	if err != nil {
		r.err = errors.Wrap(err, "decimation failed")
		return false
	}

	r.src.Retire(chunk, 0)
	r.PushSamples(bytesToSamples(buf.Data))
	return true
}

// Close releases the wrapped source.
func (r *Resampled) Close() error { return r.src.Close() }

func samplesToBytes(s []int16) []byte {
	b := make([]byte, len(s)*2)
	for i, v := range s {
		b[2*i] = byte(v)
		b[2*i+1] = byte(uint16(v) >> 8)
	}
	return b
}

func bytesToSamples(b []byte) []int16 {
	s := make([]int16, len(b)/2)
	for i := range s {
		s[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return s
}
