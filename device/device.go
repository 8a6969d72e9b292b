/*
DESCRIPTION
  device.go provides Source, the pull-style interface through which the
  encoders obtain decoded PCM samples and NV21 video frames, and Buffer,
  the buffering half shared by every Source implementation.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package device provides implementations of Source, an interface that
// describes an input from which decoded audio samples and video frames may
// be pulled on demand by the encoding pipeline.
package device

// Source describes a decoded media input. The encoders drive it with a
// simple pull protocol: Ensure tops up the buffers, Samples and Frames
// expose them, and Retire consumes from the front.
type Source interface {
	// Ensure blocks until the buffers hold at least samplesNeeded PCM
	// samples and framesNeeded video frames, decoding more input as
	// required. It returns false only when the input is exhausted and the
	// remaining buffered data cannot satisfy the demand.
	Ensure(samplesNeeded, framesNeeded int) bool

	// Samples returns the buffered, channel-interleaved int16 PCM samples.
	Samples() []int16

	// Frames returns the buffered NV21 video frames.
	Frames() [][]byte

	// Retire consumes samples and frames from the front of the buffers.
	Retire(samplesConsumed, framesConsumed int)

	// EndOfInput reports whether the underlying input is exhausted.
	EndOfInput() bool

	// LoopPointMS returns the loop point carried by the input's container
	// metadata in milliseconds from the start, if it has one.
	LoopPointMS() (int, bool)

	// Close releases the input.
	Close() error
}

// Buffer implements the buffering half of Source. Implementations embed a
// Buffer and install a poll function that decodes one more unit of input,
// pushing its output via PushSamples and PushFrame and returning false
// once the input is exhausted.
type Buffer struct {
	samples []int16
	frames  [][]byte
	eoi     bool
	loopMS  int
	hasLoop bool
	poll    func() bool
}

// SetPoll installs the decode-step function Ensure drives.
func (b *Buffer) SetPoll(poll func() bool) { b.poll = poll }

// PushSamples appends decoded PCM samples to the buffer.
func (b *Buffer) PushSamples(s []int16) { b.samples = append(b.samples, s...) }

// PushFrame appends one decoded video frame to the buffer.
func (b *Buffer) PushFrame(f []byte) { b.frames = append(b.frames, f) }

// SetLoopPointMS records the loop point the input's container declares.
func (b *Buffer) SetLoopPointMS(ms int) {
	b.loopMS = ms
	b.hasLoop = true
}

// Ensure polls for more data until the buffers exceed the requested
// quantities. It deliberately waits for one unit more than asked so the
// end-of-input latch trips as soon as the final unit has been read,
// letting callers finalize their last output block on time.
func (b *Buffer) Ensure(samplesNeeded, framesNeeded int) bool {
	for (samplesNeeded > 0 && len(b.samples) <= samplesNeeded) ||
		(framesNeeded > 0 && len(b.frames) <= framesNeeded) {
		if b.eoi || b.poll == nil || !b.poll() {
			b.eoi = true
			// The buffers may still satisfy the demand even though the
			// input is done; keep returning true until they drain.
			return (len(b.samples) > 0 || samplesNeeded == 0) &&
				(len(b.frames) > 0 || framesNeeded == 0)
		}
	}
	return true
}

// Samples returns the buffered PCM samples.
func (b *Buffer) Samples() []int16 { return b.samples }

// Frames returns the buffered video frames.
func (b *Buffer) Frames() [][]byte { return b.frames }

// Retire consumes samples and frames from the front of the buffers.
func (b *Buffer) Retire(samplesConsumed, framesConsumed int) {
	if samplesConsumed > len(b.samples) || framesConsumed > len(b.frames) {
		panic("device: retiring more than is buffered")
	}
	b.samples = b.samples[samplesConsumed:]
	b.frames = b.frames[framesConsumed:]
}

// EndOfInput reports whether the input is exhausted.
func (b *Buffer) EndOfInput() bool { return b.eoi }

// LoopPointMS returns the container-declared loop point, if any.
func (b *Buffer) LoopPointMS() (int, bool) { return b.loopMS, b.hasLoop }
