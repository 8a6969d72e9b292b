/*
DESCRIPTION
  flac.go provides FLACSource, an implementation of the Source interface
  that decodes FLAC compressed audio into int16 PCM samples.

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

package file

import (
	"io"

	"github.com/mewkiz/flac"
	"github.com/pkg/errors"

	"github.com/ausocean/psxav/device"
	"github.com/ausocean/utils/logging"
)

// FLACSource decodes a FLAC file frame by frame as the pipeline pulls
// samples from it.
type FLACSource struct {
	device.Buffer

	stream *flac.Stream
	log    logging.Logger
	err    error
}

// NewFLACSource opens the FLAC file at path.
func NewFLACSource(l logging.Logger, path string) (*FLACSource, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse FLAC")
	}

	s := &FLACSource{stream: stream, log: l}
	s.SetPoll(s.pollFrame)

	l.Debug("FLAC source opened", "path", path, "rate", stream.Info.SampleRate, "channels", stream.Info.NChannels)
	return s, nil
}

// SampleRate returns the stream's native sample rate.
func (s *FLACSource) SampleRate() int { return int(s.stream.Info.SampleRate) }

// Channels returns the stream's channel count.
func (s *FLACSource) Channels() int { return int(s.stream.Info.NChannels) }

// Err returns the first decode error encountered, if any.
func (s *FLACSource) Err() error { return s.err }

// pollFrame decodes one FLAC frame, interleaving its per-channel
// subframes into the sample buffer.
func (s *FLACSource) pollFrame() bool {
	frame, err := s.stream.ParseNext()
	if err == io.EOF {
		return false
	}
	if err != nil {
		s.err = errors.Wrap(err, "FLAC decode failed")
		s.log.Error("FLAC decode failed", "error", err)
		return false
	}

	channels := len(frame.Subframes)
	if channels == 0 {
		return true
	}
	bps := int(s.stream.Info.BitsPerSample)
	n := len(frame.Subframes[0].Samples)
	out := make([]int16, n*channels)
	for ch, sub := range frame.Subframes {
		for i, v := range sub.Samples {
			switch {
			case bps > 16:
				out[i*channels+ch] = int16(v >> uint(bps-16))
			case bps < 16:
				out[i*channels+ch] = int16(v << uint(16-bps))
			default:
				out[i*channels+ch] = int16(v)
			}
		}
	}
	s.PushSamples(out)
	return true
}

// Close releases the stream.
func (s *FLACSource) Close() error { return s.stream.Close() }
