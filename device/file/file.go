/*
DESCRIPTION
  file.go provides WAVSource, an implementation of the Source interface
  that decodes PCM audio and container loop metadata from WAV files.

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

// Package file provides Source implementations backed by media files: WAV
// and FLAC audio, plus a follow-mode raw PCM reader for capture files that
// are still being written.
package file

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/ausocean/psxav/device"
	"github.com/ausocean/utils/logging"
)

// pollSamples is how many samples each decode step requests from the
// underlying decoder.
const pollSamples = 4096

// WAVSource decodes a WAV file into int16 PCM samples on demand,
// surfacing any loop point declared by the file's smpl chunk.
type WAVSource struct {
	device.Buffer

	f     *os.File
	dec   *wav.Decoder
	buf   *audio.IntBuffer
	shift int
	log   logging.Logger
	err   error
}

// NewWAVSource opens the WAV file at path. Loop metadata is parsed up
// front; sample data is decoded lazily as the pipeline pulls it.
func NewWAVSource(l logging.Logger, path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open WAV file")
	}

	s := &WAVSource{f: f, log: l}
	if err := s.readLoopPoint(); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "could not rewind WAV file")
	}

	s.dec = wav.NewDecoder(f)
	s.dec.ReadInfo()
	if !s.dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	if s.dec.BitDepth > 16 {
		s.shift = int(s.dec.BitDepth) - 16
	}

	s.buf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(s.dec.NumChans),
			SampleRate:  int(s.dec.SampleRate),
		},
		Data: make([]int, pollSamples),
	}
	s.SetPoll(s.pollPCM)

	l.Debug("WAV source opened", "path", path, "rate", s.dec.SampleRate, "channels", s.dec.NumChans, "bitDepth", s.dec.BitDepth)
	return s, nil
}

// readLoopPoint scans the file's metadata chunks for sampler loop info,
// which Sony-style sound banks use to mark a sample's sustain region.
func (s *WAVSource) readLoopPoint() error {
	dec := wav.NewDecoder(s.f)
	dec.ReadMetadata()
	if dec.Err() != nil || dec.Metadata == nil || dec.Metadata.SamplerInfo == nil {
		return nil
	}

	info := dec.Metadata.SamplerInfo
	if len(info.Loops) == 0 {
		return nil
	}
	if len(info.Loops) > 1 {
		s.log.Warning("input file has multiple loop points, using first", "count", len(info.Loops))
	}
	if dec.SampleRate == 0 {
		return nil
	}

	start := int(info.Loops[0].Start)
	ms := int(int64(start) * 1000 / int64(dec.SampleRate))
	s.SetLoopPointMS(ms)
	s.log.Debug("detected loop point from smpl chunk", "ms", ms)
	return nil
}

// SampleRate returns the file's native sample rate.
func (s *WAVSource) SampleRate() int { return int(s.dec.SampleRate) }

// Channels returns the file's channel count.
func (s *WAVSource) Channels() int { return int(s.dec.NumChans) }

// Err returns the first decode error encountered, if any.
func (s *WAVSource) Err() error { return s.err }

// pollPCM decodes one chunk of samples into the buffer, scaling down to
// int16 where the source bit depth is wider.
func (s *WAVSource) pollPCM() bool {
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		s.err = errors.Wrap(err, "WAV decode failed")
		s.log.Error("WAV decode failed", "error", err)
		return false
	}
	if n == 0 {
		return false
	}

	out := make([]int16, n)
	for i := 0; i < n; i++ {
		v := s.buf.Data[i] >> uint(s.shift)
		if s.dec.BitDepth == 8 {
			// 8-bit WAV is unsigned; recentre and widen.
			v = (s.buf.Data[i] - 128) << 8
		}
		out[i] = int16(v)
	}
	s.PushSamples(out)
	return true
}

// Close releases the file.
func (s *WAVSource) Close() error { return s.f.Close() }
