/*
DESCRIPTION
  tail.go provides TailSource, a Source implementation that reads raw
  S16_LE PCM from a capture file that may still be growing, waking on
  filesystem write events rather than polling.

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
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/ausocean/psxav/device"
	"github.com/ausocean/utils/logging"
)

// TailSource reads channel-interleaved S16_LE PCM from a file. With
// Follow set it behaves like tail -f: on reaching the current end of the
// file it blocks on filesystem notifications until the writer appends
// more data, and ends only when the file is removed or renamed away.
type TailSource struct {
	device.Buffer

	f       *os.File
	watcher *fsnotify.Watcher
	follow  bool
	rem     []byte
	log     logging.Logger
	err     error
}

// NewTailSource opens the raw PCM file at path. follow selects tail -f
// semantics for capture files still being written.
func NewTailSource(l logging.Logger, path string, follow bool) (*TailSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open PCM file")
	}

	s := &TailSource{f: f, follow: follow, log: l}
	if follow {
		s.watcher, err = fsnotify.NewWatcher()
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "could not create file watcher")
		}
		if err := s.watcher.Add(path); err != nil {
			s.watcher.Close()
			f.Close()
			return nil, errors.Wrap(err, "could not watch PCM file")
		}
	}
	s.SetPoll(s.pollPCM)
	return s, nil
}

// Err returns the first read error encountered, if any.
func (s *TailSource) Err() error { return s.err }

// pollPCM reads one chunk of raw samples, blocking on write notifications
// in follow mode when the reader has caught up with the writer.
func (s *TailSource) pollPCM() bool {
	chunk := make([]byte, pollSamples*2)
	for {
		n, err := s.f.Read(chunk)
		if n > 0 {
			s.pushBytes(chunk[:n])
			return true
		}
		if err != nil && err != io.EOF {
			s.err = errors.Wrap(err, "PCM read failed")
			s.log.Error("PCM read failed", "error", err)
			return false
		}
		if !s.follow {
			return false
		}
		if !s.waitForWrite() {
			return false
		}
	}
}

// waitForWrite blocks until the watched file grows, reporting false once
// the writer has finished with it.
func (s *TailSource) waitForWrite() bool {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return false
			}
			if ev.Has(fsnotify.Write) {
				return true
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.log.Debug("capture file finished", "event", ev.Op.String())
				return false
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return false
			}
			s.err = errors.Wrap(err, "file watch failed")
			s.log.Error("file watch failed", "error", err)
			return false
		}
	}
}

// pushBytes converts little-endian sample bytes to int16, holding any
// trailing odd byte until the next read completes the sample.
func (s *TailSource) pushBytes(b []byte) {
	if len(s.rem) > 0 {
		b = append(s.rem, b...)
		s.rem = nil
	}
	if len(b)%2 != 0 {
		s.rem = []byte{b[len(b)-1]}
		b = b[:len(b)-1]
	}

	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	s.PushSamples(out)
}

// Close releases the file and its watcher.
func (s *TailSource) Close() error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	return s.f.Close()
}
