/*
NAME
  senders.go

DESCRIPTION
  senders.go provides the output sinks encoded data is written to: a
  single-file sink and a fan-out sink for writing one stream to several
  destinations at once.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package revid

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ausocean/utils/logging"
)

// Sink is a destination for encoded output.
type Sink interface {
	io.WriteCloser
}

// fileSink writes encoded output to a single file.
type fileSink struct {
	f    *os.File
	log  logging.Logger
	path string
	size int
}

// NewFileSink creates the file at path and returns a Sink writing to it.
func NewFileSink(l logging.Logger, path string) (Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not create output file")
	}
	return &fileSink{f: f, log: l, path: path}, nil
}

// Write writes p to the output file.
func (s *fileSink) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	s.size += n
	return n, err
}

// Close syncs and closes the output file.
func (s *fileSink) Close() error {
	s.log.Info("output file closed", "path", s.path, "bytes", s.size)
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// multiSink fans one stream out to several sinks. A write error from any
// sink fails the whole write, leaving partially written files as they
// are.
type multiSink struct {
	sinks []Sink
}

// NewMultiSink returns a Sink that duplicates writes across sinks.
func NewMultiSink(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

// Write writes p to every sink.
func (s *multiSink) Write(p []byte) (int, error) {
	for _, sink := range s.sinks {
		if _, err := sink.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close closes every sink, returning the first error encountered.
func (s *multiSink) Close() error {
	var err error
	for _, sink := range s.sinks {
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
