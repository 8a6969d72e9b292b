/*
NAME
  revid.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>
  Dan Kortschak <dan@ausocean.org>
  Trek Hopton <trek@ausocean.org>
  Scott Barnard <scott@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package revid provides an API for encoding audio/video streams and files
// into the PlayStation 1's native formats: XA-ADPCM sectors, SPU-ADPCM
// samples with their VAG containers, MDEC BS video, and muxed STR streams.
package revid

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/psxav/device"
	"github.com/ausocean/psxav/device/file"
	"github.com/ausocean/psxav/device/video"
	"github.com/ausocean/psxav/revid/config"
	"github.com/ausocean/utils/logging"
)

// Log file rotation defaults for NewFileLogger.
const (
	logMaxSize   = 500 // MB.
	logMaxBackup = 10
	logMaxAge    = 28 // Days.
)

// Logger describes the logging interface revid requires of its config.
type Logger interface {
	SetLevel(int8)
	Log(level int8, message string, params ...interface{})
}

// Revid provides methods to control an encoding session: it owns the input
// sources and the encoder state for one conversion.
type Revid struct {
	// cfg holds the Revid configuration.
	cfg config.Config

	// source supplies decoded samples or frames to the encoders: the audio
	// source for audio formats, the video source for video formats.
	source device.Source

	// audioSource holds the audio side of an STR mux when source carries
	// the video side.
	audioSource device.Source
}

// New returns a pointer to a new Revid with the desired configuration, or
// an error if construction of the new instance was not successful.
func New(c config.Config) (*Revid, error) {
	r := Revid{}
	err := r.setConfig(c)
	if err != nil {
		return nil, fmt.Errorf("could not set config: %w", err)
	}
	err = r.setupInput()
	if err != nil {
		return nil, fmt.Errorf("could not set up input: %w", err)
	}
	return &r, nil
}

// Config returns a copy of revid's current config.
func (r *Revid) Config() config.Config {
	return r.cfg
}

// setConfig validates and sets the config.
func (r *Revid) setConfig(c config.Config) error {
	if c.Logger == nil {
		return errors.New("no logger configured")
	}
	c.Logger.SetLevel(c.LogLevel)
	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	r.cfg = c
	return nil
}

// setupInput constructs the Source implementations the configured format
// will drain.
func (r *Revid) setupInput() error {
	var err error
	switch r.cfg.Format {
	case config.OutputSTR, config.OutputSTRCD, config.OutputSTRV, config.OutputSBS:
		r.source, err = video.New(r.cfg.Logger, video.Config{
			Input:  r.cfg.InputPath,
			Width:  int(r.cfg.Width),
			Height: int(r.cfg.Height),
		})
		if err != nil {
			return err
		}
		if r.cfg.AudioInput != config.NothingDefined {
			r.audioSource, err = r.newAudioSource(r.cfg.AudioInput, r.cfg.AudioPath)
			if err != nil {
				r.source.Close()
				return err
			}
		}
	default:
		r.source, err = r.newAudioSource(r.cfg.Input, r.cfg.InputPath)
		if err != nil {
			return err
		}
	}
	return nil
}

// newAudioSource builds the audio Source for the given input kind.
func (r *Revid) newAudioSource(input uint8, path string) (device.Source, error) {
	switch input {
	case config.InputWAV:
		return file.NewWAVSource(r.cfg.Logger, path)
	case config.InputFLAC:
		return file.NewFLACSource(r.cfg.Logger, path)
	case config.InputPCM:
		return file.NewTailSource(r.cfg.Logger, path, false)
	case config.InputAudio:
		return r.setupAudio()
	default:
		return nil, fmt.Errorf("unrecognised audio input %d", input)
	}
}

// Run encodes the configured input to w until the input is exhausted. On
// return the input sources are closed; a Revid is single-use.
func (r *Revid) Run(w io.Writer) error {
	defer func() {
		r.source.Close()
		if r.audioSource != nil {
			r.audioSource.Close()
		}
	}()

	r.cfg.Logger.Info("starting encode", "format", int(r.cfg.Format))

	var err error
	switch r.cfg.Format {
	case config.OutputXA, config.OutputXACD:
		err = r.encodeXA(w)
	case config.OutputSPU, config.OutputVAG:
		err = r.encodeSPU(w)
	case config.OutputVAGI:
		err = r.encodeSPUInterleaved(w)
	case config.OutputSTR, config.OutputSTRCD, config.OutputSTRV:
		err = r.encodeSTR(w)
	case config.OutputSBS:
		err = r.encodeSBS(w)
	default:
		err = fmt.Errorf("unrecognised output format %d", r.cfg.Format)
	}
	if err != nil {
		r.cfg.Logger.Error("encode failed", "error", err.Error())
		return err
	}

	r.cfg.Logger.Info("encode complete")
	return nil
}

// NewFileLogger returns a Logger backed by a size-rotated log file at
// path, in addition to any destinations in extra.
func NewFileLogger(path string, verbosity int8, suppress bool, extra ...io.Writer) logging.Logger {
	fileLog := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	writers := append([]io.Writer{fileLog}, extra...)
	return logging.New(verbosity, io.MultiWriter(writers...), suppress)
}
