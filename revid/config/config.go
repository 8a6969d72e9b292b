/*
NAME
  Config.go

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

// Package config contains the configuration settings for revid.
package config

import (
	"fmt"

	"github.com/ausocean/utils/logging"
)

// Enums to define inputs, outputs and codec variants.
const (
	// Indicates no option has been set.
	NothingDefined = iota

	// Inputs.
	InputWAV   // PCM audio decoded from a WAV file.
	InputFLAC  // PCM audio decoded from a FLAC file.
	InputPCM   // Raw S16_LE PCM read from a file, optionally still growing.
	InputAudio // Live capture from an ALSA audio source.
	InputVideo // Video frames read from a file or camera via OpenCV.

	// Output formats.
	OutputXA    // XA-ADPCM 2336-byte sectors.
	OutputXACD  // XA-ADPCM raw 2352-byte CD sectors.
	OutputSPU   // Raw SPU-ADPCM blocks, no header.
	OutputVAG   // Mono SPU-ADPCM in a VAGp container.
	OutputVAGI  // Interleaved multi-channel SPU-ADPCM in a VAGi container.
	OutputSTR   // Muxed audio/video 2336-byte sector stream.
	OutputSTRCD // Muxed audio/video raw 2352-byte CD sector stream.
	OutputSTRV  // Video-only 2048-byte data sector stream.
	OutputSBS   // Fixed-slot BS frame stream.

	// BS bitstream versions.
	BSVersion2   // Raw 10-bit DC coefficients.
	BSVersion3   // Huffman-coded DC deltas.
	BSVersion3DC // Version 3 with wrapped large DC deltas.
)

// Default parameter values applied by Validate.
const (
	defaultXASampleRate  = 37800
	defaultSPUSampleRate = 44100
	defaultBitDepth      = 4
	defaultChannels      = 1
	defaultAlignment     = 64
	defaultInterleave    = 2048
	defaultSBSAlignment  = 8192
	defaultFPSNum        = 15
	defaultFPSDen        = 1
	defaultCDSpeed       = 2
)

// The XA hardware decoder accepts exactly two sample rates.
const (
	XARateSingle = 18900
	XARateDouble = 37800
)

// Config provides parameters relevant to a revid instance. A new config
// must be passed to the constructor.
type Config struct {
	// Input defines the primary input: the audio source for the audio-only
	// formats, or the video source for the STR and SBS formats.
	Input uint8

	// AudioInput defines the audio source for the STR formats, where Input
	// carries the video side. Zero means a video-only stream.
	AudioInput uint8

	// InputPath locates the primary input for file-backed inputs. For
	// InputVideo it may also be a camera index string such as "0".
	InputPath string

	// AudioPath locates the STR audio track for file-backed audio inputs.
	AudioPath string

	// OutputPath defines the output file destination.
	OutputPath string

	// Format selects the output format, one of the Output enums.
	Format uint8

	SampleRate uint // Samples a second (Hz) delivered to the encoder.
	Channels   uint // Number of audio channels, 1 for mono, 2 for stereo.
	BitDepth   uint // XA sample bit depth: 4 or 8.

	XAFile    byte // XA subheader file number.
	XAChannel byte // XA subheader channel number.

	// Interleave is the per-channel byte span of one VAGI interleave
	// period.
	Interleave uint

	// Alignment pads SPU/VAG output lengths and sizes SBS frame slots.
	Alignment uint

	// Loop enables an explicit SPU loop at LoopStart, overriding any loop
	// point found in the input container.
	Loop bool

	// LoopStart is the SPU loop start offset in samples when Loop is set.
	LoopStart int

	// NoLoopDetect ignores any loop point found in the input container.
	NoLoopDetect bool

	// EndFlag marks the final SPU block loop-end instead of appending the
	// silent trap block.
	EndFlag bool

	// LeadingDummy prepends a silent priming block to SPU output.
	LeadingDummy bool

	Width  uint // Width of encoded video frames; a multiple of 16.
	Height uint // Height of encoded video frames; a multiple of 16.

	// BSVersion selects the BS bitstream dialect, one of the BSVersion
	// enums.
	BSVersion uint8

	FPSNum uint // Frame rate numerator.
	FPSDen uint // Frame rate denominator.

	// CDSpeed is the drive speed an STR stream is authored for: 1 or 2.
	CDSpeed uint

	// VideoID is the STR sub-chunk type tag; 0 takes the conventional
	// default.
	VideoID uint16

	// TrailingAudio places each STR interleave block's audio sector after
	// its video sectors instead of before them.
	TrailingAudio bool

	// Logger holds an implementation of the logging.Logger interface.
	// This must be set for revid to work correctly.
	Logger logging.Logger

	// LogLevel is the revid logging verbosity level.
	LogLevel int8

	Suppress bool // Holds logger suppression state.
}

// audioFormat reports whether f encodes an audio stream.
func audioFormat(f uint8) bool {
	switch f {
	case OutputXA, OutputXACD, OutputSPU, OutputVAG, OutputVAGI:
		return true
	}
	return false
}

// videoFormat reports whether f encodes a video stream.
func videoFormat(f uint8) bool {
	switch f {
	case OutputSTR, OutputSTRCD, OutputSTRV, OutputSBS:
		return true
	}
	return false
}

// Validate checks for any errors in the config fields and defaults
// settings if particular parameters have not been defined.
func (c *Config) Validate() error {
	if c.Format == NothingDefined {
		return fmt.Errorf("no output format defined")
	}

	switch {
	case audioFormat(c.Format):
		c.validateAudio()
	case videoFormat(c.Format):
		if err := c.validateVideo(); err != nil {
			return err
		}
		if c.AudioInput != NothingDefined {
			c.validateAudio()
		}
	default:
		return fmt.Errorf("unknown output format %d", c.Format)
	}

	if (c.Format == OutputSPU || c.Format == OutputVAG) && c.Channels != 1 {
		return fmt.Errorf("%d channels unsupported for single-voice SPU output; use the interleaved format", c.Channels)
	}

	xaAudio := c.Format == OutputXA || c.Format == OutputXACD ||
		((c.Format == OutputSTR || c.Format == OutputSTRCD) && c.AudioInput != NothingDefined)
	if xaAudio {
		if c.SampleRate != XARateSingle && c.SampleRate != XARateDouble {
			return fmt.Errorf("invalid XA sample rate %d, want %d or %d", c.SampleRate, XARateSingle, XARateDouble)
		}
		if c.BitDepth != 4 && c.BitDepth != 8 {
			return fmt.Errorf("invalid XA bit depth %d, want 4 or 8", c.BitDepth)
		}
	}
	return nil
}

func (c *Config) validateAudio() {
	if c.SampleRate == 0 {
		switch c.Format {
		case OutputSPU, OutputVAG, OutputVAGI:
			c.SampleRate = defaultSPUSampleRate
		default:
			c.SampleRate = defaultXASampleRate
		}
		c.LogInvalidField("SampleRate", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		c.Channels = defaultChannels
		c.LogInvalidField("Channels", defaultChannels)
	}
	if c.BitDepth != 4 && c.BitDepth != 8 {
		c.BitDepth = defaultBitDepth
		c.LogInvalidField("BitDepth", defaultBitDepth)
	}
	if c.Alignment == 0 {
		c.Alignment = defaultAlignment
		c.LogInvalidField("Alignment", defaultAlignment)
	}
	if c.Format == OutputVAGI && c.Interleave == 0 {
		c.Interleave = defaultInterleave
		c.LogInvalidField("Interleave", defaultInterleave)
	}
}

func (c *Config) validateVideo() error {
	if c.Width == 0 || c.Height == 0 || c.Width%16 != 0 || c.Height%16 != 0 {
		return fmt.Errorf("invalid frame size %dx%d, want non-zero multiples of 16", c.Width, c.Height)
	}
	if c.BSVersion == NothingDefined {
		c.BSVersion = BSVersion2
		c.LogInvalidField("BSVersion", BSVersion2)
	}
	if c.FPSNum == 0 {
		c.FPSNum = defaultFPSNum
		c.LogInvalidField("FPSNum", defaultFPSNum)
	}
	if c.FPSDen == 0 {
		c.FPSDen = defaultFPSDen
		c.LogInvalidField("FPSDen", defaultFPSDen)
	}
	if c.CDSpeed != 1 && c.CDSpeed != 2 {
		c.CDSpeed = defaultCDSpeed
		c.LogInvalidField("CDSpeed", defaultCDSpeed)
	}
	if c.Format == OutputSBS && c.Alignment == 0 {
		c.Alignment = defaultSBSAlignment
		c.LogInvalidField("Alignment", defaultSBSAlignment)
	}
	return nil
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	if c.Logger != nil {
		c.Logger.Info(name+" bad or unset, defaulting", name, def)
	}
}
