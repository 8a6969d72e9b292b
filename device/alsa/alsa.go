/*
NAME
  alsa.go

AUTHOR
  Alan Noble <alan@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package alsa provides a Source implementation backed by an ALSA capture
// device, for encoding live microphone input straight to the PS1 audio
// formats.
package alsa

import (
	"encoding/binary"
	"errors"
	"fmt"

	yalsa "github.com/yobert/alsa"

	"github.com/ausocean/psxav/codec/pcm"
	"github.com/ausocean/psxav/device"
	"github.com/ausocean/utils/logging"
)

// Defaults applied when a Config field is zero.
const (
	defaultSampleRate = 48000
	defaultChannels   = 1
)

// Config provides parameters used by the ALSA source.
type Config struct {
	// Title selects a specific capture device; empty takes the first
	// recordable PCM device found.
	Title string

	// SampleRate is the rate the source delivers, in Hz. Recording
	// happens at the nearest negotiable multiple and is decimated down.
	SampleRate uint

	// Channels is the delivered channel count: 1 or 2.
	Channels uint
}

// ALSA is a Source that pulls audio from an ALSA capture device one
// period at a time as the pipeline demands samples.
type ALSA struct {
	device.Buffer

	l          logging.Logger
	dev        *yalsa.Device
	cfg        Config
	recRate    uint
	recChans   uint
	bitDepth   uint
	periodSize int
	readBuf    []byte
	err        error
}

// New opens and configures an ALSA capture device per cfg.
func New(l logging.Logger, cfg Config) (*ALSA, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = defaultChannels
	}

	d := &ALSA{l: l, cfg: cfg}
	if err := d.open(); err != nil {
		return nil, err
	}
	d.SetPoll(d.pollPeriod)
	return d, nil
}

// Err returns the first capture error encountered, if any.
func (d *ALSA) Err() error { return d.err }

// open finds and configures the capture device, negotiating channels, a
// rate divisible by the wanted rate, format and buffer geometry.
func (d *ALSA) open() error {
	d.l.Debug("opening sound card")
	cards, err := yalsa.OpenCards()
	if err != nil {
		return err
	}
	defer yalsa.CloseCards(cards)

	d.l.Debug("finding audio device")
	for _, card := range cards {
		devices, err := card.Devices()
		if err != nil {
			continue
		}
		for _, dev := range devices {
			if dev.Type != yalsa.PCM || !dev.Record {
				continue
			}
			if dev.Title == d.cfg.Title || d.cfg.Title == "" {
				d.dev = dev
				break
			}
		}
	}
	if d.dev == nil {
		return errors.New("no ALSA device found")
	}

	d.l.Debug("opening ALSA device", "title", d.dev.Title)
	if err := d.dev.Open(); err != nil {
		return err
	}

	// Try to configure the device with the chosen channels.
	channels, err := d.dev.NegotiateChannels(int(d.cfg.Channels))
	if err != nil && d.cfg.Channels == 1 {
		d.l.Info("device is unable to record in mono, trying stereo", "error", err)
		channels, err = d.dev.NegotiateChannels(2)
	}
	if err != nil {
		return fmt.Errorf("device is unable to record with requested number of channels: %w", err)
	}
	d.recChans = uint(channels)
	d.l.Debug("alsa device channels set", "channels", channels)

	// Try to negotiate a rate divisible by the wanted rate so it can be
	// cleanly decimated down. Note: some cards advertise rates they
	// cannot actually sustain.
	var rates = [8]int{8000, 16000, 32000, 44100, 48000, 88200, 96000, 192000}

	var rate int
	foundRate := false
	for _, r := range rates {
		if r < int(d.cfg.SampleRate) {
			continue
		}
		if r%int(d.cfg.SampleRate) == 0 {
			rate, err = d.dev.NegotiateRate(r)
			if err == nil {
				foundRate = true
				d.l.Debug("alsa device sample rate set", "rate", rate)
				break
			}
		}
	}
	if !foundRate {
		d.l.Warning("unable to sample at a multiple of the requested rate, default used", "rateRequested", d.cfg.SampleRate)
		rate, err = d.dev.NegotiateRate(defaultSampleRate)
		if err != nil {
			return err
		}
		d.l.Debug("alsa device sample rate set", "rate", rate)
	}
	d.recRate = uint(rate)

	devFmt, err := d.dev.NegotiateFormat(yalsa.S16_LE, yalsa.S32_LE)
	if err != nil {
		return err
	}
	switch devFmt {
	case yalsa.S16_LE:
		d.bitDepth = 16
	case yalsa.S32_LE:
		d.bitDepth = 32
	default:
		return fmt.Errorf("unsupported ALSA format %v", devFmt)
	}
	d.l.Debug("alsa device bit depth set", "bitdepth", d.bitDepth)

	// A 50ms period is a sensible value for low-ish latency. Some devices
	// only accept even period sizes while others want powers of 2, so the
	// closest power of 2 to the desired size is requested.
	const wantPeriod = 0.05 // Seconds.
	bytesPerSecond := rate * channels * (int(d.bitDepth) / 8)
	wantPeriodSize := int(float64(bytesPerSecond) * wantPeriod)
	periodSize, err := d.dev.NegotiatePeriodSize(nearestPowerOfTwo(wantPeriodSize))
	if err != nil {
		return err
	}
	d.periodSize = periodSize
	d.l.Debug("alsa device period size set", "periodsize", periodSize)

	// At least four period sizes should fit within the buffer.
	bufSize, err := d.dev.NegotiateBufferSize(periodSize * 4)
	if err != nil {
		return err
	}
	d.l.Debug("alsa device buffer size set", "buffersize", bufSize)

	if err = d.dev.Prepare(); err != nil {
		return err
	}
	d.readBuf = make([]byte, periodSize*channels*(int(d.bitDepth)/8))

	d.l.Debug("successfully negotiated device params")
	return nil
}

// pollPeriod records one period, converts it to the configured rate and
// channel count, and pushes the result into the sample buffer.
func (d *ALSA) pollPeriod() bool {
	if d.dev == nil {
		return false
	}
	if err := d.dev.Read(d.readBuf); err != nil {
		d.err = fmt.Errorf("failed to read from ALSA device: %w", err)
		d.l.Error("failed to read from ALSA device", "error", err)
		return false
	}

	buf := pcm.Buffer{
		Format: pcm.BufferFormat{
			SFormat:  pcm.S16_LE,
			Rate:     d.recRate,
			Channels: d.recChans,
		},
		Data: d.readBuf,
	}
	if d.bitDepth == 32 {
		buf.Data = to16Bit(d.readBuf)
	}

	var err error
	if d.recChans == 2 && d.cfg.Channels == 1 {
		buf, err = pcm.StereoToMono(buf)
		if err != nil {
			d.err = fmt.Errorf("channel conversion failed: %w", err)
			return false
		}
	}
	if buf.Format.Rate != d.cfg.SampleRate {
		buf, err = pcm.Decimate(buf, d.cfg.SampleRate)
		if err != nil {
			d.err = fmt.Errorf("rate conversion failed: %w", err)
			return false
		}
	}

	out := make([]int16, len(buf.Data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf.Data[2*i:]))
	}
	d.PushSamples(out)
	return true
}

// to16Bit narrows S32_LE sample bytes to S16_LE by taking the high half
// of each sample.
func to16Bit(b []byte) []byte {
	out := make([]byte, len(b)/2)
	for i := 0; i+4 <= len(b); i += 4 {
		v := int32(binary.LittleEndian.Uint32(b[i:]))
		binary.LittleEndian.PutUint16(out[i/2:], uint16(v>>16))
	}
	return out
}

// Close releases the capture device.
func (d *ALSA) Close() error {
	if d.dev != nil {
		d.dev.Close()
		d.dev = nil
	}
	return nil
}

// nearestPowerOfTwo finds and returns the nearest power of two to the
// given integer. If the lower and higher power of two are the same
// distance, it returns the higher power. For zero and negative values, 1
// is returned, and an input of 1 returns 2.
func nearestPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	if n == 1 {
		return 2
	}
	lower := 1
	for lower*2 <= n {
		lower *= 2
	}
	higher := lower * 2
	if n-lower < higher-n {
		return lower
	}
	return higher
}
