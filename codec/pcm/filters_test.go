/*
NAME
  filters_test.go

DESCRIPTION
  filters_test.go contains tests for the FIR conditioning filters,
  checking pass and stop band behaviour on synthesized tones at the
  console rates.

AUTHOR
  David Sutton <davidsutton@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pcm

import (
	"encoding/binary"
	"math"
	"testing"
)

const (
	testTaps    = 200
	testSamples = 2048
)

// tone synthesizes a sine at freq Hz sampled at rate, at half scale.
func tone(freq float64, rate uint) Buffer {
	data := make([]byte, testSamples*2)
	for i := 0; i < testSamples; i++ {
		v := int16(0.5 * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	return Buffer{
		Format: BufferFormat{SFormat: S16_LE, Rate: rate, Channels: 1},
		Data:   data,
	}
}

// rms measures a signal's level over its middle half, clear of the
// filter edge effects at either end.
func rms(b []byte) float64 {
	n := len(b) / 2
	var sum float64
	for i := n / 4; i < 3*n/4; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(b[2*i:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n/2))
}

// TestLowPassBands checks a lowpass at XA double rate: a mid-band tone
// passes while a tone near Nyquist is cut.
func TestLowPassBands(t *testing.T) {
	lp, err := NewLowPass(8000, BufferFormat{SFormat: S16_LE, Rate: RateXADouble, Channels: 1}, testTaps)
	if err != nil {
		t.Fatalf("NewLowPass: %v", err)
	}

	pass := tone(1000, RateXADouble)
	got, err := lp.Apply(pass)
	if err != nil {
		t.Fatalf("Apply pass tone: %v", err)
	}
	if len(got) != len(pass.Data) {
		t.Fatalf("filtered length = %d, want %d", len(got), len(pass.Data))
	}
	if r := rms(got) / rms(pass.Data); r < 0.5 {
		t.Errorf("1 kHz tone attenuated to %.2f of input, want passed", r)
	}

	stop := tone(16000, RateXADouble)
	got, err = lp.Apply(stop)
	if err != nil {
		t.Fatalf("Apply stop tone: %v", err)
	}
	if r := rms(got) / rms(stop.Data); r > 0.2 {
		t.Errorf("16 kHz tone at %.2f of input, want attenuated", r)
	}
}

// TestHighPassBands checks the complementary behaviour: rumble is cut
// while program material passes.
func TestHighPassBands(t *testing.T) {
	hp, err := NewHighPass(2000, BufferFormat{SFormat: S16_LE, Rate: RateSPU, Channels: 1}, testTaps)
	if err != nil {
		t.Fatalf("NewHighPass: %v", err)
	}

	stop := tone(100, RateSPU)
	got, err := hp.Apply(stop)
	if err != nil {
		t.Fatalf("Apply stop tone: %v", err)
	}
	if r := rms(got) / rms(stop.Data); r > 0.2 {
		t.Errorf("100 Hz tone at %.2f of input, want attenuated", r)
	}

	pass := tone(8000, RateSPU)
	got, err = hp.Apply(pass)
	if err != nil {
		t.Fatalf("Apply pass tone: %v", err)
	}
	if r := rms(got) / rms(pass.Data); r < 0.5 {
		t.Errorf("8 kHz tone attenuated to %.2f of input, want passed", r)
	}
}

// TestBandStopNotch checks that a band-stop filter notches its centre
// frequency while passing either side.
func TestBandStopNotch(t *testing.T) {
	bs, err := NewBandStop(4000, 8000, BufferFormat{SFormat: S16_LE, Rate: RateXADouble, Channels: 1}, testTaps)
	if err != nil {
		t.Fatalf("NewBandStop: %v", err)
	}

	notch := tone(6000, RateXADouble)
	got, err := bs.Apply(notch)
	if err != nil {
		t.Fatalf("Apply notch tone: %v", err)
	}
	if r := rms(got) / rms(notch.Data); r > 0.3 {
		t.Errorf("6 kHz tone at %.2f of input, want notched", r)
	}

	low := tone(500, RateXADouble)
	got, err = bs.Apply(low)
	if err != nil {
		t.Fatalf("Apply low tone: %v", err)
	}
	if r := rms(got) / rms(low.Data); r < 0.5 {
		t.Errorf("500 Hz tone attenuated to %.2f of input, want passed", r)
	}
}

// TestNewAntiAlias checks the cutoff plumbing against the console
// rates: the capture rate must decimate cleanly to the target, and the
// filter must remove energy above the target's Nyquist frequency.
func TestNewAntiAlias(t *testing.T) {
	format := BufferFormat{SFormat: S16_LE, Rate: 75600, Channels: 1}

	if _, err := NewAntiAlias(BufferFormat{SFormat: S16_LE, Rate: RateSPU, Channels: 1}, RateXADouble, testTaps); err == nil {
		t.Error("NewAntiAlias(44100 -> 37800) succeeded, want an error")
	}

	aa, err := NewAntiAlias(format, RateXADouble, testTaps)
	if err != nil {
		t.Fatalf("NewAntiAlias: %v", err)
	}

	// A 25 kHz tone would fold to 12.8 kHz when decimated to 37800 Hz;
	// the filter must remove it first.
	alias := tone(25000, 75600)
	got, err := aa.Apply(alias)
	if err != nil {
		t.Fatalf("Apply alias tone: %v", err)
	}
	if r := rms(got) / rms(alias.Data); r > 0.15 {
		t.Errorf("25 kHz tone at %.2f of input, want removed before decimation", r)
	}

	keep := tone(5000, 75600)
	got, err = aa.Apply(keep)
	if err != nil {
		t.Fatalf("Apply program tone: %v", err)
	}
	if r := rms(got) / rms(keep.Data); r < 0.5 {
		t.Errorf("5 kHz tone attenuated to %.2f of input, want passed", r)
	}
}

// TestAmplifierClips checks gain application and full-scale clipping.
func TestAmplifierClips(t *testing.T) {
	amp := NewAmplifier(2)
	in := Buffer{
		Format: BufferFormat{SFormat: S16_LE, Rate: RateSPU, Channels: 1},
		Data:   s16(1000, -1000, 20000, -20000),
	}

	got, err := amp.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := []int16{2000, -2000, math.MaxInt16, math.MinInt16}
	for i, w := range want {
		v := int16(binary.LittleEndian.Uint16(got[2*i:]))
		if v != w {
			t.Errorf("sample %d = %d, want %d", i, v, w)
		}
	}
}
