/*
DESCRIPTION
  config_test.go provides testing for the Config struct Validate method.

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

package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestValidateDefaultsSPU(t *testing.T) {
	dl := &dumbLogger{}

	in := Config{Logger: dl, Format: OutputVAG}
	want := Config{
		Logger:     dl,
		Format:     OutputVAG,
		SampleRate: defaultSPUSampleRate,
		Channels:   defaultChannels,
		BitDepth:   defaultBitDepth,
		Alignment:  defaultAlignment,
	}

	if err := in.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if diff := cmp.Diff(want, in); diff != "" {
		t.Errorf("unexpected config after validation (-want +got):\n%s", diff)
	}
}

func TestValidateDefaultsVideo(t *testing.T) {
	dl := &dumbLogger{}

	in := Config{Logger: dl, Format: OutputSBS, Width: 320, Height: 240}
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if in.BSVersion != BSVersion2 {
		t.Errorf("BSVersion = %d, want BSVersion2", in.BSVersion)
	}
	if in.FPSNum != defaultFPSNum || in.FPSDen != defaultFPSDen {
		t.Errorf("frame rate = %d/%d, want %d/%d", in.FPSNum, in.FPSDen, defaultFPSNum, defaultFPSDen)
	}
	if in.Alignment != defaultSBSAlignment {
		t.Errorf("Alignment = %d, want %d", in.Alignment, defaultSBSAlignment)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	dl := &dumbLogger{}
	tests := []struct {
		name string
		in   Config
	}{
		{"no format", Config{Logger: dl}},
		{"bad XA rate", Config{Logger: dl, Format: OutputXA, SampleRate: 44100, Channels: 2, BitDepth: 4}},
		{"unaligned frame size", Config{Logger: dl, Format: OutputSTRV, Width: 100, Height: 96}},
	}
	for _, test := range tests {
		if err := test.in.Validate(); err == nil {
			t.Errorf("%s: Validate succeeded, want an error", test.name)
		}
	}
}
