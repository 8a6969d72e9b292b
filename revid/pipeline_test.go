/*
NAME
  pipeline_test.go

DESCRIPTION
  pipeline_test.go tests the interleaved SPU path and the pipeline's
  small helpers.

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
	"bytes"
	"testing"

	"github.com/ausocean/psxav/revid/config"
)

// TestEncodeSPUInterleavedLayout checks the VAGi layout: an aligned
// header, then per-chunk channel runs of Interleave bytes each.
func TestEncodeSPUInterleavedLayout(t *testing.T) {
	const (
		interleave = 512
		alignment  = 512
		channels   = 2
	)
	samplesPerChunk := interleave / 16 * 28

	// Two full chunks of stereo silence.
	r := Revid{
		cfg: config.Config{
			Format:     config.OutputVAGI,
			SampleRate: 44100,
			Channels:   channels,
			BitDepth:   4,
			Interleave: interleave,
			Alignment:  alignment,
			OutputPath: "music.vag",
			Logger:     (*testLogger)(t),
		},
		source: &stubSource{samples: make([]int16, samplesPerChunk*channels*2)},
	}

	var out bytes.Buffer
	if err := r.encodeSPUInterleaved(&out); err != nil {
		t.Fatalf("encodeSPUInterleaved: %v", err)
	}

	got := out.Bytes()
	if string(got[0:4]) != "VAGi" {
		t.Fatalf("magic = %q, want VAGi", got[0:4])
	}

	// Header padded to alignment, then 2 chunks x 2 channels x 512 bytes.
	wantLen := alignment + 2*channels*interleave
	if len(got) != wantLen {
		t.Fatalf("output length = %d, want %d", len(got), wantLen)
	}

	gotInterleave := uint32(got[0x08]) | uint32(got[0x09])<<8 | uint32(got[0x0A])<<16 | uint32(got[0x0B])<<24
	if gotInterleave != interleave {
		t.Errorf("interleave field = %d, want %d", gotInterleave, interleave)
	}
	perChannel := uint32(got[0x0C])<<24 | uint32(got[0x0D])<<16 | uint32(got[0x0E])<<8 | uint32(got[0x0F])
	if perChannel != 2*interleave {
		t.Errorf("size per channel = %d, want %d", perChannel, 2*interleave)
	}
	if got[0x1E] != channels {
		t.Errorf("channels = %d, want %d", got[0x1E], channels)
	}
}

// TestPad checks the alignment helper's edge cases.
func TestPad(t *testing.T) {
	cases := []struct{ length, alignment, want int }{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{48, 2048, 2048},
		{5, 0, 5},
	}
	for _, c := range cases {
		if got := pad(c.length, c.alignment); got != c.want {
			t.Errorf("pad(%d, %d) = %d, want %d", c.length, c.alignment, got, c.want)
		}
	}
}
