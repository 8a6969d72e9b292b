/*
DESCRIPTION
  file_test.go tests the file-backed Source implementations.

AUTHORS
  Scott Barnard <scott@ausocean.org>
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
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ausocean/psxav/codec/pcm"
	"github.com/ausocean/psxav/device"
)

// testLogger satisfies logging.Logger with no output.
type testLogger struct{}

func (testLogger) SetLevel(int8)                    {}
func (testLogger) Log(int8, string, ...interface{}) {}
func (testLogger) Debug(string, ...interface{})     {}
func (testLogger) Info(string, ...interface{})      {}
func (testLogger) Warning(string, ...interface{})   {}
func (testLogger) Error(string, ...interface{})     {}
func (testLogger) Fatal(string, ...interface{})     {}

// writeTestWAV writes n mono 16-bit samples of a ramp to a temp WAV file.
func writeTestWAV(t *testing.T, n, rate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	data := make([]int, n)
	for i := range data {
		data[i] = (i % 64) * 100
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

// TestWAVSourceDecodesAll checks a full pull of a known WAV file.
func TestWAVSourceDecodesAll(t *testing.T) {
	const n = 10000
	path := writeTestWAV(t, n, 44100)

	src, err := NewWAVSource(testLogger{}, path)
	if err != nil {
		t.Fatalf("NewWAVSource: %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 44100 || src.Channels() != 1 {
		t.Fatalf("format = %d Hz %d ch, want 44100 Hz 1 ch", src.SampleRate(), src.Channels())
	}

	var got []int16
	for src.Ensure(1, 0) {
		got = append(got, src.Samples()...)
		src.Retire(len(src.Samples()), 0)
	}
	if src.Err() != nil {
		t.Fatalf("decode error: %v", src.Err())
	}
	if len(got) != n {
		t.Fatalf("decoded %d samples, want %d", len(got), n)
	}
	for i, v := range got[:128] {
		if v != int16((i%64)*100) {
			t.Fatalf("sample %d = %d, want %d", i, v, (i%64)*100)
		}
	}
}

// memSource exposes a fixed sample slice as a Source.
type memSource struct {
	device.Buffer
}

func newMemSource(samples []int16) *memSource {
	s := &memSource{}
	pushed := false
	s.SetPoll(func() bool {
		if pushed {
			return false
		}
		pushed = true
		s.PushSamples(samples)
		return true
	})
	return s
}

func (s *memSource) Close() error { return nil }

// TestResampledDecimates checks the rate-conversion wrapper: a 2:1
// integer ratio averages adjacent mono samples.
func TestResampledDecimates(t *testing.T) {
	in := []int16{100, 200, 300, 500, -100, -300, 0, 0}
	src := newMemSource(in)

	r, err := NewResampled(src, pcm.BufferFormat{
		SFormat:  pcm.S16_LE,
		Rate:     44100,
		Channels: 1,
	}, 22050, false)
	if err != nil {
		t.Fatalf("NewResampled: %v", err)
	}

	var got []int16
	for r.Ensure(1, 0) {
		got = append(got, r.Samples()...)
		r.Retire(len(r.Samples()), 0)
	}
	if r.Err() != nil {
		t.Fatalf("conversion error: %v", r.Err())
	}

	want := []int16{150, 400, -200, 0}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

// TestResampledAntiAliasPassesProgram checks the filtered path: a
// steady mid-scale signal decimates to the same length as the plain
// path and holds its level through the filter.
func TestResampledAntiAliasPassesProgram(t *testing.T) {
	const level = 8000
	in := make([]int16, 1024)
	for i := range in {
		in[i] = level
	}

	r, err := NewResampledAntiAlias(newMemSource(in), pcm.BufferFormat{
		SFormat:  pcm.S16_LE,
		Rate:     75600,
		Channels: 1,
	}, 37800, false)
	if err != nil {
		t.Fatalf("NewResampledAntiAlias: %v", err)
	}

	var got []int16
	for r.Ensure(1, 0) {
		got = append(got, r.Samples()...)
		r.Retire(len(r.Samples()), 0)
	}
	if r.Err() != nil {
		t.Fatalf("conversion error: %v", r.Err())
	}
	if len(got) != len(in)/2 {
		t.Fatalf("got %d samples, want %d", len(got), len(in)/2)
	}

	// The chunk edges carry filter transients; the body must hold the
	// input level.
	for i := len(got) / 4; i < 3*len(got)/4; i++ {
		if got[i] < level*8/10 || got[i] > level*12/10 {
			t.Fatalf("sample %d = %d, want near %d", i, got[i], level)
		}
	}
}

// TestResampledAntiAliasRequiresMono checks the stereo guard on the
// filtered path.
func TestResampledAntiAliasRequiresMono(t *testing.T) {
	format := pcm.BufferFormat{SFormat: pcm.S16_LE, Rate: 88200, Channels: 2}
	if _, err := NewResampledAntiAlias(newMemSource(nil), format, 44100, false); err == nil {
		t.Error("NewResampledAntiAlias with stereo output succeeded, want an error")
	}
}

// TestResampledRejectsNonIntegerRatio checks the constructor guard.
func TestResampledRejectsNonIntegerRatio(t *testing.T) {
	src := newMemSource(nil)
	format := pcm.BufferFormat{SFormat: pcm.S16_LE, Rate: 44100, Channels: 1}
	if _, err := NewResampled(src, format, 18900, false); err == nil {
		t.Error("NewResampled(44100 -> 18900) succeeded, want an error")
	}
}

// TestTailSourceReadsRawPCM checks the non-follow path over a complete
// raw S16_LE file.
func TestTailSourceReadsRawPCM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pcm")
	raw := make([]byte, 2000)
	for i := 0; i < 1000; i++ {
		raw[2*i] = byte(i)
		raw[2*i+1] = byte(i >> 8)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := NewTailSource(testLogger{}, path, false)
	if err != nil {
		t.Fatalf("NewTailSource: %v", err)
	}
	defer src.Close()

	var got []int16
	for src.Ensure(1, 0) {
		got = append(got, src.Samples()...)
		src.Retire(len(src.Samples()), 0)
	}
	if src.Err() != nil {
		t.Fatalf("read error: %v", src.Err())
	}
	if len(got) != 1000 {
		t.Fatalf("read %d samples, want 1000", len(got))
	}
	for i, v := range got {
		if v != int16(i) {
			t.Fatalf("sample %d = %d, want %d", i, v, i)
		}
	}
}
