/*
DESCRIPTION
  pipeline.go provides the per-format encoding paths run by Revid.Run:
  XA sector streaming, SPU/VAG sample encoding, VAGi interleaving, STR
  muxing and SBS packing.

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

package revid

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/psxav/codec/mdec"
	"github.com/ausocean/psxav/codec/spu"
	"github.com/ausocean/psxav/codec/vag"
	"github.com/ausocean/psxav/codec/xa"
	"github.com/ausocean/psxav/container/str"
	"github.com/ausocean/psxav/device"
	"github.com/ausocean/psxav/revid/config"
)

// xaSettings builds the XA codec parameterisation from the config.
func (r *Revid) xaSettings() xa.Settings {
	format := xa.FormatXA
	if r.cfg.Format == config.OutputXACD || r.cfg.Format == config.OutputSTRCD {
		format = xa.FormatXACD
	}
	return xa.Settings{
		Format:        format,
		Stereo:        r.cfg.Channels == 2,
		Frequency:     int(r.cfg.SampleRate),
		BitsPerSample: int(r.cfg.BitDepth),
		FileNumber:    r.cfg.XAFile,
		ChannelNumber: r.cfg.XAChannel,
	}
}

// bsVersion maps the config's BS version enum onto the mdec package's.
func (r *Revid) bsVersion() mdec.Version {
	switch r.cfg.BSVersion {
	case config.BSVersion3:
		return mdec.Version3
	case config.BSVersion3DC:
		return mdec.Version3DC
	default:
		return mdec.Version2
	}
}

// spuLoopStart resolves the SPU loop start in samples: an explicit config
// value wins, otherwise any loop point the input container declared.
func (r *Revid) spuLoopStart() int {
	if r.cfg.Loop {
		return r.cfg.LoopStart
	}
	if r.cfg.NoLoopDetect {
		return -1
	}
	if ms, ok := r.source.LoopPointMS(); ok {
		loop := ms * int(r.cfg.SampleRate) / 1000
		r.cfg.Logger.Info("using loop point from input metadata", "ms", ms, "sample", loop)
		return loop
	}
	return -1
}

// encodeXA encodes the audio source to XA-ADPCM sectors, one sector at a
// time, sharing ADPCM channel state across the whole stream.
func (r *Revid) encodeXA(w io.Writer) error {
	settings := r.xaSettings()
	perSector := xa.SamplesPerSector(settings)
	channels := int(r.cfg.Channels)

	var state xa.State
	sector := make([]byte, xa.BufferSizePerSector(settings))

	for j := 0; r.source.Ensure(perSector*channels, 0); j++ {
		samplesLen := len(r.source.Samples()) / channels
		if samplesLen > perSector {
			samplesLen = perSector
		}
		if samplesLen == 0 {
			break
		}

		length := xa.Encode(settings, &state, r.source.Samples(), samplesLen, j, sector)
		if r.source.EndOfInput() {
			xa.Finalize(settings, sector, length)
		}
		r.source.Retire(samplesLen*channels, 0)

		if _, err := w.Write(sector[:length]); err != nil {
			return errors.Wrap(err, "sector write failed")
		}
	}
	return nil
}

// drainSamples pulls every remaining sample from the source.
func drainSamples(src device.Source) []int16 {
	var samples []int16
	for src.Ensure(1, 0) {
		samples = append(samples, src.Samples()...)
		src.Retire(len(src.Samples()), 0)
	}
	return samples
}

// encodeSPU encodes a mono stream to SPU-ADPCM blocks, applying the loop
// flag state machine, and wraps the result in a VAGp header when the VAG
// format is selected.
func (r *Revid) encodeSPU(w io.Writer) error {
	samples := drainSamples(r.source)
	if len(samples) == 0 {
		return errors.New("audio input provided no samples")
	}

	output := make([]byte, spu.BufferSize(len(samples))+2*spu.BlockSize)
	length := spu.EncodeStream(samples, len(samples), output, spu.Options{
		LoopStart:    r.spuLoopStart(),
		EndFlag:      r.cfg.EndFlag,
		LeadingDummy: r.cfg.LeadingDummy,
	})

	padded := pad(length, int(r.cfg.Alignment))

	if r.cfg.Format == config.OutputVAG {
		hdr := make([]byte, vag.HeaderSize)
		vag.WriteHeader(hdr, vag.Header{
			// Declared size covers the sample blocks only, not the
			// priming or trap blocks around them.
			SizePerChannel: uint32(spu.BufferSize(len(samples))),
			SampleRate:     uint32(r.cfg.SampleRate),
			LoopPoint:      -1,
			Channels:       uint16(r.cfg.Channels),
			Name:           r.cfg.OutputPath,
		})
		if _, err := w.Write(hdr); err != nil {
			return errors.Wrap(err, "header write failed")
		}
	}

	if _, err := w.Write(output[:length]); err != nil {
		return errors.Wrap(err, "sample write failed")
	}
	if padded > length {
		if _, err := w.Write(make([]byte, padded-length)); err != nil {
			return errors.Wrap(err, "padding write failed")
		}
	}
	return nil
}

// encodeSPUInterleaved encodes a multi-channel stream to the VAGi layout:
// channels take turns holding an Interleave-sized span of blocks, with
// each channel's predictor advancing independently.
func (r *Revid) encodeSPUInterleaved(w io.Writer) error {
	channels := int(r.cfg.Channels)
	interleave := int(r.cfg.Interleave)
	bufferSize := pad(interleave, int(r.cfg.Alignment))
	samplesPerChunk := interleave / spu.BlockSize * spu.SamplesPerBlock

	enc := spu.NewInterleavedEncoder(channels)
	chunk := make([]byte, bufferSize)

	var body bytes.Buffer
	chunkCount := 0
	for ; r.source.Ensure(samplesPerChunk*channels, 0); chunkCount++ {
		samplesLen := len(r.source.Samples()) / channels
		if samplesLen > samplesPerChunk {
			samplesLen = samplesPerChunk
		}
		if samplesLen == 0 {
			break
		}

		for ch := 0; ch < channels; ch++ {
			for i := range chunk {
				chunk[i] = 0
			}
			length := enc.EncodeChunk(r.source.Samples(), samplesLen, chunk, ch)
			if length > 0 {
				if r.cfg.EndFlag {
					chunk[length-spu.BlockSize+1] |= spu.LoopRepeat
				} else if r.source.EndOfInput() {
					chunk[length-spu.BlockSize+1] |= spu.LoopEnd
				}
			}
			body.Write(chunk)
		}
		r.source.Retire(samplesLen*channels, 0)
	}
	if chunkCount == 0 {
		return errors.New("audio input provided no samples")
	}

	hdr := make([]byte, pad(vag.HeaderSize, int(r.cfg.Alignment)))
	vag.WriteInterleavedHeader(hdr, vag.Header{
		Interleave:     uint32(interleave),
		SizePerChannel: uint32(chunkCount * interleave),
		SampleRate:     uint32(r.cfg.SampleRate),
		LoopPoint:      r.spuLoopStart(),
		Channels:       uint16(channels),
		Name:           r.cfg.OutputPath,
	}, int(r.cfg.Alignment))

	if _, err := w.Write(hdr); err != nil {
		return errors.Wrap(err, "header write failed")
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return errors.Wrap(err, "sample write failed")
	}
	return nil
}

// encodeSTR interleaves the video source (and the audio source, when one
// is configured) into an STR sector stream.
func (r *Revid) encodeSTR(w io.Writer) error {
	var audio *xa.Settings
	src := str.Source(r.source)
	if r.audioSource != nil {
		settings := r.xaSettings()
		audio = &settings
		src = &mergedSource{audio: r.audioSource, video: r.source}
	}

	format := str.FormatSTR
	switch r.cfg.Format {
	case config.OutputSTRCD:
		format = str.FormatSTRCD
	case config.OutputSTRV:
		format = str.FormatSTRV
	}

	m, err := str.NewMuxer(str.Config{
		Format:        format,
		Version:       r.bsVersion(),
		Width:         int(r.cfg.Width),
		Height:        int(r.cfg.Height),
		FPSNum:        int(r.cfg.FPSNum),
		FPSDen:        int(r.cfg.FPSDen),
		CDSpeed:       int(r.cfg.CDSpeed),
		VideoID:       r.cfg.VideoID,
		TrailingAudio: r.cfg.TrailingAudio,
		Audio:         audio,
	})
	if err != nil {
		return err
	}

	if err := m.Mux(src, w); err != nil {
		return err
	}
	r.cfg.Logger.Info("stream muxed", "frames", m.FrameIndex(), "avgQuantScale", m.AverageQuantScale())
	return nil
}

// encodeSBS packs the video source into fixed-size BS frame slots.
func (r *Revid) encodeSBS(w io.Writer) error {
	frames, err := str.EncodeSBS(str.SBSConfig{
		Version:   r.bsVersion(),
		Width:     int(r.cfg.Width),
		Height:    int(r.cfg.Height),
		Alignment: int(r.cfg.Alignment),
	}, r.source, w)
	if err != nil {
		return err
	}
	r.cfg.Logger.Info("frames packed", "frames", frames)
	return nil
}

// pad rounds length up to the next multiple of alignment.
func pad(length, alignment int) int {
	if alignment <= 0 {
		return length
	}
	return ((length + alignment - 1) / alignment) * alignment
}

// mergedSource pairs an audio-only and a video-only source into the single
// stream the muxer drains. End of input tracks the video side: the stream
// ends with the video track, truncating any excess audio.
type mergedSource struct {
	audio device.Source
	video device.Source
}

func (m *mergedSource) Ensure(samplesNeeded, framesNeeded int) bool {
	okAudio := m.audio.Ensure(samplesNeeded, 0)
	okVideo := m.video.Ensure(0, framesNeeded)
	return okAudio && okVideo
}

func (m *mergedSource) Samples() []int16 { return m.audio.Samples() }
func (m *mergedSource) Frames() [][]byte { return m.video.Frames() }

func (m *mergedSource) Retire(samplesConsumed, framesConsumed int) {
	m.audio.Retire(samplesConsumed, 0)
	m.video.Retire(0, framesConsumed)
}

func (m *mergedSource) EndOfInput() bool { return m.video.EndOfInput() }

func (m *mergedSource) LoopPointMS() (int, bool) { return m.audio.LoopPointMS() }

func (m *mergedSource) Close() error {
	err := m.audio.Close()
	if cerr := m.video.Close(); err == nil {
		err = cerr
	}
	return err
}
