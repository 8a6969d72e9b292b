/*
NAME
  str.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package str interleaves MDEC-compressed video chunks and XA-ADPCM audio
// sectors into the PS1's .str stream layout: Mode 2 CD-ROM sectors carrying
// 2016-byte video sub-chunks at a fixed audio:video ratio derived from CD
// speed and frame rate. It also packs BS frames into the fixed-slot .sbs
// layout used by games that stream video without CD sector framing.
package str

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/psxav/codec/cdrom"
	"github.com/ausocean/psxav/codec/mdec"
	"github.com/ausocean/psxav/codec/xa"
)

// Format selects the on-disk sector layout.
type Format int

const (
	// FormatSTR writes 2336-byte sectors: subheader through EDC, no sync.
	FormatSTR Format = iota
	// FormatSTRCD writes raw 2352-byte sectors with sync, header and a
	// running BCD timecode, suitable for direct CD image injection.
	FormatSTRCD
	// FormatSTRV writes bare 2048-byte data sectors: sub-chunk header and
	// payload only, no CD framing. Video only.
	FormatSTRV
)

// ChunkDataSize is the video payload carried by one sector's sub-chunk.
const ChunkDataSize = 2016

// chunkHeaderSize is the sub-chunk header prefixed to every video payload.
const chunkHeaderSize = 32

// DefaultVideoID is the sub-chunk type tag most players expect for video.
const DefaultVideoID = 0x8001

// chunkMagic identifies an STR sub-chunk header.
const chunkMagic = 0x0160

// Source is the pull-style supplier of decoded media the muxer drains: PCM
// samples (channel-interleaved int16) and NV21 video frames.
type Source interface {
	// Ensure blocks until the buffers hold at least the requested sample
	// and frame counts, decoding more input as needed. It returns false
	// only once no more data is available and the buffers cannot satisfy
	// the demand.
	Ensure(samples, frames int) bool

	// Samples returns the decoded-but-unconsumed PCM samples.
	Samples() []int16

	// Frames returns the decoded-but-unconsumed video frames.
	Frames() [][]byte

	// Retire consumes samples and frames from the front of the buffers.
	Retire(samples, frames int)

	// EndOfInput reports whether the underlying stream is exhausted.
	EndOfInput() bool
}

// Config parameterises one muxed stream.
type Config struct {
	Format  Format
	Version mdec.Version
	Width   int
	Height  int

	// Frame rate as a rational; 15 fps is FPSNum=15, FPSDen=1.
	FPSNum int
	FPSDen int

	// CDSpeed is the drive speed the stream is authored for: 1 or 2.
	CDSpeed int

	// VideoID is the sub-chunk type tag; DefaultVideoID if zero.
	VideoID uint16

	// TrailingAudio places each interleave block's audio sector after its
	// video sectors instead of before them.
	TrailingAudio bool

	// Audio configures the XA-ADPCM track; nil for a video-only stream.
	Audio *xa.Settings
}

// Muxer schedules the audio/video sector interleave for one stream and
// carries the codec state shared across its sectors.
type Muxer struct {
	cfg     Config
	enc     *mdec.Encoder
	audio   xa.Settings
	state   xa.State
	videoID uint16

	interleave           int
	videoSectorsPerBlock int
	samplesPerSector     int
	channels             int

	// Fractional sectors-per-frame accumulator: each frame is granted
	// baseOverflow/overflowDen sectors, with the remainder carried to the
	// next frame so the ratio holds exactly over the whole stream.
	baseOverflow int
	overflowNum  int
	overflowDen  int

	frameOutput     []byte
	frameIndex      int
	frameDataOffset int
	frameMaxSize    int
	stagedBytesUsed int
	quantScaleSum   int
}

// NewMuxer validates cfg and returns a Muxer ready to interleave one
// stream.
func NewMuxer(cfg Config) (*Muxer, error) {
	if cfg.FPSNum <= 0 || cfg.FPSDen <= 0 {
		return nil, fmt.Errorf("str: invalid frame rate %d/%d", cfg.FPSNum, cfg.FPSDen)
	}
	if cfg.CDSpeed != 1 && cfg.CDSpeed != 2 {
		return nil, fmt.Errorf("str: invalid CD speed %d, want 1 or 2", cfg.CDSpeed)
	}
	if cfg.Format == FormatSTRV && cfg.Audio != nil {
		return nil, fmt.Errorf("str: STRV sectors cannot carry an audio track")
	}

	enc, err := mdec.NewEncoder(cfg.Version, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}

	m := &Muxer{
		cfg:     cfg,
		enc:     enc,
		videoID: cfg.VideoID,
	}
	if m.videoID == 0 {
		m.videoID = DefaultVideoID
	}

	if cfg.Audio != nil {
		m.audio = *cfg.Audio
		if cfg.Format == FormatSTRCD {
			m.audio.Format = xa.FormatXACD
		} else {
			m.audio.Format = xa.FormatXA
		}
		m.samplesPerSector = xa.SamplesPerSector(m.audio)
		m.channels = 1
		if m.audio.Stereo {
			m.channels = 2
		}
		m.interleave = xa.SectorInterleave(m.audio) * cfg.CDSpeed
		m.videoSectorsPerBlock = m.interleave - 1
	} else {
		m.interleave = 1
		m.videoSectorsPerBlock = 1
	}

	m.baseOverflow = 75 * cfg.CDSpeed * m.videoSectorsPerBlock * cfg.FPSDen
	m.overflowDen = m.interleave * cfg.FPSNum

	frameSectors := (m.baseOverflow + m.overflowDen - 1) / m.overflowDen
	m.frameOutput = make([]byte, ChunkDataSize*frameSectors)

	return m, nil
}

// FrameIndex returns the number of frames encoded so far.
func (m *Muxer) FrameIndex() int { return m.frameIndex }

// AverageQuantScale reports the mean quantization scale across all frames
// encoded so far, a proxy for stream quality.
func (m *Muxer) AverageQuantScale() float64 {
	if m.frameIndex == 0 {
		return 0
	}
	return float64(m.quantScaleSum) / float64(m.frameIndex)
}

// framesNeeded returns how many frames the source should pre-buffer so a
// full block of video sectors never stalls waiting on the decoder. The
// floor of two covers the frame being drained plus the one being staged.
func (m *Muxer) framesNeeded() int {
	n := (m.videoSectorsPerBlock*m.overflowDen + m.baseOverflow - 1) / m.baseOverflow
	if n < 2 {
		n = 2
	}
	return n
}

// isVideoSector reports whether sector index j is a video slot. Audio
// occupies slot 0 of each interleave block unless TrailingAudio moves it
// to the last slot.
func (m *Muxer) isVideoSector(j int) bool {
	if m.cfg.Audio == nil {
		return true
	}
	if m.cfg.TrailingAudio {
		return j%m.interleave < m.videoSectorsPerBlock
	}
	return j%m.interleave > 0
}

// Mux drains src, interleaving encoded sectors into w until both the
// input and the staged video frame are exhausted. For a video-only
// configuration every sector is a video slot.
func (m *Muxer) Mux(src Source, w io.Writer) error {
	var sector [cdrom.SectorSize]byte
	for j := 0; !src.EndOfInput() || m.frameDataOffset < m.frameMaxSize; j++ {
		src.Ensure(m.samplesPerSector*m.channels, m.framesNeeded())

		var out []byte
		if m.isVideoSector(j) {
			m.initVideoSector(sector[:], j)
			framesUsed, err := m.fillVideoSector(src.Frames(), sector[:])
			if err != nil {
				return err
			}
			src.Retire(0, framesUsed)

			if m.cfg.Format == FormatSTRCD {
				cdrom.PatchTimecode(sector[:], j)
			}
			cdrom.CalculateChecksums(sector[:], cdrom.Mode2Form1)
			out = m.videoSectorSlice(sector[:])
		} else {
			samplesLen := len(src.Samples()) / m.channels
			if samplesLen > m.samplesPerSector {
				samplesLen = m.samplesPerSector
			}

			// An audio track shorter than the video track starves its
			// slot; widening the video share keeps sectors flowing but
			// drifts the interleave ratio for the remainder.
			if samplesLen == 0 {
				m.videoSectorsPerBlock++
			}

			length := xa.Encode(m.audio, &m.state, src.Samples(), samplesLen, j, sector[:])
			if src.EndOfInput() {
				xa.Finalize(m.audio, sector[:], length)
			}
			src.Retire(samplesLen*m.channels, 0)

			out = sector[:length]
			if m.cfg.Format == FormatSTRCD {
				cdrom.PatchTimecode(out, j)
			}
		}

		if _, err := w.Write(out); err != nil {
			return errors.Wrap(err, "str: sector write failed")
		}
	}
	return nil
}

// initVideoSector frames a raw Mode 2 Form 1 sector for video: sync,
// timecode header, and a DATA|RT subheader matching the audio track's
// file and channel numbers so players can filter on either.
func (m *Muxer) initVideoSector(sector []byte, lba int) {
	cdrom.InitSector(sector, lba, cdrom.Mode2Form1)

	var file, channel byte
	if m.cfg.Audio != nil {
		file = m.audio.FileNumber
		channel = m.audio.ChannelNumber & cdrom.ChannelMask
	}
	sector[cdrom.OffsetSubhdr+0] = file
	sector[cdrom.OffsetSubhdr+1] = channel
	sector[cdrom.OffsetSubhdr+2] = cdrom.SubmodeData | cdrom.SubmodeRT
	sector[cdrom.OffsetSubhdr+3] = 0
	copy(sector[cdrom.OffsetSubhdr+4:cdrom.OffsetSubhdr+8], sector[cdrom.OffsetSubhdr:cdrom.OffsetSubhdr+4])
}

// fillVideoSector stages new frames as the current one drains, then
// writes one sub-chunk header and its 2016-byte payload slice into the
// raw sector, returning how many frames were consumed from frames.
func (m *Muxer) fillVideoSector(frames [][]byte, sector []byte) (framesUsed int, err error) {
	for m.frameDataOffset >= m.frameMaxSize {
		m.frameIndex++
		m.overflowNum += m.baseOverflow
		m.frameMaxSize = m.overflowNum / m.overflowDen * ChunkDataSize
		m.overflowNum %= m.overflowDen
		m.frameDataOffset = 0

		if framesUsed >= len(frames) {
			return framesUsed, fmt.Errorf("str: video stream exhausted at frame %d", m.frameIndex)
		}

		f, err := m.enc.EncodeFrame(frames[framesUsed], m.frameMaxSize)
		if err != nil {
			return framesUsed, errors.Wrapf(err, "str: frame %d", m.frameIndex)
		}
		m.stageFrame(f)
		framesUsed++
	}

	hdr := sector[cdrom.OffsetMode2Data : cdrom.OffsetMode2Data+chunkHeaderSize]
	for i := range hdr {
		hdr[i] = 0
	}

	hdr[0x00] = byte(chunkMagic & 0xFF)
	hdr[0x01] = byte(chunkMagic >> 8)
	hdr[0x02] = byte(m.videoID)
	hdr[0x03] = byte(m.videoID >> 8)

	chunkIndex := m.frameDataOffset / ChunkDataSize
	chunkCount := m.frameMaxSize / ChunkDataSize
	hdr[0x04] = byte(chunkIndex)
	hdr[0x05] = byte(chunkIndex >> 8)
	hdr[0x06] = byte(chunkCount)
	hdr[0x07] = byte(chunkCount >> 8)

	hdr[0x08] = byte(m.frameIndex)
	hdr[0x09] = byte(m.frameIndex >> 8)
	hdr[0x0A] = byte(m.frameIndex >> 16)
	hdr[0x0B] = byte(m.frameIndex >> 24)

	bytesUsed := m.stagedBytesUsed
	hdr[0x0C] = byte(bytesUsed)
	hdr[0x0D] = byte(bytesUsed >> 8)
	hdr[0x0E] = byte(bytesUsed >> 16)
	hdr[0x0F] = byte(bytesUsed >> 24)

	hdr[0x10] = byte(m.cfg.Width)
	hdr[0x11] = byte(m.cfg.Width >> 8)
	hdr[0x12] = byte(m.cfg.Height)
	hdr[0x13] = byte(m.cfg.Height >> 8)

	copy(hdr[0x14:0x1C], m.frameOutput[:8])

	data := sector[cdrom.OffsetMode2Data+chunkHeaderSize:]
	copy(data[:ChunkDataSize], m.frameOutput[m.frameDataOffset:m.frameDataOffset+ChunkDataSize])

	m.frameDataOffset += ChunkDataSize
	return framesUsed, nil
}

// videoSectorSlice trims a raw sector to the stream's on-disk layout.
func (m *Muxer) videoSectorSlice(sector []byte) []byte {
	switch m.cfg.Format {
	case FormatSTRCD:
		return sector[:cdrom.SectorSize]
	case FormatSTRV:
		return sector[cdrom.OffsetMode2Data : cdrom.OffsetMode2Data+2048]
	default:
		return sector[cdrom.OffsetSubhdr:cdrom.SectorSize]
	}
}

// stageFrame copies an encoded frame into the staging buffer, zero-padded
// to its allotted frameMaxSize so trailing chunks read as zero fill.
func (m *Muxer) stageFrame(f *mdec.Frame) {
	for i := 0; i < m.frameMaxSize; i++ {
		m.frameOutput[i] = 0
	}
	f.Header.Put(m.frameOutput)
	copy(m.frameOutput[8:], f.Payload)
	m.stagedBytesUsed = f.BytesUsed()
	m.quantScaleSum += int(f.Header.QuantScale)
}
