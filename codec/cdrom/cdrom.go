/*
NAME
  cdrom.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package cdrom builds CD-ROM Mode 1 and Mode 2 Form 1/Form 2 sector
// frames: sync pattern, BCD timecode header, XA subheader, and the 32-bit
// EDC checksum that the XA and STR encoders lay their payloads inside.
// Reed-Solomon ECC parity is intentionally left zero; regenerating it is
// the job of a downstream CD image mastering tool, not this encoder.
package cdrom

import "fmt"

// SectorSize is the size in bytes of a raw CD-ROM sector, sync through ECC.
const SectorSize = 2352

// Offsets within a raw sector.
const (
	OffsetSync      = 0
	OffsetHeader    = 12
	OffsetSubhdr    = 16 // Mode 2 only: two 4-byte copies of the XA subheader.
	OffsetMode1Data = 16
	OffsetMode2Data = 24
)

// Type identifies the sector layout to build and checksum.
type Type int

const (
	Mode1 Type = iota
	Mode2Form1
	Mode2Form2
)

// XA subheader submode bits.
const (
	SubmodeEOR     = 0x01
	SubmodeVideo   = 0x02
	SubmodeAudio   = 0x04
	SubmodeData    = 0x08
	SubmodeTrigger = 0x10
	SubmodeForm2   = 0x20
	SubmodeRT      = 0x40
	SubmodeEOF     = 0x80
)

// XA subheader coding bits.
const (
	CodingMono        = 0x00
	CodingStereo      = 0x01
	CodingChannelMask = 0x03
	CodingFreqDouble  = 0x00
	CodingFreqSingle  = 0x04
	CodingFreqMask    = 0x0C
	CodingBits4       = 0x00
	CodingBits8       = 0x10
	CodingBitsMask    = 0x30
	CodingEmphasis    = 0x40
)

const ChannelMask = 0x1F

const edcPolynomial = 0xD8018001

// toBCD packs a decimal value (0-99) into one byte with each digit in its
// own nibble.
func toBCD(x int) byte {
	return byte(x + (x/10)*6)
}

// InitSector writes the sync pattern, BCD timecode header (from lba+150)
// and, for Mode 2 sectors, a zeroed-then-duplicated XA subheader with the
// DATA submode bit set (callers overwrite it with AUDIO/VIDEO submode and
// coding bits as appropriate). sector must be at least SectorSize bytes.
func InitSector(sector []byte, lba int, typ Type) {
	if len(sector) < SectorSize {
		panic(fmt.Sprintf("cdrom: sector buffer too small: %d < %d", len(sector), SectorSize))
	}

	sector[0] = 0x00
	for i := 1; i < 11; i++ {
		sector[i] = 0xFF
	}
	sector[11] = 0x00

	t := lba + 150
	sector[OffsetHeader+0] = toBCD(t / 4500)
	sector[OffsetHeader+1] = toBCD((t / 75) % 60)
	sector[OffsetHeader+2] = toBCD(t % 75)

	if typ == Mode1 {
		sector[OffsetHeader+3] = 0x01
		return
	}

	sector[OffsetHeader+3] = 0x02
	for i := 0; i < 8; i++ {
		sector[OffsetSubhdr+i] = 0
	}
	sector[OffsetSubhdr] = SubmodeData
	if typ == Mode2Form2 {
		sector[OffsetSubhdr] |= SubmodeForm2
	}
	copy(sector[OffsetSubhdr+4:OffsetSubhdr+8], sector[OffsetSubhdr:OffsetSubhdr+4])
}

// PatchTimecode rewrites the BCD timecode of a raw sector in place from
// lba, for streams assembled before their final disc position is known.
func PatchTimecode(sector []byte, lba int) {
	t := lba + 150
	sector[OffsetHeader+0] = toBCD(t / 4500)
	sector[OffsetHeader+1] = toBCD((t / 75) % 60)
	sector[OffsetHeader+2] = toBCD(t % 75)
}

// CalculateChecksums computes and writes the 32-bit EDC for sector
// in-place, at the offset appropriate to typ. ECC parity bytes (Mode 1 and
// Mode 2 Form 1 only) are never touched; they remain whatever the caller
// initialised them to, per this encoder's EDC-only scope.
func CalculateChecksums(sector []byte, typ Type) {
	var edc uint32
	var offset int

	switch typ {
	case Mode1:
		edc = edcCRC32(sector[:0x810])
		offset = 0x810
	case Mode2Form1:
		edc = edcCRC32(sector[0x10 : 0x10+0x808])
		offset = 0x818
	case Mode2Form2:
		edc = edcCRC32(sector[0x10 : 0x10+0x91C])
		offset = 0x92C
	default:
		panic("cdrom: unknown sector type")
	}

	sector[offset+0] = byte(edc)
	sector[offset+1] = byte(edc >> 8)
	sector[offset+2] = byte(edc >> 16)
	sector[offset+3] = byte(edc >> 24)
}

// edcCRC32 computes the reflected CRC-32 used by the PS1 CD-ROM EDC field:
// polynomial 0xD8018001, LSB-first, with no initial or final XOR.
func edcCRC32(data []byte) uint32 {
	var edc uint32
	for _, b := range data {
		edc ^= uint32(b)
		for j := 0; j < 8; j++ {
			mask := uint32(0)
			if edc&1 != 0 {
				mask = edcPolynomial
			}
			edc = (edc >> 1) ^ mask
		}
	}
	return edc
}
