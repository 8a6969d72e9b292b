/*
NAME
  cdrom_test.go

DESCRIPTION
  cdrom_test.go contains tests for the cdrom package.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package cdrom

import "testing"

// TestCalculateChecksumsZeroedForm2 checks that an all-zero Mode 2 Form 2
// payload produces an all-zero EDC, the simplest possible fixed point of
// the CRC.
func TestCalculateChecksumsZeroedForm2(t *testing.T) {
	sector := make([]byte, SectorSize)
	CalculateChecksums(sector, Mode2Form2)
	for i := 0; i < 4; i++ {
		if sector[0x92C+i] != 0 {
			t.Errorf("edc[%d] = 0x%02x, want 0x00", i, sector[0x92C+i])
		}
	}
}

// TestCalculateChecksumsForm1Offset checks the EDC is written at the
// documented Mode 2 Form 1 offset and is sensitive to the payload.
func TestCalculateChecksumsForm1Offset(t *testing.T) {
	sector := make([]byte, SectorSize)
	sector[0x10] = 0xAB
	CalculateChecksums(sector, Mode2Form1)

	zero := make([]byte, SectorSize)
	CalculateChecksums(zero, Mode2Form1)

	same := true
	for i := 0; i < 4; i++ {
		if sector[0x818+i] != zero[0x818+i] {
			same = false
		}
	}
	if same {
		t.Error("EDC unchanged despite differing payload")
	}
}

// TestInitSectorBCDTimecodeMonotonic checks that the BCD timecode derived
// from increasing LBAs is itself increasing across the frame field's
// rollover at 75 into the next second, matching the CD-ROM timecode
// format.
func TestInitSectorBCDTimecodeMonotonic(t *testing.T) {
	prevM, prevS, prevF := -1, -1, -1
	for lba := 0; lba < 300; lba += 7 {
		sector := make([]byte, SectorSize)
		InitSector(sector, lba, Mode1)
		m := int(sector[OffsetHeader+0])
		s := int(sector[OffsetHeader+1])
		f := int(sector[OffsetHeader+2])

		cur := m<<16 | s<<8 | f
		prev := prevM<<16 | prevS<<8 | prevF
		if lba > 0 && cur <= prev {
			t.Errorf("lba=%d timecode %02x:%02x:%02x did not increase past previous", lba, m, s, f)
		}
		prevM, prevS, prevF = m, s, f
	}
}

// TestInitSectorMode1Mode2 checks the mode byte and subheader duplication.
func TestInitSectorMode1Mode2(t *testing.T) {
	mode1 := make([]byte, SectorSize)
	InitSector(mode1, 0, Mode1)
	if mode1[OffsetHeader+3] != 0x01 {
		t.Errorf("mode1 mode byte = 0x%02x, want 0x01", mode1[OffsetHeader+3])
	}

	mode2 := make([]byte, SectorSize)
	InitSector(mode2, 0, Mode2Form2)
	if mode2[OffsetHeader+3] != 0x02 {
		t.Errorf("mode2 mode byte = 0x%02x, want 0x02", mode2[OffsetHeader+3])
	}
	if mode2[OffsetSubhdr] != SubmodeData|SubmodeForm2 {
		t.Errorf("subheader submode = 0x%02x, want 0x%02x", mode2[OffsetSubhdr], SubmodeData|SubmodeForm2)
	}
	for i := 0; i < 4; i++ {
		if mode2[OffsetSubhdr+i] != mode2[OffsetSubhdr+4+i] {
			t.Errorf("subheader not duplicated at byte %d", i)
		}
	}
}
