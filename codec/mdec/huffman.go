/*
NAME
  huffman.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mdec

// code packs a Huffman code's bit count and value the way the three
// lookup maps store it: bits in the high byte, value in the low 24 bits.
func code(bits int, value uint32) uint32 {
	return uint32(bits)<<24 | (value & 0xFFFFFF)
}

// dcChromaClass indexes the per-channel last-DC-value and DC Huffman
// tables. Cr and Cb share one Huffman tree; Y gets its own, longer one.
type dcChromaClass int

const (
	classCr dcChromaClass = iota
	classCb
	classY
)

// acTreeEntry is one row of the AC run/level Huffman tree: a run of
// `zeroes` zero coefficients followed by a coefficient of magnitude
// `value`, coded in `bits` bits as `code`.
type acTreeEntry struct {
	bits   int
	code   uint32
	zeroes int
	value  int
}

// acHuffmanTree is the 111-entry table mapping (zero-run, coefficient
// magnitude) pairs to variable-length codes. Each entry here stands for
// both the positive and negative coefficient of the same magnitude, which
// buildACMap expands into two map slots.
var acHuffmanTree = []acTreeEntry{
	{2, 0x3, 0, 1},
	{3, 0x3, 1, 1},
	{4, 0x4, 0, 2},
	{4, 0x5, 2, 1},
	{5, 0x05, 0, 3},
	{5, 0x06, 4, 1},
	{5, 0x07, 3, 1},
	{6, 0x04, 7, 1},
	{6, 0x05, 6, 1},
	{6, 0x06, 1, 2},
	{6, 0x07, 5, 1},
	{7, 0x04, 2, 2},
	{7, 0x05, 9, 1},
	{7, 0x06, 0, 4},
	{7, 0x07, 8, 1},
	{8, 0x20, 13, 1},
	{8, 0x21, 0, 6},
	{8, 0x22, 12, 1},
	{8, 0x23, 11, 1},
	{8, 0x24, 3, 2},
	{8, 0x25, 1, 3},
	{8, 0x26, 0, 5},
	{8, 0x27, 10, 1},
	{10, 0x008, 16, 1},
	{10, 0x009, 5, 2},
	{10, 0x00A, 0, 7},
	{10, 0x00B, 2, 3},
	{10, 0x00C, 1, 4},
	{10, 0x00D, 15, 1},
	{10, 0x00E, 14, 1},
	{10, 0x00F, 4, 2},
	{12, 0x010, 0, 11},
	{12, 0x011, 8, 2},
	{12, 0x012, 4, 3},
	{12, 0x013, 0, 10},
	{12, 0x014, 2, 4},
	{12, 0x015, 7, 2},
	{12, 0x016, 21, 1},
	{12, 0x017, 20, 1},
	{12, 0x018, 0, 9},
	{12, 0x019, 19, 1},
	{12, 0x01A, 18, 1},
	{12, 0x01B, 1, 5},
	{12, 0x01C, 3, 3},
	{12, 0x01D, 0, 8},
	{12, 0x01E, 6, 2},
	{12, 0x01F, 17, 1},
	{13, 0x0010, 10, 2},
	{13, 0x0011, 9, 2},
	{13, 0x0012, 5, 3},
	{13, 0x0013, 3, 4},
	{13, 0x0014, 2, 5},
	{13, 0x0015, 1, 7},
	{13, 0x0016, 1, 6},
	{13, 0x0017, 0, 15},
	{13, 0x0018, 0, 14},
	{13, 0x0019, 0, 13},
	{13, 0x001A, 0, 12},
	{13, 0x001B, 26, 1},
	{13, 0x001C, 25, 1},
	{13, 0x001D, 24, 1},
	{13, 0x001E, 23, 1},
	{13, 0x001F, 22, 1},
	{14, 0x0010, 0, 31},
	{14, 0x0011, 0, 30},
	{14, 0x0012, 0, 29},
	{14, 0x0013, 0, 28},
	{14, 0x0014, 0, 27},
	{14, 0x0015, 0, 26},
	{14, 0x0016, 0, 25},
	{14, 0x0017, 0, 24},
	{14, 0x0018, 0, 23},
	{14, 0x0019, 0, 22},
	{14, 0x001A, 0, 21},
	{14, 0x001B, 0, 20},
	{14, 0x001C, 0, 19},
	{14, 0x001D, 0, 18},
	{14, 0x001E, 0, 17},
	{14, 0x001F, 0, 16},
	{15, 0x0010, 0, 40},
	{15, 0x0011, 0, 39},
	{15, 0x0012, 0, 38},
	{15, 0x0013, 0, 37},
	{15, 0x0014, 0, 36},
	{15, 0x0015, 0, 35},
	{15, 0x0016, 0, 34},
	{15, 0x0017, 0, 33},
	{15, 0x0018, 0, 32},
	{15, 0x0019, 1, 14},
	{15, 0x001A, 1, 13},
	{15, 0x001B, 1, 12},
	{15, 0x001C, 1, 11},
	{15, 0x001D, 1, 10},
	{15, 0x001E, 1, 9},
	{15, 0x001F, 1, 8},
	{16, 0x0010, 1, 18},
	{16, 0x0011, 1, 17},
	{16, 0x0012, 1, 16},
	{16, 0x0013, 1, 15},
	{16, 0x0014, 6, 3},
	{16, 0x0015, 16, 2},
	{16, 0x0016, 15, 2},
	{16, 0x0017, 14, 2},
	{16, 0x0018, 13, 2},
	{16, 0x0019, 12, 2},
	{16, 0x001A, 11, 2},
	{16, 0x001B, 31, 1},
	{16, 0x001C, 30, 1},
	{16, 0x001D, 29, 1},
	{16, 0x001E, 28, 1},
	{16, 0x001F, 27, 1},
}

// dcTreeEntry is one row of a DC delta Huffman tree: a prefix code of
// `bits` bits, followed by `magBits`+1 more bits carrying the signed delta
// payload.
type dcTreeEntry struct {
	bits    int
	code    uint32
	magBits int
}

// dcChromaHuffmanTree codes DC deltas for the Cr and Cb planes.
var dcChromaHuffmanTree = []dcTreeEntry{
	{2, 0x1, 0},
	{2, 0x2, 1},
	{3, 0x6, 2},
	{4, 0xE, 3},
	{5, 0x1E, 4},
	{6, 0x3E, 5},
	{7, 0x7E, 6},
	{8, 0xFE, 7},
}

// dcLumaHuffmanTree codes DC deltas for the Y plane; it differs from the
// chroma tree in its prefix codes, and covers the same magnitude classes.
var dcLumaHuffmanTree = []dcTreeEntry{
	{2, 0x0, 0},
	{2, 0x1, 1},
	{3, 0x5, 2},
	{3, 0x6, 3},
	{4, 0xE, 4},
	{5, 0x1E, 5},
	{6, 0x3E, 6},
	{7, 0x7E, 7},
}

// tables holds the three precomputed lookup maps the per-block coder
// indexes directly rather than walking a Huffman tree: fast, at the cost
// of a few hundred KiB of memory, built once per Encoder.
type tables struct {
	ac    [0x10000]uint32 // index: (zeroes<<10)|(level&0x3FF)
	dc    [3 * 0x200]uint32
	clamp [0x10000]int16 // index: raw divisor output as uint16
}

func newTables() *tables {
	t := &tables{}
	t.buildClampAndDefaultAC()
	t.buildAC()

	// The zero-delta codes are not part of either tree's magnitude
	// expansion: chroma planes code it in two bits, luma in three.
	t.dc[(int(classCr)<<9)|0] = code(2, 0x0)
	t.dc[(int(classCb)<<9)|0] = code(2, 0x0)
	t.dc[(int(classY)<<9)|0] = code(3, 0x4)

	t.buildDC(classCr, dcChromaHuffmanTree)
	t.buildDC(classCb, dcChromaHuffmanTree)
	t.buildDC(classY, dcLumaHuffmanTree)
	return t
}

// buildClampAndDefaultAC fills the clamp map (saturate to the legal 10-bit
// signed coefficient range) and seeds every AC map slot with the escape
// code, which buildAC then overrides wherever a real table entry exists.
func (t *tables) buildClampAndDefaultAC() {
	for i := 0; i <= 0xFFFF; i++ {
		t.ac[i] = code(6+16, (0x1<<16)|uint32(i))

		coeff := int16(i)
		switch {
		case coeff < -0x200:
			coeff = -0x200
		case coeff > +0x1FE:
			coeff = +0x1FE // 0x1FF is the v2 end-of-frame marker.
		}
		t.clamp[i] = coeff
	}
}

// buildAC overlays the precomputed tree entries onto the AC map, one slot
// each for the positive and negative coefficient of the same magnitude.
func (t *tables) buildAC() {
	for _, e := range acHuffmanTree {
		bits := e.bits + 1
		base := e.code

		pos := (e.zeroes << 10) | (e.value & 0x3FF)
		neg := (e.zeroes << 10) | ((-e.value) & 0x3FF)

		t.ac[pos] = code(bits, (base<<1)|0)
		t.ac[neg] = code(bits, (base<<1)|1)
	}
}

// buildDC expands tree into the DC map for the given chroma class: every
// tree row is expanded across its full magnitude suffix, covering positive
// and negative deltas symmetrically. Index 0 is never written here; the
// fixed zero-delta codes are installed by newTables before expansion.
func (t *tables) buildDC(class dcChromaClass, tree []dcTreeEntry) {
	base := int(class) << 9

	for _, e := range tree {
		bits := e.bits + 1 + e.magBits
		posOffset := 1 << e.magBits
		negOffset := posOffset*2 - 1

		for j := 0; j < (1 << e.magBits); j++ {
			pos := (j + posOffset) & 0x1FF
			neg := (j - negOffset) & 0x1FF

			t.dc[base+pos] = code(bits, (e.code<<uint(e.magBits+1))|uint32(1<<e.magBits)|uint32(j))
			t.dc[base+neg] = code(bits, (e.code<<uint(e.magBits+1))|uint32(0<<e.magBits)|uint32(j))
		}
	}
}
