/*
NAME
  dct.go

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

import "math"

// blockSize is the width and height of one DCT block.
const blockSize = 8

// quantBase is the zigzag-ordered base quantization matrix; index 0 is
// the DC coefficient, always scaled by a fixed factor of 8 regardless of
// the frame's chosen quant scale.
var quantBase = [64]int32{
	2, 16, 16, 19, 16, 19, 22, 22,
	22, 22, 22, 22, 26, 24, 26, 27,
	27, 27, 26, 26, 26, 26, 27, 27,
	27, 29, 29, 29, 34, 34, 34, 29,
	29, 29, 27, 27, 29, 29, 32, 32,
	34, 34, 37, 38, 37, 35, 35, 34,
	35, 38, 38, 40, 40, 40, 48, 48,
	46, 46, 56, 56, 58, 69, 69, 83,
}

// zagzig maps natural raster-scan block position to zigzag output
// position.
var zagzig = [64]int{
	0, 1, 5, 6, 14, 15, 27, 28,
	2, 4, 7, 13, 16, 26, 29, 42,
	3, 8, 12, 17, 25, 30, 41, 43,
	9, 11, 18, 24, 31, 40, 44, 53,
	10, 19, 23, 32, 39, 45, 52, 54,
	20, 22, 33, 38, 46, 51, 55, 60,
	21, 34, 37, 47, 50, 56, 59, 61,
	35, 36, 48, 49, 57, 58, 62, 63,
}

// dctScale holds the separable forward-DCT cosine scale factors, scaled
// by 8192 (2^13) and rounded, the way a fixed-point integer DCT avoids floating
// point in the inner loop.
var dctScale [blockSize][blockSize]int32

func init() {
	for x := 0; x < blockSize; x++ {
		for u := 0; u < blockSize; u++ {
			c := 1.0
			if u == 0 {
				c = 1.0 / math.Sqrt2
			}
			dctScale[x][u] = int32(math.Round(8192 * c * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16)))
		}
	}
}

// forwardDCT computes the 8x8 separable forward DCT of block (already
// level-shifted by -128 for luma/chroma), storing the result coefficients
// in natural (row-major) order into out. The output is scaled up by a
// factor of 8 relative to the true DCT, the convention the JPEG integer
// DCT family uses and the convention the quantization matrix assumes.
func forwardDCT(block [blockSize * blockSize]int32, out *[blockSize * blockSize]int32) {
	var tmp [blockSize][blockSize]int64

	for y := 0; y < blockSize; y++ {
		for u := 0; u < blockSize; u++ {
			var sum int64
			for x := 0; x < blockSize; x++ {
				sum += int64(dctScale[x][u]) * int64(block[y*blockSize+x])
			}
			tmp[y][u] = roundShift(sum, 13)
		}
	}

	for u := 0; u < blockSize; u++ {
		for v := 0; v < blockSize; v++ {
			var sum int64
			for y := 0; y < blockSize; y++ {
				sum += int64(dctScale[y][v]) * int64(tmp[y][u])
			}
			// The table scale and the 1/4 DCT normalisation leave 8192*4
			// to divide out; dividing by 4096 instead leaves the result
			// 8x the true DCT.
			out[v*blockSize+u] = int32(roundShift(sum, 12))
		}
	}
}

// roundShift arithmetic-shifts n right by s bits, rounding to nearest
// with ties away from zero.
func roundShift(n int64, s uint) int64 {
	if n >= 0 {
		return (n + (1 << (s - 1))) >> s
	}
	return -((-n + (1 << (s - 1))) >> s)
}

// quantize divides each zigzag-ordered coefficient of in by its scaled
// quantization step (base*scale for AC, base*8 fixed for DC), rounding
// to nearest, and writes the 64 zigzag-ordered results to out.
func quantize(in [blockSize * blockSize]int32, scale int32, out *[64]int32) {
	for i := 0; i < 64; i++ {
		nat := zigzagToNatural(i)
		coeff := in[nat]

		var step int32
		if i == 0 {
			step = quantBase[0] * 8
		} else {
			step = quantBase[i] * scale
		}
		if step == 0 {
			step = 1
		}

		out[i] = divRound(coeff, step)
	}
}

// divRound divides n by d, rounding to nearest with ties away from zero.
func divRound(n, d int32) int32 {
	if d == 0 {
		return 0
	}
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}

var naturalFromZigzag [64]int

func init() {
	for nat, zz := range zagzig {
		naturalFromZigzag[zz] = nat
	}
}

func zigzagToNatural(zz int) int { return naturalFromZigzag[zz] }
