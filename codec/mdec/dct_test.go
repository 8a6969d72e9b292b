/*
NAME
  dct_test.go

DESCRIPTION
  dct_test.go contains tests for the forward DCT and quantization step.

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

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

// TestForwardDCTFlatBlockIsDCOnly checks that a flat (already
// level-shifted) block produces energy only in the DC coefficient, with
// every AC coefficient at zero.
func TestForwardDCTFlatBlockIsDCOnly(t *testing.T) {
	var block [64]int32
	for i := range block {
		block[i] = 40 // a flat input after -128 level shift.
	}

	var out [64]int32
	forwardDCT(block, &out)

	if out[0] == 0 {
		t.Error("DC coefficient = 0 for a non-zero flat block, want non-zero")
	}
	for i := 1; i < 64; i++ {
		if out[i] != 0 {
			t.Errorf("AC coefficient[%d] = %d, want 0 for a flat block", i, out[i])
		}
	}
}

// refDCT2D computes the true 2-D DCT of an 8x8 block in floating point,
// straight from the transform's defining double sum.
func refDCT2D(block [64]int32) [64]float64 {
	c := func(u int) float64 {
		if u == 0 {
			return 1 / math.Sqrt2
		}
		return 1
	}

	var out [64]float64
	for v := 0; v < blockSize; v++ {
		for u := 0; u < blockSize; u++ {
			var sum float64
			for y := 0; y < blockSize; y++ {
				for x := 0; x < blockSize; x++ {
					sum += float64(block[y*blockSize+x]) *
						math.Cos(float64(2*x+1)*float64(u)*math.Pi/16) *
						math.Cos(float64(2*y+1)*float64(v)*math.Pi/16)
				}
			}
			out[v*blockSize+u] = c(u) * c(v) / 4 * sum
		}
	}
	return out
}

// TestForwardDCTMatchesFloatReference checks the integer DCT against a
// floating-point reference transform: every coefficient must land within
// rounding distance of 8x the true DCT, the scale the quantizer assumes.
func TestForwardDCTMatchesFloatReference(t *testing.T) {
	var block [64]int32
	for i := range block {
		block[i] = int32((i*29)%256 - 128)
	}

	var got [64]int32
	forwardDCT(block, &got)
	want := refDCT2D(block)

	// The fixed-point passes accumulate at most a few units of rounding
	// error; anything larger means the output scale is wrong.
	for i := range got {
		ref := 8 * want[i]
		if !scalar.EqualWithinAbs(float64(got[i]), ref, 10) {
			t.Errorf("coefficient %d = %d, want within 10 of %.2f", i, got[i], ref)
		}
	}
}

// TestQuantizeZigzagsDCFirst checks that the DC coefficient always lands
// in zigzag slot 0 and is divided by a fixed step independent of scale.
func TestQuantizeZigzagsDCFirst(t *testing.T) {
	var nat [64]int32
	nat[0] = 1600

	var lowScale, highScale [64]int32
	quantize(nat, 1, &lowScale)
	quantize(nat, 32, &highScale)

	if lowScale[0] != highScale[0] {
		t.Errorf("DC quantized value changed with scale: %d vs %d, want equal", lowScale[0], highScale[0])
	}
	if lowScale[0] == 0 {
		t.Error("quantized DC = 0, want non-zero for a large input coefficient")
	}
}

// TestQuantizeScalesACByQuantScale checks that larger quant scales shrink
// (or leave unchanged) the magnitude of a quantized AC coefficient.
func TestQuantizeScalesACByQuantScale(t *testing.T) {
	var nat [64]int32
	nat[zigzagToNatural(5)] = 2000

	var lowScale, highScale [64]int32
	quantize(nat, 1, &lowScale)
	quantize(nat, 32, &highScale)

	if abs32(highScale[5]) > abs32(lowScale[5]) {
		t.Errorf("higher quant scale produced a larger coefficient: %d vs %d", highScale[5], lowScale[5])
	}
}

func abs32(n int32) int32 {
	if n < 0 {
		return -n
	}
	return n
}

// TestDivRoundTiesAwayFromZero checks the rounding convention used for
// every coefficient division.
func TestDivRoundTiesAwayFromZero(t *testing.T) {
	cases := []struct{ n, d, want int32 }{
		{5, 2, 3},
		{-5, 2, -3},
		{4, 2, 2},
		{0, 5, 0},
		{3, 4, 1},
	}
	for _, c := range cases {
		if got := divRound(c.n, c.d); got != c.want {
			t.Errorf("divRound(%d, %d) = %d, want %d", c.n, c.d, got, c.want)
		}
	}
}
