/*
NAME
  filters.go

DESCRIPTION
  filters.go contains FIR filtering used to condition PCM audio before
  ADPCM encoding: anti-alias lowpass filters matched to the console
  target rates, band filters for cutting rumble or hiss from field
  recordings, and a clipping amplifier for quiet sources.

AUTHOR
  David Sutton <davidsutton@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// antiAliasFraction places the anti-alias cutoff just under the target
// rate's Nyquist frequency, leaving the transition band room to roll
// off before folding.
const antiAliasFraction = 0.45

// AudioFilter applies a transform to the samples of a PCM buffer,
// returning the filtered bytes in the buffer's own format.
type AudioFilter interface {
	Apply(b Buffer) ([]byte, error)
}

// FIRFilter is a windowed-sinc finite impulse response filter: lowpass,
// highpass, or one of the band shapes composed from the two.
type FIRFilter struct {
	coeffs []float64
	band   [2]float64
	format BufferFormat
	taps   int
}

// NewAntiAlias returns the lowpass filter run over audio captured at
// info.Rate before it is decimated to the given console target rate
// (RateXASingle, RateXADouble, RateSPU, or an integer division of
// them). The cutoff sits just below the target's Nyquist frequency so
// the energy the decimator would fold back is attenuated first.
func NewAntiAlias(info BufferFormat, target uint, length int) (*FIRFilter, error) {
	if _, err := DecimationRatio(info.Rate, target); err != nil {
		return nil, err
	}
	return NewLowPass(antiAliasFraction*float64(target), info, length)
}

// NewLowPass returns an FIR filter passing frequencies below fc Hz.
func NewLowPass(fc float64, info BufferFormat, length int) (*FIRFilter, error) {
	return newSincFilter(fc, info, length, [2]float64{0, fc})
}

// NewHighPass returns an FIR filter passing frequencies above fc Hz.
func NewHighPass(fc float64, info BufferFormat, length int) (*FIRFilter, error) {
	return newSincFilter(fc, info, length, [2]float64{fc, 0})
}

// NewBandPass returns an FIR filter passing frequencies between lower
// and upper Hz, built by convolving a highpass with a lowpass.
func NewBandPass(lower, upper float64, info BufferFormat, length int) (*FIRFilter, error) {
	f, lp, hp, err := newBandParts([2]float64{lower, upper}, info, length)
	if err != nil {
		return nil, err
	}

	f.coeffs, err = convolve(hp.coeffs, lp.coeffs)
	if err != nil {
		return nil, fmt.Errorf("could not combine band filter parts: %w", err)
	}
	return f, nil
}

// NewBandStop returns an FIR filter rejecting frequencies between lower
// and upper Hz, built by summing a lowpass at the lower edge with a
// highpass at the upper edge.
func NewBandStop(lower, upper float64, info BufferFormat, length int) (*FIRFilter, error) {
	f, lp, hp, err := newBandParts([2]float64{upper, lower}, info, length)
	if err != nil {
		return nil, err
	}

	f.coeffs = make([]float64, f.taps+1)
	for i := range lp.coeffs {
		f.coeffs[i] = lp.coeffs[i] + hp.coeffs[i]
	}
	return f, nil
}

// Apply convolves the filter with the buffer's samples. The result has
// the input's length: the convolution tails introduced by the filter's
// group delay are trimmed symmetrically, so successive buffer chunks
// stay aligned for the decimator downstream.
func (f *FIRFilter) Apply(b Buffer) ([]byte, error) {
	in, err := toFloats(b.Data)
	if err != nil {
		return nil, fmt.Errorf("could not convert samples to floats: %w", err)
	}

	y, err := convolve(in, f.coeffs)
	if err != nil {
		return nil, fmt.Errorf("could not convolve samples: %w", err)
	}

	half := len(f.coeffs) / 2
	return toBytes(y[half : half+len(in)])
}

// Amplifier scales samples by a fixed factor, clipping at full scale
// rather than wrapping.
type Amplifier struct {
	factor float64
}

// NewAmplifier returns an Amplifier with the given gain factor; the
// magnitude is used so an inverted gain cannot flip phase by accident.
func NewAmplifier(factor float64) *Amplifier {
	return &Amplifier{factor: math.Abs(factor)}
}

// Apply scales the buffer's samples by the amplifier's factor.
func (a *Amplifier) Apply(b Buffer) ([]byte, error) {
	if len(b.Data)%2 != 0 {
		return nil, errors.New("uneven number of bytes (not a whole number of samples)")
	}

	out := make([]byte, len(b.Data))
	for i := 0; i+2 <= len(b.Data); i += 2 {
		v := a.factor * float64(int16(binary.LittleEndian.Uint16(b.Data[i:])))
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(v)))
	}
	return out, nil
}

// newSincFilter builds a windowed-sinc lowpass or highpass kernel. For
// a lowpass, band is {0, fc}; for a highpass, {fc, 0}.
func newSincFilter(fc float64, info BufferFormat, length int, band [2]float64) (*FIRFilter, error) {
	if fc <= 0 || fc >= float64(info.Rate)/2 {
		return nil, fmt.Errorf("cutoff %v Hz out of bounds for rate %v Hz", fc, info.Rate)
	}
	if length <= 0 {
		return nil, errors.New("cannot create filter with length <= 0")
	}

	// The normalised cutoff and the kernel's centre-tap weight follow
	// from which side of the cutoff passes.
	var fd, sign, centre float64
	switch {
	case band[0] == 0:
		fd = band[1] / float64(info.Rate)
		sign = 1
		centre = 2 * fd
	case band[1] == 0:
		fd = band[0] / float64(info.Rate)
		sign = -1
		centre = 1 - 2*fd
	default:
		return nil, errors.New("sinc kernel is lowpass or highpass only")
	}

	f := &FIRFilter{band: band, format: info, taps: length}
	size := length + 1
	f.coeffs = make([]float64, size)

	w := window.FlatTop(size)
	b := 2 * math.Pi * fd
	for n := 0; n < length/2; n++ {
		c := float64(n) - float64(length)/2
		f.coeffs[n] = sign * math.Sin(c*b) / (math.Pi * c) * w[n]
		f.coeffs[size-1-n] = f.coeffs[n]
	}
	f.coeffs[length/2] = centre * w[length/2]

	return f, nil
}

// newBandParts validates the band edges and builds the lowpass and
// highpass halves the band shapes are composed from.
func newBandParts(band [2]float64, info BufferFormat, length int) (f, lp, hp *FIRFilter, err error) {
	nyquist := float64(info.Rate) / 2
	if band[0] <= 0 || band[0] >= nyquist || band[1] <= 0 || band[1] >= nyquist {
		return nil, nil, nil, errors.New("band edges out of bounds")
	}
	if length <= 0 {
		return nil, nil, nil, errors.New("cannot create filter with length <= 0")
	}

	f = &FIRFilter{band: band, format: info, taps: length}
	hp, err = NewHighPass(band[0], info, length)
	if err != nil {
		return nil, nil, nil, err
	}
	lp, err = NewLowPass(band[1], info, length)
	if err != nil {
		return nil, nil, nil, err
	}
	return f, lp, hp, nil
}

// toFloats converts S16_LE bytes to samples in [-1, 1).
func toFloats(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, errors.New("no audio to convert to floats")
	}
	if len(b)%2 != 0 {
		return nil, errors.New("uneven number of bytes (not a whole number of samples)")
	}

	out := make([]float64, len(b)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(b[2*i:]))) / (math.MaxInt16 + 1)
	}
	return out, nil
}

// toBytes converts samples in [-1, 1] back to S16_LE bytes, clipping
// anything the filtering pushed past full scale.
func toBytes(f []float64) ([]byte, error) {
	out := make([]byte, len(f)*2)
	for i, v := range f {
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v*math.MaxInt16)))
	}
	return out, nil
}

// convolve computes the linear convolution of x and h via the frequency
// domain, in O(n log n).
func convolve(x, h []float64) ([]float64, error) {
	if len(x) == 0 || len(h) == 0 {
		return nil, errors.New("convolution requires slices of length > 0")
	}

	n := len(x) + len(h) - 1

	// Pad both signals to the next power of two at or above the linear
	// convolution length.
	padded := 1
	for padded < n {
		padded <<= 1
	}
	x = append(x, make([]float64, padded-len(x))...)
	h = append(h, make([]float64, padded-len(h))...)

	xf, hf := fft.FFTReal(x), fft.FFTReal(h)
	yf := make([]complex128, padded)
	for i := range yf {
		yf[i] = xf[i] * hf[i]
	}

	iy := fft.IFFT(yf)
	y := make([]float64, n)
	for i := range y {
		y[i] = real(iy[i])
	}
	return y, nil
}
