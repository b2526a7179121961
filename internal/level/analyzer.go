// Package level turns the raw capture signal into a single normalized
// loudness scalar, once per animation frame.
package level

import (
	"math"
	"math/cmplx"

	"github.com/madelynnblue/go-dsp/fft"

	"github.com/soundlabml/genremic/internal/audio"
)

const (
	// FFTSize is the transform length; Bins is the usable half.
	FFTSize = 256
	Bins    = FFTSize / 2

	// Byte-bin conversion mirrors the Web Audio analyser defaults the
	// original visualization was tuned against: magnitudes smoothed
	// with a 0.8 time constant, then mapped from [-100,-30] dBFS onto
	// [0,255].
	minDecibels = -100.0
	maxDecibels = -30.0
	smoothing   = 0.8
)

// Analyzer produces one level per tick from a capture tap. It is bound
// to a single tap; a new capture needs a new Analyzer.
type Analyzer struct {
	tap      *audio.Tap
	window   [FFTSize]float64
	samples  [FFTSize]float64
	windowed [FFTSize]float64
	smoothed [Bins]float64
}

// New creates an analyzer over the given raw-signal tap.
func New(tap *audio.Tap) *Analyzer {
	a := &Analyzer{tap: tap}
	// Blackman window, as applied by the reference analyser.
	for i := range a.window {
		x := 2 * math.Pi * float64(i) / float64(FFTSize-1)
		a.window[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return a
}

// Level computes the current frame's normalized level: the mean of the
// 128 byte-magnitude frequency bins divided by 255. Result is in [0,1].
func (a *Analyzer) Level() float64 {
	frame := a.frame()

	var sum float64
	for _, b := range frame {
		sum += float64(b)
	}
	return sum / Bins / 255.0
}

// frame takes a snapshot of the frequency-bin magnitudes as bytes in
// [0,255]. The snapshot is ephemeral; nothing is retained between
// ticks except the magnitude smoothing state.
func (a *Analyzer) frame() [Bins]byte {
	a.tap.Snapshot(a.samples[:])
	for i, s := range a.samples {
		a.windowed[i] = s * a.window[i]
	}

	spectrum := fft.FFTReal(a.windowed[:])

	var frame [Bins]byte
	for i := 0; i < Bins; i++ {
		mag := cmplx.Abs(spectrum[i]) / FFTSize
		a.smoothed[i] = smoothing*a.smoothed[i] + (1-smoothing)*mag

		db := -math.MaxFloat64
		if a.smoothed[i] > 0 {
			db = 20 * math.Log10(a.smoothed[i])
		}

		v := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		frame[i] = byte(v)
	}
	return frame
}
