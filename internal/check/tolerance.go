// Package check runs the cross-backend equivalence suite: a catalogue of
// operation cases executed on a reference handler and on another handler,
// with outputs compared under a float32 tolerance model.
package check

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

// Tolerance is an allclose bound: |got - want| <= Atol + Rtol*|want|.
type Tolerance struct {
	Atol float64
	Rtol float64
}

// DefaultTolerance suits float32 kernels whose summation order differs
// between backends.
func DefaultTolerance() Tolerance {
	return Tolerance{Atol: 1e-5, Rtol: 1e-4}
}

// Exact requires identical values.
var Exact = Tolerance{}

// Parity accumulates error statistics over compared elements.
type Parity struct {
	Count      int
	Mismatches int
	MaxAbs     float64
	MaxRel     float64
	MaxULP     int64

	// First mismatch, for reporting.
	FirstIndex    int
	FirstWant     float32
	FirstGot      float32
	firstRecorded bool
}

// OK reports whether every element was within tolerance.
func (p *Parity) OK() bool {
	return p.Mismatches == 0
}

func (p *Parity) String() string {
	s := fmt.Sprintf("%d elements, max abs %.3g, max rel %.3g, max ulp %d", p.Count, p.MaxAbs, p.MaxRel, p.MaxULP)
	if p.Mismatches > 0 {
		s += fmt.Sprintf("; %d mismatches, first at %d: want %v got %v",
			p.Mismatches, p.FirstIndex, p.FirstWant, p.FirstGot)
	}
	return s
}

// Add compares one element pair.
func (p *Parity) Add(i int, want, got float32, tol Tolerance) {
	p.Count++
	ok := within(want, got, tol)
	if !math32.IsNaN(want) && !math32.IsNaN(got) && !math32.IsInf(want, 0) && !math32.IsInf(got, 0) {
		abs := math.Abs(float64(got) - float64(want))
		p.MaxAbs = max(p.MaxAbs, abs)
		if want != 0 {
			p.MaxRel = max(p.MaxRel, abs/math.Abs(float64(want)))
		}
	}
	p.MaxULP = max(p.MaxULP, ulpDiff(want, got))
	if !ok {
		p.Mismatches++
		if !p.firstRecorded {
			p.FirstIndex, p.FirstWant, p.FirstGot, p.firstRecorded = i, want, got, true
		}
	}
}

// within treats NaN as equal to NaN and infinities as equal when their
// signs agree.
func within(want, got float32, tol Tolerance) bool {
	switch {
	case math32.IsNaN(want) || math32.IsNaN(got):
		return math32.IsNaN(want) && math32.IsNaN(got)
	case math32.IsInf(want, 0) || math32.IsInf(got, 0):
		return want == got
	}
	diff := math.Abs(float64(got) - float64(want))
	return diff <= tol.Atol+tol.Rtol*math.Abs(float64(want))
}

// Compare checks got against want element by element. Slices of different
// length count every missing element as a mismatch.
func Compare(want, got []float32, tol Tolerance) Parity {
	var p Parity
	n := min(len(want), len(got))
	for i := 0; i < n; i++ {
		p.Add(i, want[i], got[i], tol)
	}
	if extra := max(len(want), len(got)) - n; extra > 0 {
		p.Count += extra
		p.Mismatches += extra
		if !p.firstRecorded {
			p.FirstIndex, p.firstRecorded = n, true
		}
	}
	return p
}

// CompareInt32 checks index tensors, which must match exactly.
func CompareInt32(want, got []int32) Parity {
	var p Parity
	n := max(len(want), len(got))
	for i := 0; i < n; i++ {
		p.Count++
		if i < len(want) && i < len(got) && want[i] == got[i] {
			continue
		}
		p.Mismatches++
		if !p.firstRecorded {
			p.FirstIndex, p.firstRecorded = i, true
			if i < len(want) {
				p.FirstWant = float32(want[i])
			}
			if i < len(got) {
				p.FirstGot = float32(got[i])
			}
		}
	}
	return p
}

// ulpDiff counts representable float32 values between a and b.
func ulpDiff(a, b float32) int64 {
	if a == b {
		return 0
	}
	if math32.IsNaN(a) || math32.IsNaN(b) || math32.IsInf(a, 0) || math32.IsInf(b, 0) {
		if math32.IsNaN(a) && math32.IsNaN(b) {
			return 0
		}
		return math.MaxInt32
	}
	return abs64(ordered(a) - ordered(b))
}

// ordered maps float32 bits onto a monotonic integer line through zero.
func ordered(f float32) int64 {
	bits := int64(math.Float32bits(f))
	if bits&(1<<31) != 0 {
		return -(bits &^ (1 << 31))
	}
	return bits
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
