package sim

import (
	"fmt"
	"sort"
)

// A Piece is a linear segment of a trajectory, going from FirstValue at
// First to LastValue at Last.
type Piece struct {
	First      VTimeInSec
	FirstValue float64
	Last       VTimeInSec
	LastValue  float64
}

// ValueAt interpolates the piece at t. The caller makes sure t lies within
// [First, Last].
func (p Piece) ValueAt(t VTimeInSec) float64 {
	switch t {
	case p.First:
		return p.FirstValue
	case p.Last:
		return p.LastValue
	}

	ratio := float64(t-p.First) / float64(p.Last-p.First)

	return p.FirstValue + ratio*(p.LastValue-p.FirstValue)
}

// DomainPolicy decides what a query outside the covered range returns.
// Each call site picks one and sticks to it.
type DomainPolicy int

const (
	// DomainFail returns ErrOutOfDomain.
	DomainFail DomainPolicy = iota

	// DomainClamp returns the value at the nearest end of the range.
	DomainClamp
)

// A PiecewiseFunction approximates a continuously varying scalar with
// linear pieces ordered by time.
//
// The producer appends pieces in time order and is responsible for keeping
// them from overlapping. Consumers only read values.
type PiecewiseFunction struct {
	pieces []Piece
}

// NewPiecewiseFunction creates an empty PiecewiseFunction.
func NewPiecewiseFunction() *PiecewiseFunction {
	return &PiecewiseFunction{}
}

// Append adds a piece after the existing ones. It fails if first > last,
// if a bound is undefined, or if the piece starts before the previous one.
func (f *PiecewiseFunction) Append(
	first VTimeInSec, firstValue float64,
	last VTimeInSec, lastValue float64,
) error {
	if !first.IsDefined() || !last.IsDefined() {
		return preconditionf("piece bounds must be defined, got [%v, %v]",
			first, last)
	}

	if first > last {
		return preconditionf("piece starts at %.10f after it ends at %.10f",
			first, last)
	}

	if n := len(f.pieces); n > 0 && first < f.pieces[n-1].First {
		return preconditionf("piece at %.10f appended after piece at %.10f",
			first, f.pieces[n-1].First)
	}

	f.pieces = append(f.pieces, Piece{
		First:      first,
		FirstValue: firstValue,
		Last:       last,
		LastValue:  lastValue,
	})

	return nil
}

// Len returns the number of pieces.
func (f *PiecewiseFunction) Len() int {
	return len(f.pieces)
}

// Pieces returns a copy of the pieces.
func (f *PiecewiseFunction) Pieces() []Piece {
	pieces := make([]Piece, len(f.pieces))
	copy(pieces, f.pieces)

	return pieces
}

// Domain returns the covered time range. It fails if there is no piece.
func (f *PiecewiseFunction) Domain() (VTimeInSec, VTimeInSec, error) {
	if len(f.pieces) == 0 {
		return 0, 0, fmt.Errorf("%w: empty function", ErrOutOfDomain)
	}

	return f.pieces[0].First, f.pieces[len(f.pieces)-1].Last, nil
}

// Value interpolates the function at t. A t outside the covered range
// returns ErrOutOfDomain.
//
// When t is the boundary between two pieces, the earlier piece resolves it.
func (f *PiecewiseFunction) Value(t VTimeInSec) (float64, error) {
	return f.ValueWith(t, DomainFail)
}

// ValueWith interpolates the function at t and applies the policy when t is
// outside the covered range.
func (f *PiecewiseFunction) ValueWith(
	t VTimeInSec,
	policy DomainPolicy,
) (float64, error) {
	start, end, err := f.Domain()
	if err != nil {
		return 0, err
	}

	if t < start || t > end || !t.IsDefined() {
		if policy != DomainClamp || !t.IsDefined() {
			return 0, fmt.Errorf("%w: %.10f not in [%.10f, %.10f]",
				ErrOutOfDomain, t, start, end)
		}

		if t < start {
			return f.pieces[0].FirstValue, nil
		}

		return f.pieces[len(f.pieces)-1].LastValue, nil
	}

	i := sort.Search(len(f.pieces), func(i int) bool {
		return f.pieces[i].Last >= t
	})

	// Gap between two pieces.
	if t < f.pieces[i].First {
		return 0, fmt.Errorf("%w: %.10f falls between pieces",
			ErrOutOfDomain, t)
	}

	return f.pieces[i].ValueAt(t), nil
}
