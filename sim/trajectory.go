package sim

import "sort"

// A Trajectory records a continuous output of a model. Between two updates
// the output moves linearly from the value set at the last update with the
// slope set at the last update. Finished segments are kept in a
// PiecewiseFunction. The open segment is only evaluated when read.
type Trajectory struct {
	closed *PiecewiseFunction
	start  VTimeInSec
	since  VTimeInSec
	value  float64
	slope  float64
}

// NewTrajectory starts a trajectory at time start with the given value and
// slope per second.
func NewTrajectory(start VTimeInSec, value, slope float64) *Trajectory {
	if !start.IsDefined() {
		panic("trajectory must start at a defined time")
	}

	return &Trajectory{
		closed: NewPiecewiseFunction(),
		start:  start,
		since:  start,
		value:  value,
		slope:  slope,
	}
}

func (tr *Trajectory) valueAt(t VTimeInSec) float64 {
	return tr.value + tr.slope*float64(t-tr.since)
}

// Set closes the open segment at t and starts a new one with the given
// value and slope. A value different from the one reached at t is a jump.
func (tr *Trajectory) Set(t VTimeInSec, value, slope float64) error {
	if !t.IsDefined() || t < tr.since {
		return preconditionf("trajectory updated at %.10f, last update at %.10f",
			t, tr.since)
	}

	if t > tr.since {
		err := tr.closed.Append(tr.since, tr.value, t, tr.valueAt(t))
		if err != nil {
			return err
		}
	}

	tr.since = t
	tr.value = value
	tr.slope = slope

	return nil
}

// SetSlope changes the slope at t, keeping the output continuous.
func (tr *Trajectory) SetSlope(t VTimeInSec, slope float64) error {
	if !t.IsDefined() || t < tr.since {
		return preconditionf("trajectory updated at %.10f, last update at %.10f",
			t, tr.since)
	}

	return tr.Set(t, tr.valueAt(t), slope)
}

// LastUpdate returns the time of the last update.
func (tr *Trajectory) LastUpdate() VTimeInSec {
	return tr.since
}

// At returns the output at t. At the time of an update it returns the value
// set by the update. A t before the start is out of domain.
func (tr *Trajectory) At(t VTimeInSec) (float64, error) {
	if !t.IsDefined() || t < tr.start {
		return 0, ErrOutOfDomain
	}

	if t >= tr.since {
		return tr.valueAt(t), nil
	}

	// The piece starting at t wins over the one ending there.
	pieces := tr.closed.pieces
	i := sort.Search(len(pieces), func(i int) bool {
		return pieces[i].First > t
	})

	if i == 0 {
		return 0, ErrOutOfDomain
	}

	return pieces[i-1].ValueAt(t), nil
}

// Function returns the trajectory up to t as a PiecewiseFunction, with the
// open segment closed at t. The trajectory itself is not modified.
func (tr *Trajectory) Function(t VTimeInSec) (*PiecewiseFunction, error) {
	if !t.IsDefined() || t < tr.since {
		return nil, preconditionf("trajectory sampled at %.10f, last update at %.10f",
			t, tr.since)
	}

	f := &PiecewiseFunction{pieces: tr.closed.Pieces()}
	if err := f.Append(tr.since, tr.value, t, tr.valueAt(t)); err != nil {
		return nil, err
	}

	return f, nil
}
