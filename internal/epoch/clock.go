package epoch

import (
	"errors"
	"fmt"
	"time"
)

// State is the persisted epoch record.
type State struct {
	Current   time.Time     `json:"current"`
	Previous  time.Time     `json:"previous"`
	Frequency time.Duration `json:"frequency"`
}

// ID returns the identity of the active epoch: its end boundary in unix seconds.
func (s State) ID() int64 { return s.Current.Unix() }

// PreviousID returns the identity of the last closed epoch.
func (s State) PreviousID() int64 { return s.Previous.Unix() }

// Clock tracks epoch boundaries. Current is always Frequency-aligned and strictly after Previous.
type Clock struct {
	state State
	now   func() time.Time
}

// New starts a clock whose first epoch ends at the next Frequency-aligned point after now.
func New(frequency time.Duration, now func() time.Time) (*Clock, error) {
	if frequency <= 0 {
		return nil, errors.New("epoch frequency must be positive")
	}
	if now == nil {
		now = time.Now
	}
	t := now().UTC()
	return &Clock{
		state: State{
			Current:   nextBoundary(t, frequency),
			Previous:  t.Truncate(frequency),
			Frequency: frequency,
		},
		now: now,
	}, nil
}

// Restore rebuilds a clock from a persisted record.
func Restore(s State, now func() time.Time) (*Clock, error) {
	if s.Frequency <= 0 {
		return nil, errors.New("epoch frequency must be positive")
	}
	if !s.Current.After(s.Previous) {
		return nil, fmt.Errorf("epoch current %s not after previous %s", s.Current, s.Previous)
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{state: s, now: now}, nil
}

// State returns a copy of the epoch record.
func (c *Clock) State() State { return c.state }

// Now returns the clock's notion of the current time.
func (c *Clock) Now() time.Time { return c.now() }

// IsEpochActive reports whether the current epoch still accepts user operations.
func (c *Clock) IsEpochActive() bool {
	return c.now().Before(c.state.Current)
}

// IsEpochFinished reports whether the current epoch expired and is waiting for a roll.
func (c *Clock) IsEpochFinished() bool {
	return !c.IsEpochActive()
}

// TimeToNextEpoch returns how long until the current epoch expires, or zero once it has.
func (c *Clock) TimeToNextEpoch() time.Duration {
	d := c.state.Current.Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

// Peek returns the record Advance would produce, without changing the clock.
func (c *Clock) Peek() State {
	next := c.state.Current.Add(c.state.Frequency)
	// A late roll skips the boundaries that already passed.
	if late := nextBoundary(c.now().UTC(), c.state.Frequency); late.After(next) {
		next = late
	}
	return State{Current: next, Previous: c.state.Current, Frequency: c.state.Frequency}
}

// Advance moves to the next epoch.
func (c *Clock) Advance() State {
	c.state = c.Peek()
	return c.state
}

func nextBoundary(t time.Time, frequency time.Duration) time.Time {
	return t.Truncate(frequency).Add(frequency)
}
