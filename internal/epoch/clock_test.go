package epoch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) Now() time.Time { return f.t }

func TestNew_AlignsToFrequency(t *testing.T) {
	now := &fakeNow{t: time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)}
	c, err := New(time.Hour, now.Now)
	require.NoError(t, err)

	s := c.State()
	assert.Equal(t, time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC), s.Current)
	assert.True(t, s.Current.After(s.Previous))
	assert.True(t, c.IsEpochActive())
	assert.False(t, c.IsEpochFinished())
	assert.Equal(t, 30*time.Minute, c.TimeToNextEpoch())
}

func TestNew_RejectsBadFrequency(t *testing.T) {
	_, err := New(0, nil)
	assert.Error(t, err)
}

func TestActiveWindowAndAdvance(t *testing.T) {
	now := &fakeNow{t: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
	c, err := New(time.Hour, now.Now)
	require.NoError(t, err)
	first := c.State().Current

	now.t = first
	assert.False(t, c.IsEpochActive(), "epoch is over exactly at its boundary")
	assert.Equal(t, time.Duration(0), c.TimeToNextEpoch())

	s := c.Advance()
	assert.Equal(t, first, s.Previous)
	assert.Equal(t, first.Add(time.Hour), s.Current)
	assert.True(t, c.IsEpochActive())
}

func TestAdvance_LateRollSkipsExpiredBoundaries(t *testing.T) {
	now := &fakeNow{t: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
	c, err := New(time.Hour, now.Now)
	require.NoError(t, err)
	first := c.State().Current

	now.t = first.Add(3*time.Hour + 10*time.Minute)
	s := c.Advance()
	assert.Equal(t, first, s.Previous)
	assert.Equal(t, first.Add(4*time.Hour), s.Current)
	assert.True(t, c.IsEpochActive())
	assert.Equal(t, int64(0), s.Current.Unix()%int64(time.Hour/time.Second))
}

func TestPeekDoesNotMutate(t *testing.T) {
	now := &fakeNow{t: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
	c, err := New(time.Hour, now.Now)
	require.NoError(t, err)
	before := c.State()
	_ = c.Peek()
	assert.Equal(t, before, c.State())
}

func TestRestore(t *testing.T) {
	s := State{
		Current:   time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC),
		Previous:  time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Frequency: time.Hour,
	}
	c, err := Restore(s, nil)
	require.NoError(t, err)
	assert.Equal(t, s, c.State())
	assert.Equal(t, s.Current.Unix(), c.State().ID())

	_, err = Restore(State{Current: s.Previous, Previous: s.Current, Frequency: time.Hour}, nil)
	assert.Error(t, err)
}
