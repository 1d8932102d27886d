// Package schedule produces the lazy, restartable tick sequences that
// drive pipeline pacing. Time patterns are pull-based iterators; the
// sequence is never materialized eagerly.
package schedule

import (
	"errors"
	"time"
)

// ErrEndOfStream is returned by a Pattern or Source once a finite
// sequence is exhausted. Any other error is unrecoverable for the
// pipeline that owns the source.
var ErrEndOfStream = errors.New("end of tick stream")

// ScheduledTick is a single point in the event-time sequence.
type ScheduledTick struct {
	Timestamp time.Time
	Sequence  uint64
}

// Pattern is the time-pattern plugin contract: an iterator of
// timestamps with a reset. Implementations are registered at startup.
type Pattern interface {
	// Next returns the next scheduled timestamp or ErrEndOfStream.
	Next() (time.Time, error)
	// Reset rewinds the internal cursor so the pattern replays from
	// its beginning on the next call.
	Reset()
}

// Source wraps a Pattern and assigns strictly increasing, gapless
// sequence numbers. Reset restarts the sequence at 0.
type Source struct {
	pattern Pattern
	seq     uint64
}

// NewSource wraps an already constructed pattern.
func NewSource(p Pattern) *Source {
	return &Source{pattern: p}
}

// Next pulls the next tick. It returns ErrEndOfStream when the
// underlying pattern is exhausted.
func (s *Source) Next() (ScheduledTick, error) {
	ts, err := s.pattern.Next()
	if err != nil {
		return ScheduledTick{}, err
	}
	tick := ScheduledTick{Timestamp: ts, Sequence: s.seq}
	s.seq++
	return tick, nil
}

// Reset rewinds the pattern and restarts sequence numbering at 0.
func (s *Source) Reset() {
	s.pattern.Reset()
	s.seq = 0
}
