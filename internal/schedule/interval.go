package schedule

import (
	"math/rand"
	"sort"
	"time"

	"eventforge/internal/config"
)

// intervalPattern emits ticks at a fixed cadence. Count 0 means an
// unbounded stream. A zero Start anchors the pattern at the wall
// clock of the current run, so every restart replays from "now".
type intervalPattern struct {
	start    time.Time
	base     time.Time
	interval time.Duration
	count    int
	idx      int
}

func newIntervalPattern(cfg config.InputConfig) (Pattern, error) {
	if cfg.Interval <= 0 {
		return nil, &config.ConfigError{Field: "input.interval", Msg: "must be positive"}
	}
	p := &intervalPattern{start: cfg.Start, interval: cfg.Interval.Std(), count: cfg.Count}
	p.Reset()
	return p, nil
}

func (p *intervalPattern) Next() (time.Time, error) {
	if p.count > 0 && p.idx >= p.count {
		return time.Time{}, ErrEndOfStream
	}
	ts := p.base.Add(time.Duration(p.idx) * p.interval)
	p.idx++
	return ts, nil
}

func (p *intervalPattern) Reset() {
	p.idx = 0
	if p.start.IsZero() {
		p.base = time.Now()
	} else {
		p.base = p.start
	}
}

// jitterPattern is an interval pattern with a bounded random spread
// added to every slot.
type jitterPattern struct {
	intervalPattern
	spread time.Duration
	rand   *rand.Rand
}

func newJitterPattern(cfg config.InputConfig) (Pattern, error) {
	if cfg.Interval <= 0 {
		return nil, &config.ConfigError{Field: "input.interval", Msg: "must be positive"}
	}
	if cfg.Spread <= 0 {
		return nil, &config.ConfigError{Field: "input.spread", Msg: "must be positive"}
	}
	p := &jitterPattern{
		intervalPattern: intervalPattern{start: cfg.Start, interval: cfg.Interval.Std(), count: cfg.Count},
		spread:          cfg.Spread.Std(),
		rand:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.Reset()
	return p, nil
}

func (p *jitterPattern) Next() (time.Time, error) {
	ts, err := p.intervalPattern.Next()
	if err != nil {
		return time.Time{}, err
	}
	return ts.Add(time.Duration(p.rand.Int63n(int64(p.spread)))), nil
}

// timestampsPattern replays an explicit, sorted list of timestamps.
type timestampsPattern struct {
	stamps []time.Time
	idx    int
}

func newTimestampsPattern(cfg config.InputConfig) (Pattern, error) {
	if len(cfg.Timestamps) == 0 {
		return nil, &config.ConfigError{Field: "input.timestamps", Msg: "at least one timestamp is required"}
	}
	stamps := make([]time.Time, len(cfg.Timestamps))
	copy(stamps, cfg.Timestamps)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	return &timestampsPattern{stamps: stamps}, nil
}

func (p *timestampsPattern) Next() (time.Time, error) {
	if p.idx >= len(p.stamps) {
		return time.Time{}, ErrEndOfStream
	}
	ts := p.stamps[p.idx]
	p.idx++
	return ts, nil
}

func (p *timestampsPattern) Reset() { p.idx = 0 }
