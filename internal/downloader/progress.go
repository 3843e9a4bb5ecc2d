package downloader

import "time"

// Progress is a point-in-time snapshot of a running transfer. Total carries
// types.LengthUnknown when the stream length was not reported; Fraction is
// zero in that case.
type Progress struct {
	Received int64
	Total    int64
	Fraction float64
	Bps      float64
	Elapsed  time.Duration
}

// progressEmitter rate-limits progress callbacks to one per interval. The
// final snapshot bypasses the limit so consumers always see the end state.
type progressEmitter struct {
	fn       func(Progress)
	interval time.Duration
	total    int64
	started  time.Time
	lastEmit time.Time
}

func newProgressEmitter(fn func(Progress), interval time.Duration, total int64, started time.Time) *progressEmitter {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &progressEmitter{fn: fn, interval: interval, total: total, started: started}
}

func (p *progressEmitter) maybeEmit(received int64) {
	if p.fn == nil {
		return
	}
	now := time.Now()
	if !p.lastEmit.IsZero() && now.Sub(p.lastEmit) < p.interval {
		return
	}
	p.lastEmit = now
	p.fn(p.snapshot(received, now))
}

func (p *progressEmitter) emitFinal(received int64) {
	if p.fn == nil {
		return
	}
	p.fn(p.snapshot(received, time.Now()))
}

func (p *progressEmitter) snapshot(received int64, now time.Time) Progress {
	elapsed := now.Sub(p.started)
	snap := Progress{
		Received: received,
		Total:    p.total,
		Elapsed:  elapsed,
	}
	if elapsed > 0 {
		snap.Bps = float64(received) / elapsed.Seconds()
	}
	if p.total > 0 {
		snap.Fraction = float64(received) / float64(p.total)
	}
	return snap
}
