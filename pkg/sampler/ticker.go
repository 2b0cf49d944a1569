package sampler

import "time"

// Ticker is a repeating schedule. Stop must guarantee no further sends
// are acted on; the controller also ignores ticks from stale runs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc arms a new Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

// NewTimeTicker wraps time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

type timeTicker struct {
	t *time.Ticker
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }
