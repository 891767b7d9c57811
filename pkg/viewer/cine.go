package viewer

import "time"

// Ticker delivers cine frames
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type wallClock struct{}

func (wallClock) NewTicker(d time.Duration) Ticker {
	return wallTicker{time.NewTicker(d)}
}

type wallTicker struct{ t *time.Ticker }

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

// cine is one running playback loop
type cine struct {
	ticker Ticker
	stop   chan struct{}
}

func newCine(clock Clock, interval time.Duration) *cine {
	return &cine{
		ticker: clock.NewTicker(interval),
		stop:   make(chan struct{}),
	}
}

func (c *cine) run(step func()) {
	go func() {
		for {
			select {
			case <-c.ticker.C():
				step()
			case <-c.stop:
				return
			}
		}
	}()
}

// halt stops the loop without waiting for it. A frame already in flight is
// dropped by the controller because the cine it belongs to is no longer current.
func (c *cine) halt() {
	c.ticker.Stop()
	close(c.stop)
}
