package bridge

import (
	"sync"
	"time"
)

// SeqGen hands out strictly increasing sequence numbers for envelopes
// produced by this process. Values derive from wall-clock microsecond
// ticks with a tie-break counter for calls inside the same tick, so
// ordering holds even at sub-millisecond write rates.
type SeqGen struct {
	mu       sync.Mutex
	lastTick int64
	counter  int64
}

func NewSeqGen() *SeqGen {
	return &SeqGen{}
}

// Next returns the next sequence number. The counter resets only when
// the tick advances; if a single tick exhausts its 1000 slots the tick
// is bumped locally to keep values strictly increasing.
func (g *SeqGen) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	tick := time.Now().UnixMicro()
	if tick <= g.lastTick {
		g.counter++
		if g.counter > 999 {
			g.lastTick++
			g.counter = 0
		}
	} else {
		g.lastTick = tick
		g.counter = 0
	}
	return g.lastTick*1000 + g.counter
}
