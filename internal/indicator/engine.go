package indicator

import (
	"github.com/luksha14/CryptoDataEngine/internal/tick"
)

const (
	DefaultFastPeriod = 20
	DefaultSlowPeriod = 50
)

// symbolState holds one EMA per tracked period for a single symbol
type symbolState struct {
	emas []EMA
}

func (s *symbolState) clone() *symbolState {
	return &symbolState{emas: append([]EMA(nil), s.emas...)}
}

func (s *symbolState) update(period int, price float64) float64 {
	for i := range s.emas {
		if s.emas[i].Period == period {
			s.emas[i] = s.emas[i].Next(price)
			return s.emas[i].Value
		}
	}
	ema := EMA{Period: period}.Next(price)
	s.emas = append(s.emas, ema)
	return ema.Value
}

// Engine computes fast and slow EMAs of the close price per symbol.
// Engine is not safe for concurrent use; the batch processor is its only caller.
type Engine struct {
	fast   int
	slow   int
	states map[string]*symbolState
}

// NewEngine creates an engine tracking the given fast and slow periods
func NewEngine(fast, slow int) *Engine {
	if fast <= 0 {
		fast = DefaultFastPeriod
	}
	if slow <= 0 {
		slow = DefaultSlowPeriod
	}
	return &Engine{
		fast:   fast,
		slow:   slow,
		states: make(map[string]*symbolState),
	}
}

// Periods returns the fast and slow periods
func (e *Engine) Periods() (fast, slow int) {
	return e.fast, e.slow
}

// Symbols returns the number of symbols with indicator state
func (e *Engine) Symbols() int {
	return len(e.states)
}

// Update feeds price into the (symbol, period) average and returns the new value
func (e *Engine) Update(symbol string, period int, price float64) float64 {
	st, ok := e.states[symbol]
	if !ok {
		st = &symbolState{}
		e.states[symbol] = st
	}
	return st.update(period, price)
}

// Value returns the current (symbol, period) average
func (e *Engine) Value(symbol string, period int) (float64, bool) {
	st, ok := e.states[symbol]
	if !ok {
		return 0, false
	}
	for _, ema := range st.emas {
		if ema.Period == period {
			return ema.Value, ema.Initialized
		}
	}
	return 0, false
}

// Stage starts a set of updates that only reach the engine on Commit
func (e *Engine) Stage() *Stage {
	return &Stage{engine: e, pending: make(map[string]*symbolState)}
}

// Stage buffers indicator updates for one batch
type Stage struct {
	engine  *Engine
	pending map[string]*symbolState
}

func (s *Stage) state(symbol string) *symbolState {
	if st, ok := s.pending[symbol]; ok {
		return st
	}
	st := &symbolState{}
	if cur, ok := s.engine.states[symbol]; ok {
		st = cur.clone()
	}
	s.pending[symbol] = st
	return st
}

// Update feeds price into the staged (symbol, period) average
func (s *Stage) Update(symbol string, period int, price float64) float64 {
	return s.state(symbol).update(period, price)
}

// Enrich derives the metrics row for rec, advancing both averages
func (s *Stage) Enrich(rec tick.Record) tick.Metrics {
	st := s.state(rec.Symbol)
	return tick.Metrics{
		TimestampMs: rec.TimestampMs,
		TradeID:     rec.TradeID,
		Symbol:      rec.Symbol,
		VWAPProxy:   (rec.High + rec.Low) / 2,
		SimpleAvg:   (rec.Open + rec.Close) / 2,
		EMAFast:     st.update(s.engine.fast, rec.Close),
		EMASlow:     st.update(s.engine.slow, rec.Close),
	}
}

// Commit applies the staged updates to the engine
func (s *Stage) Commit() {
	for symbol, st := range s.pending {
		s.engine.states[symbol] = st
	}
	s.pending = make(map[string]*symbolState)
}

// Discard drops the staged updates
func (s *Stage) Discard() {
	s.pending = make(map[string]*symbolState)
}
