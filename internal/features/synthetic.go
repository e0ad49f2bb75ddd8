// Package features provides the built-in FeaturesProvider implementations.
// The synthetic provider generates a seeded random-walk market so the
// competition runs end to end without any exchange connectivity; live feeds
// are external collaborators injected by the host process.
package features

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

const (
	emaFastPeriod = 9
	emaSlowPeriod = 26
	rsiPeriod     = 14
)

// SyntheticConfig controls the random-walk generator.
type SyntheticConfig struct {
	Symbols    []string
	StartPrice float64 // initial price per symbol
	Volatility float64 // stddev of per-step log return, e.g. 0.01
	Drift      float64 // mean of per-step log return
	Seed       int64   // 0 picks a time-based seed
	SpreadBps  float64 // quoted bid/ask half-spread
}

// symbolState carries the walk and indicator state for one symbol.
type symbolState struct {
	price    float64
	emaFast  float64
	emaSlow  float64
	avgGain  float64
	avgLoss  float64
	observed int
}

// Synthetic implements domain.FeaturesProvider with a geometric random walk
// plus EMA and RSI enrichment.
type Synthetic struct {
	cfg SyntheticConfig
	rng *rand.Rand

	mu     sync.Mutex
	states map[string]*symbolState
}

// NewSynthetic creates a synthetic provider for the configured symbols.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 100
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.01
	}
	if cfg.SpreadBps <= 0 {
		cfg.SpreadBps = 5
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Synthetic{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		states: make(map[string]*symbolState),
	}
	s.UpdateSymbols(cfg.Symbols)
	return s
}

// UpdateSymbols replaces the tracked symbol set. Walk state for retained
// symbols is preserved; new symbols start at the configured start price.
func (s *Synthetic) UpdateSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*symbolState, len(symbols))
	for _, sym := range symbols {
		if st, ok := s.states[sym]; ok {
			next[sym] = st
			continue
		}
		next[sym] = &symbolState{price: s.cfg.StartPrice}
	}
	s.states = next
}

// Build advances every symbol's walk one step and returns the resulting
// feature vectors. The same call drives indicator updates, so each cycle
// observes a fresh, internally consistent snapshot.
func (s *Synthetic) Build(ctx context.Context) ([]domain.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	out := make([]domain.FeatureVector, 0, len(s.states))
	for sym, st := range s.states {
		open := st.price
		ret := s.cfg.Drift + s.cfg.Volatility*s.rng.NormFloat64()
		st.price = open * math.Exp(ret)

		high := math.Max(open, st.price) * (1 + math.Abs(s.cfg.Volatility*s.rng.NormFloat64())/2)
		low := math.Min(open, st.price) * (1 - math.Abs(s.cfg.Volatility*s.rng.NormFloat64())/2)
		volume := 1_000 * (1 + s.rng.Float64())

		s.updateIndicators(st, open)

		halfSpread := st.price * s.cfg.SpreadBps / 10_000 / 2
		out = append(out, domain.FeatureVector{
			Symbol:    sym,
			Timestamp: now,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     st.price,
			Volume:    volume,
			Bid:       st.price - halfSpread,
			Ask:       st.price + halfSpread,
			Spread:    2 * halfSpread,
			EMAFast:   st.emaFast,
			EMASlow:   st.emaSlow,
			RSI:       rsi(st),
		})
	}
	return out, nil
}

// updateIndicators folds the step's close into EMA and RSI accumulators.
func (s *Synthetic) updateIndicators(st *symbolState, prevClose float64) {
	close := st.price
	if st.observed == 0 {
		st.emaFast = close
		st.emaSlow = close
	} else {
		st.emaFast = ema(close, st.emaFast, emaFastPeriod)
		st.emaSlow = ema(close, st.emaSlow, emaSlowPeriod)

		change := close - prevClose
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		st.avgGain = (st.avgGain*(rsiPeriod-1) + gain) / rsiPeriod
		st.avgLoss = (st.avgLoss*(rsiPeriod-1) + loss) / rsiPeriod
	}
	st.observed++
}

func ema(value, prev float64, period int) float64 {
	k := 2.0 / float64(period+1)
	return value*k + prev*(1-k)
}

func rsi(st *symbolState) float64 {
	if st.observed < rsiPeriod || st.avgLoss == 0 {
		return 0
	}
	rs := st.avgGain / st.avgLoss
	return 100 - 100/(1+rs)
}

var _ domain.FeaturesProvider = (*Synthetic)(nil)
