// Package candle rolls individual trade prints into fixed-interval OHLCV
// candles. Like the order book, an Aggregator is a single-owner state
// machine fed from one consumer's event stream; it holds no locks.
package candle

import (
	"strconv"

	"github.com/veiloq/kraken-stream/pkg/protocol"
)

// Candle is one OHLCV aggregate. StartTime is bucket-aligned: always a
// multiple of Interval.
type Candle struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	StartTime int64
	Interval  int64
}

// Aggregator accumulates trades into the one currently-open candle. Closed
// candles are handed to the caller through CheckFlush and not retained.
//
// The calling contract: for each trade, in order, call CheckFlush with the
// trade's time first, then Update. Updating with a trade from a newer bucket
// silently discards any candle that was not extracted first.
type Aggregator struct {
	interval int64
	current  *Candle
}

// NewAggregator creates an aggregator producing candles of the given
// interval in seconds.
func NewAggregator(intervalSeconds int64) *Aggregator {
	return &Aggregator{interval: intervalSeconds}
}

// Interval returns the candle interval in seconds
func (a *Aggregator) Interval() int64 {
	return a.interval
}

// bucketStart aligns a trade timestamp down to its bucket boundary
func (a *Aggregator) bucketStart(t float64) int64 {
	return int64(t) / a.interval * a.interval
}

// CheckFlush closes and returns the open candle when candidateTime falls in
// a later bucket. The candle is extracted exactly once: a second call with
// the same time returns nothing.
func (a *Aggregator) CheckFlush(candidateTime float64) (Candle, bool) {
	if a.current == nil {
		return Candle{}, false
	}
	if a.bucketStart(candidateTime) <= a.current.StartTime {
		return Candle{}, false
	}

	closed := *a.current
	a.current = nil
	return closed, true
}

// Update folds one trade into the open candle, or seeds a fresh candle when
// none is open or the trade belongs to a different bucket.
func (a *Aggregator) Update(trade protocol.Trade) {
	price, _ := strconv.ParseFloat(trade.Price, 64)
	volume, _ := strconv.ParseFloat(trade.Volume, 64)
	t, _ := strconv.ParseFloat(trade.Time, 64)

	start := a.bucketStart(t)

	if a.current != nil && a.current.StartTime == start {
		if price > a.current.High {
			a.current.High = price
		}
		if price < a.current.Low {
			a.current.Low = price
		}
		a.current.Close = price
		a.current.Volume += volume
		return
	}

	a.current = &Candle{
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    volume,
		StartTime: start,
		Interval:  a.interval,
	}
}
