// Package book maintains a local order book from snapshot and delta messages
// and computes the venue's CRC-32 integrity checksum over the top levels.
//
// A Book is a plain state machine: it is not safe for concurrent use and is
// meant to be owned by a single consumer of the event stream. Each consumer
// that wants a book builds its own from the BookUpdate events it receives.
package book

import (
	"hash/crc32"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/veiloq/kraken-stream/pkg/protocol"
)

// checksumDepth is the number of levels per side the venue hashes
const checksumDepth = 10

// level keeps the venue's original price and volume strings. The checksum is
// defined over those exact strings, so reformatting through a float would
// corrupt it.
type level struct {
	price  string
	volume string
}

// Book holds one side map per book side, keyed by the numeric price value.
// Price strings vary in digit count ("9" vs "10"), so lexical keys would
// order and deduplicate incorrectly; the parsed value is the identity of a
// level.
type Book struct {
	asks map[float64]level
	bids map[float64]level
}

// New creates an empty order book
func New() *Book {
	return &Book{
		asks: make(map[float64]level),
		bids: make(map[float64]level),
	}
}

// Apply folds one book message into the local state. A snapshot replaces both
// sides. An entry whose volume parses to zero deletes its price level;
// anything else inserts or overwrites. Entries apply in payload order, so the
// last entry for a price wins.
func (b *Book) Apply(update protocol.BookUpdate) {
	if update.IsSnapshot {
		b.asks = make(map[float64]level, len(update.Asks))
		b.bids = make(map[float64]level, len(update.Bids))
	}

	applySide(b.asks, update.Asks)
	applySide(b.bids, update.Bids)
}

func applySide(side map[float64]level, entries []protocol.BookEntry) {
	for _, entry := range entries {
		price, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil {
			continue
		}
		if volumeIsZero(entry.Volume) {
			delete(side, price)
		} else {
			side[price] = level{price: entry.Price, volume: entry.Volume}
		}
	}
}

// volumeIsZero reports whether the volume string is numerically zero
// ("0", "0.0", "0.00000000", ...) regardless of its formatting.
func volumeIsZero(volume string) bool {
	d, err := decimal.NewFromString(volume)
	if err != nil {
		return false
	}
	return d.IsZero()
}

// Checksum computes the CRC-32 (IEEE) the venue publishes alongside deltas:
// up to ten asks by ascending price, then up to ten bids by descending price,
// each level contributing its price and volume strings with the decimal point
// and leading zeros removed.
func (b *Book) Checksum() uint32 {
	var input []byte
	for _, lvl := range topLevels(b.asks, true) {
		input = append(input, checksumField(lvl.price)...)
		input = append(input, checksumField(lvl.volume)...)
	}
	for _, lvl := range topLevels(b.bids, false) {
		input = append(input, checksumField(lvl.price)...)
		input = append(input, checksumField(lvl.volume)...)
	}
	return crc32.ChecksumIEEE(input)
}

// Validate compares the venue's checksum string against the local book.
// A remote value that does not parse as an unsigned 32-bit integer fails
// closed.
func (b *Book) Validate(remote string) bool {
	value, err := strconv.ParseUint(remote, 10, 32)
	if err != nil {
		return false
	}
	return uint32(value) == b.Checksum()
}

// BestAsk returns the lowest-priced ask level, if any
func (b *Book) BestAsk() (price, volume string, ok bool) {
	return bestLevel(b.asks, true)
}

// BestBid returns the highest-priced bid level, if any
func (b *Book) BestBid() (price, volume string, ok bool) {
	return bestLevel(b.bids, false)
}

// Depth returns the number of ask and bid levels currently held
func (b *Book) Depth() (asks, bids int) {
	return len(b.asks), len(b.bids)
}

func bestLevel(side map[float64]level, ascending bool) (string, string, bool) {
	best := 0.0
	found := false
	for price := range side {
		if !found || (ascending && price < best) || (!ascending && price > best) {
			best = price
			found = true
		}
	}
	if !found {
		return "", "", false
	}
	lvl := side[best]
	return lvl.price, lvl.volume, true
}

// topLevels returns up to checksumDepth levels sorted by numeric price,
// ascending for asks and descending for bids.
func topLevels(side map[float64]level, ascending bool) []level {
	prices := make([]float64, 0, len(side))
	for price := range side {
		prices = append(prices, price)
	}
	if ascending {
		sort.Float64s(prices)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	}
	if len(prices) > checksumDepth {
		prices = prices[:checksumDepth]
	}

	levels := make([]level, 0, len(prices))
	for _, price := range prices {
		levels = append(levels, side[price])
	}
	return levels
}

// checksumField normalizes one decimal string for hashing: drop the decimal
// point, then strip leading zeros.
func checksumField(s string) string {
	return strings.TrimLeft(strings.ReplaceAll(s, ".", ""), "0")
}
