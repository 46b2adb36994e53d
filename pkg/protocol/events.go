// Package protocol implements the wire format of Kraken's v1 streaming API:
// the outbound subscribe frame and a decoder that turns the venue's
// positionally-encoded JSON messages into typed events.
//
// The decoder is a pure function over a single frame. Everything stateful
// (connection handling, fan-out, book reconstruction) lives elsewhere and
// consumes the Event values produced here.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Event is the closed set of messages the decoder produces. Consumers
// type-switch on the concrete variants below.
type Event interface {
	isEvent()
}

// Heartbeat is the venue's keepalive frame. It carries no data.
type Heartbeat struct{}

func (Heartbeat) isEvent() {}

// SystemStatus reports the venue's connection-level status, sent once after
// connecting and again whenever the system state changes.
type SystemStatus struct {
	Status       string
	Version      string
	ConnectionID uint64
}

func (SystemStatus) isEvent() {}

// SubscriptionStatus is the asynchronous acknowledgement (or rejection) of a
// subscribe request. Status is "subscribed", "unsubscribed" or "error";
// ErrorMessage is populated only on rejection.
type SubscriptionStatus struct {
	Status       string
	Pair         string
	ChannelName  string
	ErrorMessage string
}

func (SubscriptionStatus) isEvent() {}

// Side is the taker side of an execution
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType is the order type of the taker order
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Trade is one execution. Price, Volume and Time stay as the venue's decimal
// strings so no precision is lost before the consumer decides how to parse.
type Trade struct {
	Price     string
	Volume    string
	Time      string
	Side      Side
	OrderType OrderType
	Misc      string
}

// TradeUpdate is a batch of executions published on a trade channel
type TradeUpdate struct {
	ChannelID int64
	Pair      string
	Trades    []Trade
}

func (TradeUpdate) isEvent() {}

// BookEntry is one price level of a book message: [price, volume, timestamp],
// all decimal strings.
type BookEntry struct {
	Price     string
	Volume    string
	Timestamp string
}

// UnmarshalJSON decodes the positional entry array. Update entries may carry
// a trailing republish flag as a fourth element; it is ignored.
func (e *BookEntry) UnmarshalJSON(data []byte) error {
	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("book entry is not a string array: %w", err)
	}
	if len(fields) < 3 {
		return fmt.Errorf("book entry has %d fields, want at least 3", len(fields))
	}
	e.Price = fields[0]
	e.Volume = fields[1]
	e.Timestamp = fields[2]
	return nil
}

// BookUpdate is one order-book message: a snapshot (full replacement of the
// carried sides) or a delta against the current book. Either side may be
// empty. Checksum, when present, is the venue's CRC-32 over the top levels.
type BookUpdate struct {
	ChannelID   int64
	ChannelName string
	Pair        string
	Asks        []BookEntry
	Bids        []BookEntry
	IsSnapshot  bool
	Checksum    string
}

func (BookUpdate) isEvent() {}

// ChannelData is a structurally valid data-plane message on a channel this
// decoder does not recognize (e.g. ohlc, spread). The payload is preserved
// raw so callers can decode it themselves or ignore it.
type ChannelData struct {
	ChannelID   int64
	ChannelName string
	Pair        string
	Payload     []json.RawMessage
}

func (ChannelData) isEvent() {}

// Subscription names a channel, with an optional token for private channels
type Subscription struct {
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

// SubscribeRequest is the outbound subscribe frame
type SubscribeRequest struct {
	Event        string       `json:"event"`
	Pairs        []string     `json:"pair"`
	Subscription Subscription `json:"subscription"`
}

// NewSubscribeRequest builds a subscribe frame for the given pairs and
// channel. token may be empty for public channels.
func NewSubscribeRequest(pairs []string, channel, token string) SubscribeRequest {
	return SubscribeRequest{
		Event: "subscribe",
		Pairs: pairs,
		Subscription: Subscription{
			Name:  channel,
			Token: token,
		},
	}
}
