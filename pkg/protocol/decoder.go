package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedMessage wraps every structural decode failure: frames that are
// not valid JSON, data arrays missing their trailing channel/pair fields, or
// bodies that do not match the expected positional shape. A failed frame
// never affects the decoding of subsequent frames.
var ErrMalformedMessage = errors.New("malformed message")

// Decode turns one raw text frame into a typed Event.
//
// Objects are control-plane messages discriminated by their "event" field;
// arrays are data-plane messages [channelID, payload..., channelName, pair].
// A structurally valid data message on an unrecognized channel decodes to
// ChannelData rather than an error, so callers can decide whether to ignore
// it.
func Decode(raw []byte) (Event, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}

	switch trimmed[0] {
	case '{':
		return decodeControl(trimmed)
	case '[':
		return decodeData(trimmed)
	default:
		return nil, fmt.Errorf("%w: frame is neither object nor array", ErrMalformedMessage)
	}
}

func decodeControl(raw []byte) (Event, error) {
	var env struct {
		Event        string `json:"event"`
		Status       string `json:"status"`
		Version      string `json:"version"`
		ConnectionID uint64 `json:"connectionID"`
		Pair         string `json:"pair"`
		ChannelName  string `json:"channelName"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Event {
	case "heartbeat":
		return Heartbeat{}, nil
	case "systemStatus":
		return SystemStatus{
			Status:       env.Status,
			Version:      env.Version,
			ConnectionID: env.ConnectionID,
		}, nil
	case "subscriptionStatus":
		return SubscriptionStatus{
			Status:       env.Status,
			Pair:         env.Pair,
			ChannelName:  env.ChannelName,
			ErrorMessage: env.ErrorMessage,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown control event %q", ErrMalformedMessage, env.Event)
	}
}

func decodeData(raw []byte) (Event, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	// channel id, at least one payload element, channel name, pair
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: data array has %d elements, want at least 4", ErrMalformedMessage, len(parts))
	}

	var channelID int64
	if err := json.Unmarshal(parts[0], &channelID); err != nil {
		return nil, fmt.Errorf("%w: channel id: %v", ErrMalformedMessage, err)
	}
	var channelName string
	if err := json.Unmarshal(parts[len(parts)-2], &channelName); err != nil {
		return nil, fmt.Errorf("%w: channel name: %v", ErrMalformedMessage, err)
	}
	var pair string
	if err := json.Unmarshal(parts[len(parts)-1], &pair); err != nil {
		return nil, fmt.Errorf("%w: pair: %v", ErrMalformedMessage, err)
	}

	payload := parts[1 : len(parts)-2]

	switch {
	case channelName == "trade":
		trades, err := decodeTrades(payload)
		if err != nil {
			return nil, err
		}
		return TradeUpdate{
			ChannelID: channelID,
			Pair:      pair,
			Trades:    trades,
		}, nil
	case strings.HasPrefix(channelName, "book"):
		return decodeBook(channelID, channelName, pair, payload)
	default:
		return ChannelData{
			ChannelID:   channelID,
			ChannelName: channelName,
			Pair:        pair,
			Payload:     payload,
		}, nil
	}
}

// decodeTrades parses the trade channel body: a single array of positional
// tuples [price, volume, time, side, orderType, misc], all strings.
func decodeTrades(payload []json.RawMessage) ([]Trade, error) {
	if len(payload) != 1 {
		return nil, fmt.Errorf("%w: trade message has %d payload elements, want 1", ErrMalformedMessage, len(payload))
	}

	var tuples [][]string
	if err := json.Unmarshal(payload[0], &tuples); err != nil {
		return nil, fmt.Errorf("%w: trade body: %v", ErrMalformedMessage, err)
	}

	trades := make([]Trade, 0, len(tuples))
	for _, tuple := range tuples {
		if len(tuple) < 6 {
			return nil, fmt.Errorf("%w: trade tuple has %d fields, want 6", ErrMalformedMessage, len(tuple))
		}
		trades = append(trades, Trade{
			Price:     tuple[0],
			Volume:    tuple[1],
			Time:      tuple[2],
			Side:      decodeSide(tuple[3]),
			OrderType: decodeOrderType(tuple[4]),
			Misc:      tuple[5],
		})
	}
	return trades, nil
}

func decodeSide(code string) Side {
	switch code {
	case "b":
		return SideBuy
	case "s":
		return SideSell
	default:
		return Side(code)
	}
}

func decodeOrderType(code string) OrderType {
	switch code {
	case "m":
		return OrderTypeMarket
	case "l":
		return OrderTypeLimit
	default:
		return OrderType(code)
	}
}

// decodeBook parses the book channel body. Snapshots use "as"/"bs" keys,
// deltas use "a"/"b" with an optional "c" checksum; a delta touching both
// sides arrives as two separate objects.
func decodeBook(channelID int64, channelName, pair string, payload []json.RawMessage) (Event, error) {
	update := BookUpdate{
		ChannelID:   channelID,
		ChannelName: channelName,
		Pair:        pair,
	}

	for _, part := range payload {
		var region struct {
			Asks         []BookEntry `json:"a"`
			Bids         []BookEntry `json:"b"`
			SnapshotAsks []BookEntry `json:"as"`
			SnapshotBids []BookEntry `json:"bs"`
			Checksum     string      `json:"c"`
		}
		if err := json.Unmarshal(part, &region); err != nil {
			return nil, fmt.Errorf("%w: book body: %v", ErrMalformedMessage, err)
		}

		update.Asks = append(update.Asks, region.Asks...)
		update.Bids = append(update.Bids, region.Bids...)
		if region.SnapshotAsks != nil {
			update.IsSnapshot = true
			update.Asks = append(update.Asks, region.SnapshotAsks...)
		}
		if region.SnapshotBids != nil {
			update.IsSnapshot = true
			update.Bids = append(update.Bids, region.SnapshotBids...)
		}
		if region.Checksum != "" {
			update.Checksum = region.Checksum
		}
	}

	return update, nil
}
