package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeartbeat(t *testing.T) {
	event, err := Decode([]byte(`{"event":"heartbeat"}`))
	require.NoError(t, err)
	assert.Equal(t, Heartbeat{}, event)
}

func TestDecodeSystemStatus(t *testing.T) {
	raw := `{"connectionID":8628615390848610000,"event":"systemStatus","status":"online","version":"1.9.1"}`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	status, ok := event.(SystemStatus)
	require.True(t, ok, "expected SystemStatus, got %T", event)
	assert.Equal(t, "online", status.Status)
	assert.Equal(t, "1.9.1", status.Version)
	assert.Equal(t, uint64(8628615390848610000), status.ConnectionID)
}

func TestDecodeSubscriptionStatus(t *testing.T) {
	t.Run("subscribed", func(t *testing.T) {
		raw := `{"channelID":10001,"channelName":"trade","event":"subscriptionStatus",` +
			`"pair":"XBT/USD","status":"subscribed","subscription":{"name":"trade"}}`

		event, err := Decode([]byte(raw))
		require.NoError(t, err)

		status, ok := event.(SubscriptionStatus)
		require.True(t, ok, "expected SubscriptionStatus, got %T", event)
		assert.Equal(t, "subscribed", status.Status)
		assert.Equal(t, "XBT/USD", status.Pair)
		assert.Equal(t, "trade", status.ChannelName)
		assert.Empty(t, status.ErrorMessage)
	})

	t.Run("error", func(t *testing.T) {
		raw := `{"errorMessage":"Currency pair not supported XBT/NOPE",` +
			`"event":"subscriptionStatus","pair":"XBT/NOPE","status":"error"}`

		event, err := Decode([]byte(raw))
		require.NoError(t, err)

		status, ok := event.(SubscriptionStatus)
		require.True(t, ok)
		assert.Equal(t, "error", status.Status)
		assert.Equal(t, "Currency pair not supported XBT/NOPE", status.ErrorMessage)
	})
}

func TestDecodeTradeUpdate(t *testing.T) {
	raw := `[337,[["34700.10000","0.00520000","1610184710.123456","s","l",""],` +
		`["34700.20000","1.00000000","1610184710.223456","b","m",""]],"trade","XBT/USD"]`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	update, ok := event.(TradeUpdate)
	require.True(t, ok, "expected TradeUpdate, got %T", event)
	assert.Equal(t, int64(337), update.ChannelID)
	assert.Equal(t, "XBT/USD", update.Pair)
	require.Len(t, update.Trades, 2)

	assert.Equal(t, Trade{
		Price:     "34700.10000",
		Volume:    "0.00520000",
		Time:      "1610184710.123456",
		Side:      SideSell,
		OrderType: OrderTypeLimit,
		Misc:      "",
	}, update.Trades[0])
	assert.Equal(t, SideBuy, update.Trades[1].Side)
	assert.Equal(t, OrderTypeMarket, update.Trades[1].OrderType)
}

func TestDecodeTradeUnknownCodesPassThrough(t *testing.T) {
	raw := `[337,[["1.0","1.0","1.0","x","y",""]],"trade","XBT/USD"]`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	update := event.(TradeUpdate)
	require.Len(t, update.Trades, 1)
	assert.Equal(t, Side("x"), update.Trades[0].Side)
	assert.Equal(t, OrderType("y"), update.Trades[0].OrderType)
}

func TestDecodeBookSnapshot(t *testing.T) {
	raw := `[336,{"as":[["34726.40000","0.58296695","1610184600.000000"],` +
		`["34727.40000","0.10000000","1610184600.100000"]],` +
		`"bs":[["34721.30000","1.00000000","1610184600.200000"]]},"book-10","XBT/USD"]`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	update, ok := event.(BookUpdate)
	require.True(t, ok, "expected BookUpdate, got %T", event)
	assert.True(t, update.IsSnapshot)
	assert.Equal(t, int64(336), update.ChannelID)
	assert.Equal(t, "book-10", update.ChannelName)
	assert.Equal(t, "XBT/USD", update.Pair)
	require.Len(t, update.Asks, 2)
	require.Len(t, update.Bids, 1)
	assert.Equal(t, "34726.40000", update.Asks[0].Price)
	assert.Equal(t, "0.58296695", update.Asks[0].Volume)
}

func TestDecodeBookDelta(t *testing.T) {
	raw := `[336,{"a":[["34728.30000","0.00000000","1610184601.000000"],` +
		`["34729.00000","0.50000000","1610184601.100000","r"]],"c":"2845048927"},"book-10","XBT/USD"]`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	update := event.(BookUpdate)
	assert.False(t, update.IsSnapshot)
	assert.Equal(t, "2845048927", update.Checksum)
	require.Len(t, update.Asks, 2)
	assert.Empty(t, update.Bids)

	// republish flag on the second entry is dropped
	assert.Equal(t, "34729.00000", update.Asks[1].Price)
	assert.Equal(t, "0.50000000", update.Asks[1].Volume)
}

func TestDecodeBookTwoSidedDelta(t *testing.T) {
	// a delta touching both sides arrives as two payload objects
	raw := `[336,{"a":[["34728.30000","0.10000000","1610184601.000000"]]},` +
		`{"b":[["34721.00000","2.00000000","1610184601.100000"]],"c":"974947235"},"book-10","XBT/USD"]`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	update := event.(BookUpdate)
	assert.False(t, update.IsSnapshot)
	require.Len(t, update.Asks, 1)
	require.Len(t, update.Bids, 1)
	assert.Equal(t, "974947235", update.Checksum)
}

func TestDecodeBookDepthSuffix(t *testing.T) {
	// the channel name carries the configured depth; any "book" prefix matches
	raw := `[336,{"a":[["1.0","1.0","1.0"]]},"book-1000","XBT/USD"]`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)
	_, ok := event.(BookUpdate)
	assert.True(t, ok, "expected BookUpdate, got %T", event)
}

func TestDecodeUnrecognizedChannel(t *testing.T) {
	raw := `[42,["5541.5","5541.5","1534614248.456738","1.00000000","1.00000000"],"spread","XBT/USD"]`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	data, ok := event.(ChannelData)
	require.True(t, ok, "expected ChannelData, got %T", event)
	assert.Equal(t, int64(42), data.ChannelID)
	assert.Equal(t, "spread", data.ChannelName)
	assert.Equal(t, "XBT/USD", data.Pair)
	require.Len(t, data.Payload, 1)
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty frame", ""},
		{"not json", "garbage"},
		{"truncated object", `{"event":"heartbeat"`},
		{"unknown control event", `{"event":"mystery"}`},
		{"object without event", `{"status":"online"}`},
		{"short data array", `[1,"trade","XBT/USD"]`},
		{"non-numeric channel id", `["x",[],"trade","XBT/USD"]`},
		{"non-string channel name", `[1,[],2,"XBT/USD"]`},
		{"trade tuple too short", `[1,[["1.0","1.0"]],"trade","XBT/USD"]`},
		{"trade body not an array", `[1,{"a":1},"trade","XBT/USD"]`},
		{"trade with extra payload", `[1,[],[],"trade","XBT/USD"]`},
		{"book body not an object", `[1,["x"],"book-10","XBT/USD"]`},
		{"book entry too short", `[1,{"a":[["1.0"]]},"book-10","XBT/USD"]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := Decode([]byte(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedMessage)
			assert.Nil(t, event)
		})
	}
}

func TestDecodeRecoversAfterFailure(t *testing.T) {
	// a bad frame must not poison the next one
	_, err := Decode([]byte("garbage"))
	require.Error(t, err)

	event, err := Decode([]byte(`{"event":"heartbeat"}`))
	require.NoError(t, err)
	assert.Equal(t, Heartbeat{}, event)
}

func TestNewSubscribeRequest(t *testing.T) {
	req := NewSubscribeRequest([]string{"XBT/USD", "ETH/USD"}, "trade", "")
	assert.Equal(t, "subscribe", req.Event)
	assert.Equal(t, []string{"XBT/USD", "ETH/USD"}, req.Pairs)
	assert.Equal(t, "trade", req.Subscription.Name)
	assert.Empty(t, req.Subscription.Token)

	private := NewSubscribeRequest(nil, "ownTrades", "secret-token")
	assert.Equal(t, "secret-token", private.Subscription.Token)
}
