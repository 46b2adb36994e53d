// Package kraken-stream provides a long-lived streaming client for Kraken's
// public WebSocket market-data API.
//
// The library decodes the venue's positionally-encoded JSON frames into typed
// events, maintains the connection across network faults, and offers local
// state machines for the two stateful feeds: an order book with CRC-32
// integrity validation and an OHLCV candle aggregator.
//
// Core Features:
//
//   - Automatic reconnection with subscription replay
//   - Typed events for trades, order books and venue control messages
//   - Fan-out to any number of independent consumer streams with a
//     drop-oldest policy for slow consumers
//   - Local order book reconstruction with checksum validation
//   - Trade-to-candle aggregation at a configurable interval
//   - Private channel authentication via WebSocket token fetch
//
// The library is built around the stream.Client, which owns the WebSocket
// session, and the protocol.Event interface, which consumers type-switch on.
//
// # Standard Errors
//
//   - stream.ErrAlreadyConnected: Returned when Connect is called more than
//     once on the same client
//
//   - stream.ErrClosed: Returned when Subscribe is called after Close
//
//   - protocol.ErrMalformedMessage: Wraps every structural decode failure;
//     the session logs and skips such frames without dropping the connection
//
// # Examples
//
// Basic usage:
//
//	client := stream.New(stream.Options{})
//	events := client.Events()
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatalf("failed to connect: %v", err)
//	}
//	defer client.Close()
//
//	if err := client.Subscribe(ctx, []string{"XBT/USD"}, "trade", ""); err != nil {
//	    log.Fatalf("failed to subscribe: %v", err)
//	}
//
//	for event := range events.Events() {
//	    switch ev := event.(type) {
//	    case protocol.TradeUpdate:
//	        for _, trade := range ev.Trades {
//	            fmt.Printf("%s %s @ %s\n", ev.Pair, trade.Volume, trade.Price)
//	        }
//	    }
//	}
//
// # Order Book Example
//
// Maintaining a validated local book:
//
//	orderBook := book.New()
//
//	for event := range events.Events() {
//	    update, ok := event.(protocol.BookUpdate)
//	    if !ok {
//	        continue
//	    }
//	    orderBook.Apply(update)
//	    if update.Checksum != "" && !orderBook.Validate(update.Checksum) {
//	        log.Printf("checksum mismatch, book is stale")
//	    }
//	}
//
// # Private Channels
//
// Private channels require a token fetched over the venue's REST API:
//
//	authenticator := auth.NewAuthenticator(auth.Config{
//	    APIKey:    os.Getenv("KRAKEN_API_KEY"),
//	    APISecret: os.Getenv("KRAKEN_API_SECRET"),
//	})
//	token, err := authenticator.WebSocketToken(ctx)
//	if err != nil {
//	    log.Fatalf("failed to fetch token: %v", err)
//	}
//	client.Subscribe(ctx, nil, "ownTrades", token)
package krakenstream
