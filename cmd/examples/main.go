package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/veiloq/kraken-stream/pkg/auth"
	"github.com/veiloq/kraken-stream/pkg/book"
	"github.com/veiloq/kraken-stream/pkg/candle"
	"github.com/veiloq/kraken-stream/pkg/logging"
	"github.com/veiloq/kraken-stream/pkg/protocol"
	"github.com/veiloq/kraken-stream/pkg/stream"
)

func main() {
	// Load credentials from .env if present
	_ = godotenv.Load()

	// Create logger
	logger := logging.NewLogger()
	logger.SetLevel(logging.DEBUG)

	// Create streaming client
	client := stream.New(stream.Options{
		Logger: logger,
	})

	// Attach a consumer stream before connecting so nothing is missed
	events := client.Events()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the session
	logger.Info("connecting to exchange")
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", logging.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	// Subscribe to public trade and book channels
	if err := client.Subscribe(ctx, []string{"XBT/USD"}, "trade", ""); err != nil {
		logger.Error("failed to subscribe to trades", logging.Error(err))
		os.Exit(1)
	}
	if err := client.Subscribe(ctx, []string{"XBT/USD"}, "book", ""); err != nil {
		logger.Error("failed to subscribe to order book", logging.Error(err))
		os.Exit(1)
	}

	// Subscribe to a private channel when credentials are configured
	apiKey := os.Getenv("KRAKEN_API_KEY")
	apiSecret := os.Getenv("KRAKEN_API_SECRET")
	if apiKey != "" && apiSecret != "" {
		authenticator := auth.NewAuthenticator(auth.Config{
			APIKey:    apiKey,
			APISecret: apiSecret,
			Logger:    logger,
		})
		token, err := authenticator.WebSocketToken(ctx)
		if err != nil {
			logger.Error("failed to fetch websocket token", logging.Error(err))
			os.Exit(1)
		}
		if err := client.Subscribe(ctx, nil, "ownTrades", token); err != nil {
			logger.Error("failed to subscribe to own trades", logging.Error(err))
			os.Exit(1)
		}
	}

	// Consume events: maintain a local book and roll trades into 1m candles
	go func() {
		orderBook := book.New()
		candles := candle.NewAggregator(60)

		for event := range events.Events() {
			switch ev := event.(type) {
			case protocol.SystemStatus:
				logger.Info("system status",
					logging.String("status", ev.Status),
					logging.String("version", ev.Version),
				)

			case protocol.SubscriptionStatus:
				logger.Info("subscription status",
					logging.String("channel", ev.ChannelName),
					logging.String("pair", ev.Pair),
					logging.String("status", ev.Status),
					logging.String("error", ev.ErrorMessage),
				)

			case protocol.TradeUpdate:
				for _, trade := range ev.Trades {
					t, err := strconv.ParseFloat(trade.Time, 64)
					if err == nil {
						if closed, ok := candles.CheckFlush(t); ok {
							logger.Info("candle closed",
								logging.Int64("start", closed.StartTime),
								logging.Float64("open", closed.Open),
								logging.Float64("high", closed.High),
								logging.Float64("low", closed.Low),
								logging.Float64("close", closed.Close),
								logging.Float64("volume", closed.Volume),
							)
						}
					}
					candles.Update(trade)
				}

			case protocol.BookUpdate:
				orderBook.Apply(ev)
				if ev.Checksum != "" && !orderBook.Validate(ev.Checksum) {
					logger.Warn("book checksum mismatch",
						logging.String("pair", ev.Pair),
						logging.String("remote", ev.Checksum),
						logging.Uint32("local", orderBook.Checksum()),
					)
					continue
				}
				if price, volume, ok := orderBook.BestBid(); ok {
					logger.Debug("best bid",
						logging.String("pair", ev.Pair),
						logging.String("price", price),
						logging.String("volume", volume),
					)
				}
			}
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("running... press Ctrl+C to exit")
	<-sigChan

	// Cleanup
	logger.Info("shutting down")
	cancel()
}
