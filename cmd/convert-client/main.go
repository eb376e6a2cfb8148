// Command convert-client asks a running currency rate service to convert an
// amount over the kafka bus and prints the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"currency-rate-service/internal/adapter/messaging"
	"currency-rate-service/internal/adapter/rpc"
	"currency-rate-service/internal/config"
	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/metrics"
	"currency-rate-service/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fail("load .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fail("config: %v", err)
	}

	// Flags override the service configuration for a single call.
	brokers := flag.String("brokers", strings.Join(cfg.Bus.Brokers, ","), "comma separated kafka brokers")
	requestTopic := flag.String("request-topic", cfg.RPC.RequestTopic, "topic the service consumes")
	replyTopic := flag.String("reply-topic", cfg.RPC.ReplyTopic, "topic replies are published to")
	timeout := flag.Duration("timeout", cfg.RPC.Timeout, "how long to wait for the reply")
	from := flag.String("from", "", "source currency code")
	to := flag.String("to", "", "target currency code")
	amountStr := flag.String("amount", "1", "amount to convert")
	level := flag.String("log-level", cfg.Log.Level, "log level")
	flag.Parse()

	log := logger.NewLogger(*level)
	defer func() { _ = log.Sync() }()

	fromCode, err := model.ParseCurrency(*from)
	if err != nil {
		fail("invalid -from: %v", err)
	}
	toCode, err := model.ParseCurrency(*to)
	if err != nil {
		fail("invalid -to: %v", err)
	}
	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		fail("invalid -amount: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := messaging.NewKafkaBus(messaging.KafkaConfig{Brokers: messaging.ParseBrokers(*brokers)}, log)
	if err != nil {
		fail("kafka: %v", err)
	}
	defer bus.Close()

	client := rpc.NewClient(bus, rpc.ClientConfig{
		RequestTopic: *requestTopic,
		ReplyTopic:   *replyTopic,
		Timeout:      *timeout,
	}, metrics.NewNop(), log)

	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()
	go func() {
		if err := client.Listen(listenCtx); err != nil {
			log.Error("Reply listener stopped", "error", err)
		}
	}()

	converted, err := client.Convert(ctx, fromCode, toCode, amount)
	if err != nil {
		fail("convert: %v", err)
	}
	fmt.Printf("%s %s = %s %s\n", amount, fromCode, converted, toCode)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
