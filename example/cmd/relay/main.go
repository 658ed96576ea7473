package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/aggregate"
	"github.com/aneshas/streamstore/example"
	"github.com/aneshas/streamstore/example/account"
	"github.com/aneshas/streamstore/relay"
)

var natsURL = flag.String("nats", natsgo.DefaultURL, "nats server url")

// Runs an in memory account service which keeps a balance report up to
// date and relays every event to nats
func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	store := streamstore.NewInMemoryStore(streamstore.WithLogger(logger))
	checkErr(store.Open(ctx))

	defer store.Close()

	enc, err := example.NewEnvelopeCodec()
	checkErr(err)

	conn, err := natsgo.Connect(*natsURL)
	checkErr(err)

	defer conn.Close()

	r := relay.New(store, enc, relay.NewNATSPublisher(conn, "accounts"), relay.WithLogger(logger))

	projector := streamstore.NewProjector(store, streamstore.WithProjectorLogger(logger))

	balances := map[string]int{}

	projector.Add(streamstore.FlushAfter(ctx, balanceProjection(balances), func() error {
		fmt.Printf("balances: %v\n", balances)

		return nil
	}, 5*time.Second))

	go simulate(ctx, example.NewAccountStore(store))

	errs := make(chan error, 2)

	go func() { errs <- r.Run(ctx) }()
	go func() { errs <- projector.Run(ctx) }()

	checkErr(errors.Join(<-errs, <-errs))
}

func balanceProjection(balances map[string]int) streamstore.Projection {
	return func(data streamstore.RecordedEvent) error {
		id := data.Stream.String()

		switch evt := data.Event.Data.(type) {
		case account.DepositMade:
			balances[id] += evt.Amount

		case account.WithdrawalMade:
			balances[id] -= evt.Amount
		}

		return nil
	}
}

func simulate(ctx context.Context, store *example.AccountStore) {
	acc, err := account.New(account.NewID(), "John Doe")
	checkErr(err)

	checkErr(store.Save(ctx, acc))

	exec := aggregate.NewExecutor(store)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			err := exec(ctx, acc, func(context.Context) error {
				return acc.Deposit(10)
			})
			if err != nil {
				log.Println(err)
			}
		}
	}
}

func checkErr(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
