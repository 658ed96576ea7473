package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aneshas/streamstore/example"
	"github.com/aneshas/streamstore/instrument"
	"github.com/aneshas/streamstore/sqlstore"
)

var (
	addr     = flag.String("addr", ":8080", "http listen address")
	sqlite   = flag.String("sqlite", "exampledb", "sqlite database path")
	postgres = flag.String("postgres", "", "postgres dsn (takes precedence over sqlite)")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	enc, err := example.NewEnvelopeCodec()
	checkErr(err)

	dbOpt := sqlstore.WithSQLiteDB(*sqlite)
	if *postgres != "" {
		dbOpt = sqlstore.WithPostgresDB(*postgres)
	}

	estore, err := sqlstore.New(enc, dbOpt, sqlstore.WithLogger(logger))
	checkErr(err)

	checkErr(estore.Open(context.Background()))

	defer estore.Close()

	tp := sdktrace.NewTracerProvider()

	defer tp.Shutdown(context.Background())

	reg := prometheus.NewRegistry()

	store := instrument.WithTracing(
		instrument.WithMetrics(estore, instrument.NewMetrics(reg)),
		tp.Tracer("example/api"),
	)

	e := echo.New()

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	example.Register(e, example.NewAccountStore(store))

	log.Fatal(e.Start(*addr))
}

func checkErr(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
