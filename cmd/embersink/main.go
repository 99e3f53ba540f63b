package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

// embersink is a terminal OTLP receiver to aim embers at while developing.
// It accepts traces, metrics, and logs over both OTLP/HTTP and OTLP gRPC,
// reports per-signal receive rates while running, and prints a session
// summary on exit. It stores nothing.

type Options struct {
	HTTPPort int `long:"httpport" description:"port to listen on for OTLP over HTTP" default:"4318"`
	GRPCPort int `long:"grpcport" description:"port to listen on for OTLP over gRPC" default:"4317"`
}

func main() {
	var opts Options

	parser := flags.NewParser(&opts, flags.Default)
	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatalf("error parsing flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := NewSink()

	initHTTPReceiver(ctx, opts.HTTPPort, sink)
	if err := initGRPCReceiver(ctx, opts.GRPCPort, sink); err != nil {
		log.Fatalf("failed to start gRPC receiver: %v", err)
	}

	<-ctx.Done()

	fmt.Printf("\nsession: %s\n", sink.Summary())
	log.Info("shutting down")
}
