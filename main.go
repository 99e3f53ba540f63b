package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/jessevdk/go-flags"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var ResourceLibrary = "embers"
var ResourceVersion = "dev"

func main() {
	cmdopts := newOptions()

	parser := flags.NewParser(cmdopts, flags.Default)
	parser.Usage = `[OPTIONS]

	embers serves an animated fireplace whose flames generate telemetry. The
	browser UI reports renders, user interactions, and periodic heartbeats to
	this server, which turns each report into structured logs, metrics, and
	trace spans in proportion to the current flame count: more flames, more
	telemetry. Everything is pushed over OTLP to the configured collector,
	and the same metrics are exposed for Prometheus scrapes on /metrics.

	Turn the flames up and down with the on-screen buttons or the + and -
	keys to tune how much data your observability pipeline receives.

	Use --collector to point at an OTLP endpoint (or 'local' for a collector
	on this machine), --exporter=stdout to print telemetry to the console
	instead of sending it, or --exporter=none to run the fireplace silently.
	The transport is inferred from the collector port; override it with
	--protocol.

	Options can be set in a config file, or on the command line; to specify
	them in the config file, specify it on the command line with
	"--config=FILENAME". The config file format is YAML; see "example.yml"
	for an example.

	Note: If a config file is used, it MUST be used for all options, except
	for the ones marked in the help text with (*) -- these fields CANNOT be
	set in the config file.
	`

	// read the command line and envvars into cmdopts
	_, err := parser.Parse()
	if err != nil {
		switch flagsErr := err.(type) {
		case *flags.Error:
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		log.Fatalf("error reading command line: %v", err)
	}

	opts := newOptions()
	if cmdopts.Global.Config != "" {
		if err := ReadConfig(opts, cmdopts.Global.Config); err != nil {
			log.Fatalf("err %v -- unable to read config file %s", err, cmdopts.Global.Config)
		}
		opts.CopyStarredFieldsFrom(cmdopts)
	} else {
		opts = cmdopts // we don't have to read from a file
	}

	if opts.Global.WriteCfg != "" {
		err := WriteConfig(opts, opts.Global.WriteCfg)
		if err != nil {
			log.Fatalf("unable to write config: %s", err)
		}
		os.Exit(0)
	}

	if opts.Global.Seed == "" {
		opts.Global.Seed = opts.Telemetry.Service
	}

	if opts.Server.DebugPort > 0 {
		go func() {
			_ = http.ListenAndServe(fmt.Sprintf("localhost:%d", opts.Server.DebugPort), nil)
		}()
	}

	logger := NewLogger(opts.Global.LogLevel, opts.Global.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A broken telemetry setup never takes the fireplace down; we keep
	// serving and just stop exporting. The noop providers go in only on
	// failure: otel binds early tracers to the first provider installed,
	// so a noop set ahead of the real one would stick.
	shutdownTelemetry := func(context.Context) error { return nil }
	u, protocol, err := parseCollector(opts.Telemetry.Collector, opts.Telemetry.Insecure, opts.Telemetry.Protocol)
	if err != nil {
		logger.WithError(err).Error("invalid collector url, continuing without export")
		shutdownTelemetry = installNoopTelemetry()
	} else {
		opts.collector = u
		opts.Telemetry.Protocol = protocol
		shutdownTelemetry, err = initTelemetry(ctx, logger, opts)
		if err != nil {
			logger.WithError(err).Error("telemetry startup failed, continuing without export")
			shutdownTelemetry = installNoopTelemetry()
		}
	}
	AttachOTelBridge(logger)

	em, err := NewEmitter(NewEventLogger(logger), otel.Meter(ResourceLibrary, metric.WithInstrumentationVersion(ResourceVersion)))
	if err != nil {
		logger.WithError(err).Fatal("unable to build instruments")
	}
	startUptimeTicker(ctx, em, time.Second)

	srv := NewServer(logger, em, NewPolicy(NewRng(opts.Global.Seed)))
	handler, err := srv.Routes()
	if err != nil {
		logger.WithError(err).Fatal("unable to build routes")
	}

	corsOpts := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
	}
	if len(opts.Server.Origins) > 0 {
		corsOpts.AllowedOrigins = opts.Server.Origins
	}
	handler = cors.New(corsOpts).Handler(handler)
	handler = gziphandler.GzipHandler(handler)

	addr := fmt.Sprintf("%s:%d", opts.Server.Host, opts.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(log.Fields{
			"address":   addr,
			"collector": opts.Telemetry.Collector,
			"exporter":  opts.Telemetry.Exporter,
		}).Info("fireplace lit")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("error shutting down http server")
	}

	// flush whatever telemetry is still buffered, best effort
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFlush()
	if err := shutdownTelemetry(flushCtx); err != nil {
		logger.WithError(err).Error("error flushing telemetry")
	}
	logger.Info("fire out")
}
