package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	Target   string        `long:"target" description:"base url of the embers server" default:"http://localhost:3000"`
	Viewers  int           `long:"viewers" description:"number of simulated viewers" default:"1"`
	FPS      int           `long:"fps" description:"simulated animation frame rate" default:"30"`
	Flames   int           `long:"flames" description:"starting flame count for each viewer" default:"50"`
	Events   int64         `long:"events" description:"maximum number of reports to send (0 means no limit)" default:"0"`
	RunTime  time.Duration `long:"runtime" description:"how long to keep posting after ramp up (0 means until interrupted)" default:"0s"`
	RampTime time.Duration `long:"ramptime" description:"duration to spend ramping viewers up or down" default:"1s"`
	LogLevel string        `long:"loglevel" description:"level of logging" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
}

func main() {
	opts := &Options{}

	parser := flags.NewParser(opts, flags.Default)
	parser.Usage = `[OPTIONS]

	stoker drives an embers fireplace without a browser. It simulates any
	number of viewers, each reporting renders, periodic heartbeats, and the
	occasional flame adjustment on the same cadences the real UI uses, so
	you can generate pipeline load headlessly or from several machines.
	`

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatalf("error reading command line: %v", err)
	}

	if level, err := log.ParseLevel(opts.LogLevel); err == nil {
		log.SetLevel(level)
	}

	client, err := NewClient(opts.Target)
	if err != nil {
		log.Fatalf("unable to reach target: %v", err)
	}

	// a stop channel so we can shut down gracefully, and a waitgroup so we
	// can wait for everything to finish; several paths can ask for a stop,
	// so closing goes through a Once
	stop := make(chan struct{})
	var stopOnce sync.Once
	closeStop := func() { stopOnce.Do(func() { close(stop) }) }
	wg := &sync.WaitGroup{}

	// catch ctrl-c and close the stop channel
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	// no waitgroup for this one, or we would never exit
	go func() {
		select {
		case <-sigch:
			log.Warn("shutting down from operating system signal")
			closeStop()
			return
		case <-stop:
			return
		}
	}()

	// Hand out event tokens until the limit is reached, then stop the
	// viewers. counterChan stays open until everything else is done
	// because the viewers claim from it.
	wg.Add(1)
	counterChan := make(chan int64)
	defer close(counterChan)
	go func() {
		if !eventCounter(opts.Events, counterChan, stop) {
			// give in-flight reports a chance to finish
			time.Sleep(1 * time.Second)
			closeStop()
		}
		wg.Done()
	}()

	pool := NewViewerPool(client, opts, closeStop)
	wg.Add(1)
	go pool.Run(opts, wg, stop, counterChan)

	wg.Wait()
}
