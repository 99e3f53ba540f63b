package main

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"pgregory.net/rand"
)

const (
	flameMin  = 5
	flameMax  = 500
	flameStep = 5

	renderReportFrames = 60

	// roughly one load adjustment every few seconds of frames
	fidgetOdds = 240
)

type ViewerState int

const (
	Starting ViewerState = iota
	Running
	Stopping
)

// ViewerPool ramps simulated viewers up and down. Each viewer behaves like
// one browser tab pointed at the fireplace: it announces itself, reports
// render timings and periodic heartbeats on the UI's cadences, and now and
// then fidgets with the flame count.
type ViewerPool struct {
	client        *Client
	frameInterval time.Duration
	startFlames   int
	finish        func()
	chans         []chan struct{}
	// draining means the pool has shut down; a viewer mid-spawn must not
	// register a stop channel nothing will ever close
	draining bool
	mut      sync.RWMutex
}

// NewViewerPool builds a pool reporting through client. finish is called
// once the ramp down completes; it must be safe to call alongside other
// stop paths.
func NewViewerPool(client *Client, opts *Options, finish func()) *ViewerPool {
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	return &ViewerPool{
		client:        client,
		frameInterval: time.Second / time.Duration(fps),
		startFlames:   opts.Flames,
		finish:        finish,
		chans:         make([]chan struct{}, 0),
	}
}

// periodicInterval returns how many frames pass between periodic log
// reports; busier fires report more often, down to every frame.
func periodicInterval(load int) int {
	shrink := 2 * load
	if shrink > 100 {
		shrink = 100
	}
	if interval := 120 - shrink; interval > 1 {
		return interval
	}
	return 1
}

// clampFlames keeps a flame count inside the range the UI allows.
func clampFlames(n int) int {
	if n < flameMin {
		return flameMin
	}
	if n > flameMax {
		return flameMax
	}
	return n
}

// syntheticRenderCost fakes the milliseconds a browser would spend drawing
// one frame of this many flames.
func syntheticRenderCost(flames int) float64 {
	return 4 + float64(flames)*0.03 + rand.Float64()*3
}

// viewer is a single goroutine simulating one browser tab. It runs until
// its stop channel closes.
func (p *ViewerPool) viewer(wg *sync.WaitGroup, counter chan int64) {
	defer wg.Done()

	p.mut.Lock()
	if p.draining {
		p.mut.Unlock()
		return
	}
	stop := make(chan struct{})
	p.chans = append(p.chans, stop)
	frameInterval := p.frameInterval
	p.mut.Unlock()

	flames := p.startFlames
	if claim(counter) {
		if err := p.client.PostFlames(flames, "initial"); err != nil {
			log.WithError(err).Debug("initial report failed")
		}
	}

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	frame := 0
	renderAccum := 0.0
	renderFrames := 0

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame++
			renderAccum += syntheticRenderCost(flames)
			renderFrames++

			if frame%renderReportFrames == 0 && claim(counter) {
				avg := renderAccum / float64(renderFrames)
				renderAccum, renderFrames = 0, 0
				if err := p.client.PostRender(avg, flames); err != nil {
					log.WithError(err).Debug("render report failed")
				}
			}

			if frame%periodicInterval(flames) == 0 && claim(counter) {
				if _, err := p.client.PostLogs(flames); err != nil {
					log.WithError(err).Debug("periodic report failed")
				}
			}

			if rand.Intn(fidgetOdds) == 0 {
				delta := flameStep
				action := "increase"
				if rand.Intn(2) == 0 {
					delta = -flameStep
					action = "decrease"
				}
				next := clampFlames(flames + delta)
				if next != flames && claim(counter) {
					flames = next
					if err := p.client.PostFlames(flames, action); err != nil {
						log.WithError(err).Debug("load report failed")
					}
				}
			}
		}
	}
}

// Run ramps viewers up to the configured count, holds there for the run
// time (if one is set), then ramps them back down. It exits when stop
// closes or the ramp down finishes, calling finish in the latter case.
func (p *ViewerPool) Run(opts *Options, wg *sync.WaitGroup, stop chan struct{}, counter chan int64) {
	defer wg.Done()

	viewers := opts.Viewers
	if viewers <= 0 {
		viewers = 1
	}
	interval := opts.RampTime / time.Duration(viewers)
	if interval <= 0 {
		interval = time.Millisecond
	}
	log.Infof("ramping %d viewers, one every %s", viewers, interval)
	state := Starting

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// a long timer, stopped immediately so the channel is valid; Reset in
	// the Starting state if a runtime was specified
	stopTimer := time.NewTimer(time.Hour)
	stopTimer.Stop()

	for {
		select {
		case <-stop:
			log.Info("stopping viewers from stop signal")
			p.mut.Lock()
			p.draining = true
			for _, ch := range p.chans {
				close(ch)
			}
			p.chans = p.chans[:0]
			p.mut.Unlock()
			return
		case <-ticker.C:
			switch state {
			case Starting:
				p.mut.RLock()
				started := len(p.chans)
				p.mut.RUnlock()
				if started >= viewers {
					log.Info("all viewers started, switching to Running state")
					if opts.RunTime > 0 {
						stopTimer.Reset(opts.RunTime)
						defer stopTimer.Stop()
					}
					state = Running
				} else {
					log.Debug("starting new viewer")
					wg.Add(1)
					go p.viewer(wg, counter)
				}
			case Running:
				// nothing to do until a timer or signal moves us on
			case Stopping:
				p.mut.Lock()
				if len(p.chans) == 0 {
					p.mut.Unlock()
					p.finish()
					return
				}
				log.Debug("retiring a viewer")
				close(p.chans[0])
				p.chans = p.chans[1:]
				p.mut.Unlock()
			}
		case <-stopTimer.C:
			log.Info("stopping viewers from timer")
			state = Stopping
		}
	}
}
