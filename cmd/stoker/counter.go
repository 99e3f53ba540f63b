package main

import (
	log "github.com/sirupsen/logrus"
)

// eventCounter sends an incrementing int64 on its channel, stopping when it
// has handed out maxcount event tokens or when stop closes. If maxcount is
// 0, it runs until stop closes. It returns true if it stopped because of
// stop, false otherwise.
func eventCounter(maxcount int64, output chan int64, stop chan struct{}) bool {
	var count int64

	defer func() {
		log.Infof("event counter exiting after %d events", count)
	}()

	for {
		if maxcount > 0 && count >= maxcount {
			return false
		}
		count++
		select {
		case <-stop:
			return true
		case output <- count:
			// do nothing
		}
	}
}

// claim takes one event token without blocking; reports sent without a
// token available are skipped.
func claim(counter chan int64) bool {
	select {
	case <-counter:
		return true
	default:
		return false
	}
}
