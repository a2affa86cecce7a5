//go:build !linux

package main

import (
	"os"
	"sync"
)

// startInputReaders starts one blocking reader goroutine per device. The
// caller closes done and the files to stop them; wait returns once all exited.
func startInputReaders(files []*os.File, events chan<- inputEvent, readErr chan<- error, done <-chan struct{}) (wait func(), err error) {
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(f *os.File) {
			defer wg.Done()
			readInputEvents(f, events, readErr, done)
		}(f)
	}
	return wg.Wait, nil
}
