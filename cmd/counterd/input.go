package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// decodeInputEvent decodes one little-endian input_event record.
func decodeInputEvent(buf []byte) (inputEvent, error) {
	var ev inputEvent
	err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ev)
	return ev, err
}

// readInputEvents blocks reading whole records from f until a read fails or
// done is closed. Closing f unblocks a pending read.
func readInputEvents(f *os.File, events chan<- inputEvent, readErr chan<- error, done <-chan struct{}) {
	buf := make([]byte, inputEventSize)
	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			select {
			case readErr <- fmt.Errorf("read from %s: %w", f.Name(), err):
			case <-done:
			}
			return
		}
		ev, err := decodeInputEvent(buf)
		if err != nil {
			continue
		}
		if !sendInputEvent(events, ev, done) {
			return
		}
	}
}

// sendInputEvent delivers ev unless done closes first.
func sendInputEvent(events chan<- inputEvent, ev inputEvent, done <-chan struct{}) bool {
	select {
	case events <- ev:
		return true
	case <-done:
		return false
	}
}

// translateKey maps a key press to a control event.
// Releases, repeats and unmapped keys yield ok=false.
func translateKey(ev inputEvent) (Event, bool) {
	if ev.Type != EV_KEY || ev.Value != evValuePress {
		return nil, false
	}
	switch ev.Code {
	case KEY_S, KEY_PLAYCD:
		return StartPressed{}, true
	case KEY_P, KEY_PAUSECD:
		return PausePressed{}, true
	case KEY_UP:
		return UpPressed{}, true
	case KEY_DOWN:
		return DownPressed{}, true
	case KEY_R:
		return ResetPressed{}, true
	default:
		return nil, false
	}
}

// runInputAdapter opens the configured devices and forwards key presses as
// control events until ctx is canceled or a device fails.
func runInputAdapter(ctx context.Context, devices []string, out chan<- Event, logger *slog.Logger) error {
	if len(devices) == 0 {
		return nil
	}

	files := make([]*os.File, 0, len(devices))
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", dev, err)
		}
		files = append(files, f)
	}

	raw := make(chan inputEvent, 64)
	readErr := make(chan error, len(files))
	done := make(chan struct{})
	wait, err := startInputReaders(files, raw, readErr, done)
	if err != nil {
		for _, f := range files {
			f.Close()
		}
		return err
	}

	// Stop the readers, close the devices, then wait for the readers to exit.
	defer func() {
		close(done)
		for _, f := range files {
			f.Close()
		}
		wait()
	}()

	logger.Info("input devices opened", "devices", devices)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)

		case iev := <-raw:
			ev, ok := translateKey(iev)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
