package main

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		name string
		ev   inputEvent
		want Event
	}{
		{"s", inputEvent{Type: EV_KEY, Code: KEY_S, Value: evValuePress}, StartPressed{}},
		{"play", inputEvent{Type: EV_KEY, Code: KEY_PLAYCD, Value: evValuePress}, StartPressed{}},
		{"p", inputEvent{Type: EV_KEY, Code: KEY_P, Value: evValuePress}, PausePressed{}},
		{"pause", inputEvent{Type: EV_KEY, Code: KEY_PAUSECD, Value: evValuePress}, PausePressed{}},
		{"up", inputEvent{Type: EV_KEY, Code: KEY_UP, Value: evValuePress}, UpPressed{}},
		{"down", inputEvent{Type: EV_KEY, Code: KEY_DOWN, Value: evValuePress}, DownPressed{}},
		{"r", inputEvent{Type: EV_KEY, Code: KEY_R, Value: evValuePress}, ResetPressed{}},
	}
	for _, tt := range tests {
		got, ok := translateKey(tt.ev)
		if !ok || got != tt.want {
			t.Fatalf("%s: translateKey = %#v, %v; want %#v", tt.name, got, ok, tt.want)
		}
	}

	ignored := []inputEvent{
		{Type: EV_KEY, Code: KEY_S, Value: 0}, // release
		{Type: EV_KEY, Code: KEY_S, Value: 2}, // repeat
		{Type: EV_KEY, Code: 2, Value: evValuePress},
		{Type: 0x02, Code: KEY_S, Value: evValuePress},
	}
	for _, ev := range ignored {
		if got, ok := translateKey(ev); ok {
			t.Fatalf("translateKey(%+v) = %#v, want ignored", ev, got)
		}
	}
}

func TestReadInputEvents_DecodesAndReportsEOF(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()

	events := make(chan inputEvent, 4)
	readErr := make(chan error, 1)
	go readInputEvents(r, events, readErr, make(chan struct{}))

	in := []inputEvent{
		{Sec: 1, Type: EV_KEY, Code: KEY_UP, Value: evValuePress},
		{Sec: 2, Type: EV_KEY, Code: KEY_UP, Value: 0},
	}
	for _, ev := range in {
		if err := binary.Write(w, binary.LittleEndian, ev); err != nil {
			t.Fatalf("write event: %v", err)
		}
	}
	w.Close()

	for i, want := range in {
		select {
		case got := <-events:
			if got != want {
				t.Fatalf("event %d = %+v, want %+v", i, got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}

	select {
	case err := <-readErr:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("readErr = %v, want EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for read error")
	}
}

func TestReadInputEvents_DoneUnblocksPendingSend(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		readInputEvents(r, make(chan inputEvent), make(chan error), done)
		close(exited)
	}()

	ev := inputEvent{Type: EV_KEY, Code: KEY_DOWN, Value: evValuePress}
	if err := binary.Write(w, binary.LittleEndian, ev); err != nil {
		t.Fatalf("write event: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	close(done)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatalf("reader still blocked after done closed")
	}
}

func TestRunInputAdapter_NoDevices(t *testing.T) {
	if err := runInputAdapter(context.Background(), nil, make(chan Event), testLogger()); err != nil {
		t.Fatalf("runInputAdapter(nil): %v", err)
	}
}

func TestRunInputAdapter_MissingDevice(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "event99")
	err := runInputAdapter(context.Background(), []string{missing}, make(chan Event), testLogger())
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist error", err)
	}
}
