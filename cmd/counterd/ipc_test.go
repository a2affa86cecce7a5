package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startTestIPC runs the IPC server on a socket in a temp dir and returns its
// path. The server stops when the test ends.
func startTestIPC(t *testing.T, events chan<- Event, store *StateStore) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "c.sock")
	listener, err := listenIPC(socketPath)
	if err != nil {
		t.Fatalf("listenIPC: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveIPC(ctx, listener, socketPath, events, store, testLogger())
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serveIPC: %v", err)
			}
		case <-time.After(time.Second):
			t.Errorf("timeout waiting for IPC server to stop")
		}
	})
	return socketPath
}

func TestIPC_ForwardsControlEvents(t *testing.T) {
	events := make(chan Event, 4)
	store := NewStateStore(Snapshot{State: DefaultInitialState()}, 4, testLogger())
	socketPath := startTestIPC(t, events, store)

	resp, err := SendIPCEvent(socketPath, TickSpeedChanged{Value: 80})
	if err != nil {
		t.Fatalf("SendIPCEvent: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q", resp.Status)
	}

	select {
	case ev := <-events:
		if ev != (TickSpeedChanged{Value: 80}) {
			t.Fatalf("forwarded %#v", ev)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for forwarded event")
	}
}

func TestIPC_GetStateAnsweredFromStore(t *testing.T) {
	events := make(chan Event, 1)
	store := NewStateStore(Snapshot{State: DefaultInitialState()}, 4, testLogger())
	store.Publish(Snapshot{Seq: 4, State: CounterState{Count: 12, IsTicking: true, TickSpeed: 200, CountDiff: 1, CountUp: true}})
	socketPath := startTestIPC(t, events, store)

	resp, err := SendIPCEvent(socketPath, StateQuery{})
	if err != nil {
		t.Fatalf("SendIPCEvent: %v", err)
	}
	if resp.State == nil {
		t.Fatalf("expected state in response")
	}
	if resp.State.Seq != 4 || resp.State.State.Count != 12 || !resp.State.State.IsTicking {
		t.Fatalf("state = %+v", *resp.State)
	}

	select {
	case ev := <-events:
		t.Fatalf("get_state must not reach the engine, got %#v", ev)
	default:
	}
}

func TestIPC_QueueFull(t *testing.T) {
	events := make(chan Event) // nobody reads
	store := NewStateStore(Snapshot{}, 1, testLogger())
	socketPath := startTestIPC(t, events, store)

	resp, err := SendIPCEvent(socketPath, StartPressed{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if resp.Status != "error" || resp.Error != "event queue full" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestIPC_MultipleLinesOnOneConnection(t *testing.T) {
	events := make(chan Event, 4)
	store := NewStateStore(Snapshot{}, 1, testLogger())
	socketPath := startTestIPC(t, events, store)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	lines := strings.Join([]string{
		`{"type":"up"}`,
		``,
		`garbage`,
		`{"type":"set_to"}`,
		`{"type":"reset"}`,
	}, "\n") + "\n"
	if _, err := conn.Write([]byte(lines)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	scanner := bufio.NewScanner(conn)
	var statuses []string
	for len(statuses) < 4 && scanner.Scan() {
		var resp IPCResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		statuses = append(statuses, resp.Status)
	}

	want := []string{"ok", "error", "error", "ok"}
	if strings.Join(statuses, ",") != strings.Join(want, ",") {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}

	if ev := <-events; ev != (UpPressed{}) {
		t.Fatalf("first event = %#v", ev)
	}
	if ev := <-events; ev != (ResetPressed{}) {
		t.Fatalf("second event = %#v", ev)
	}
}

func TestRunIPCServer_RemovesSocketOnShutdown(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "c.sock")
	// A stale file at the path is replaced.
	if err := os.WriteFile(socketPath, nil, 0o600); err != nil {
		t.Fatalf("write stale file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runIPCServer(ctx, socketPath, make(chan Event, 1), NewStateStore(Snapshot{}, 1, testLogger()), testLogger())
	}()

	waitUntil(t, time.Second, func() bool {
		conn, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, "IPC socket not accepting connections")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runIPCServer: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for IPC server to stop")
	}

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatalf("socket file still present: %v", err)
	}
}
