package main

import (
	"encoding/json"
	"fmt"
	"net"
)

// Wire types (duplicated from counterd for a standalone binary)

const (
	eventTypeStart            = "start"
	eventTypePause            = "pause"
	eventTypeUp               = "up"
	eventTypeDown             = "down"
	eventTypeReset            = "reset"
	eventTypeSetTo            = "set_to"
	eventTypeTickSpeedChanged = "tick_speed_changed"
	eventTypeCountDiffChanged = "count_diff_changed"
	eventTypeGetState         = "get_state"
)

// eventEnvelope wraps an event for JSON
type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type valueData struct {
	Value int `json:"value"`
}

// ipcResponse represents the daemon's response
type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

func valueEnvelope(typ string, v int) (eventEnvelope, error) {
	data, err := json.Marshal(valueData{Value: v})
	if err != nil {
		return eventEnvelope{}, err
	}
	return eventEnvelope{Type: typ, Data: data}, nil
}

// sendEnvelope sends one envelope and waits for the daemon's response.
func sendEnvelope(socketPath string, env eventEnvelope) (ipcResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return ipcResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return ipcResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}
