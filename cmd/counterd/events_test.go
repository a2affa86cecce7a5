package main

import (
	"strings"
	"testing"
)

func TestUnmarshalEvent(t *testing.T) {
	tests := []struct {
		in   string
		want Event
	}{
		{`{"type":"start"}`, StartPressed{}},
		{`{"type":"pause"}`, PausePressed{}},
		{`{"type":"up"}`, UpPressed{}},
		{`{"type":"down"}`, DownPressed{}},
		{`{"type":"reset"}`, ResetPressed{}},
		{`{"type":"get_state"}`, StateQuery{}},
		{`{"type":"set_to","data":{"value":42}}`, SetToSubmitted{Value: 42}},
		{`{"type":"tick_speed_changed","data":{"value":75}}`, TickSpeedChanged{Value: 75}},
		{`{"type":"count_diff_changed","data":{"value":-3}}`, CountDiffChanged{Value: -3}},
	}

	for _, tt := range tests {
		got, err := UnmarshalEvent([]byte(tt.in))
		if err != nil {
			t.Fatalf("UnmarshalEvent(%s): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("UnmarshalEvent(%s) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	tests := []struct {
		in      string
		wantErr string
	}{
		{`not json`, "unmarshal envelope"},
		{`{}`, "missing event type"},
		{`{"type":"explode"}`, "unknown event type: explode"},
		{`{"type":"set_to"}`, "missing data"},
		{`{"type":"tick_speed_changed","data":{"value":"fast"}}`, "unmarshal TickSpeedChanged"},
	}

	for _, tt := range tests {
		_, err := UnmarshalEvent([]byte(tt.in))
		if err == nil {
			t.Fatalf("UnmarshalEvent(%s): expected error", tt.in)
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Fatalf("UnmarshalEvent(%s) error = %q, want it to contain %q", tt.in, err, tt.wantErr)
		}
	}
}

func TestMarshalEvent_RoundTripsPayload(t *testing.T) {
	b, err := MarshalEvent(SetToSubmitted{Value: 13})
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	if got, want := string(b), `{"type":"set_to","data":{"value":13}}`; got != want {
		t.Fatalf("MarshalEvent = %s, want %s", got, want)
	}

	ev, err := UnmarshalEvent(b)
	if err != nil {
		t.Fatalf("UnmarshalEvent: %v", err)
	}
	if ev != (SetToSubmitted{Value: 13}) {
		t.Fatalf("round trip = %#v", ev)
	}

	b, err = MarshalEvent(PausePressed{})
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	if got, want := string(b), `{"type":"pause"}`; got != want {
		t.Fatalf("MarshalEvent = %s, want %s", got, want)
	}
}

func TestMarshalEvent_RejectsInternalEvents(t *testing.T) {
	if _, err := MarshalEvent(tickFired{Gen: 1}); err == nil {
		t.Fatalf("expected error for internal tick event")
	}
}
