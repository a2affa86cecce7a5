package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_R    = 19
	KEY_P    = 25
	KEY_S    = 31
	KEY_UP   = 103
	KEY_DOWN = 108

	KEY_PLAYCD  = 200
	KEY_PAUSECD = 201
)

// evValuePress is the evdev value of a key-down record.
const evValuePress = 1

// Counter defaults
const (
	defaultInitialCount = 0
	defaultTickSpeedMS  = 200 // Period between automatic advances (ms)
	defaultCountDiff    = 1
	defaultSetToOffset  = 10 // Set-to field shows initial count + offset after reset

	defaultEventBuf      = 64 // Engine inbound event queue size
	defaultSubscriberBuf = 16 // Per-subscriber snapshot buffer

	defaultIPCSocketPath = "/tmp/tickcounter.sock"
	defaultWSListenAddr  = "127.0.0.1:8090"
	defaultWSPath        = "/ws"
)
