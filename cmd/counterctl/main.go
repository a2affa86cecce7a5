package main

import (
	"fmt"
	"os"
)

// ============================================================================
// counterctl - Command-line client for counterd
// ============================================================================
// Control commands go over the IPC Unix socket as line-delimited JSON
// envelopes; watch follows the WebSocket surface.
//
// Usage:
//   counterctl start
//   counterctl pause
//   counterctl up | down
//   counterctl reset
//   counterctl set-to 42
//   counterctl tick-speed 100
//   counterctl count-diff 2
//   counterctl state
//   counterctl watch
// ============================================================================

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
