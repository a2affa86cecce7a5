package main

import (
	"github.com/spf13/cobra"
)

const (
	defaultSocketPath = "/tmp/tickcounter.sock"
	defaultWSURL      = "ws://127.0.0.1:8090/ws"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Socket string
	WSURL  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "counterctl",
		Short:         "Control a running counterd",
		Long:          "Send control events to counterd over its IPC socket, query its state, or watch its WebSocket stream.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Socket, "socket", defaultSocketPath, "counterd IPC socket path")
	cmd.PersistentFlags().StringVar(&opts.WSURL, "ws", defaultWSURL, "counterd WebSocket URL (watch)")

	cmd.AddCommand(newEventCommand(opts, "start", "Start automatic counting", eventTypeStart))
	cmd.AddCommand(newEventCommand(opts, "pause", "Pause automatic counting", eventTypePause))
	cmd.AddCommand(newEventCommand(opts, "up", "Count up on each tick", eventTypeUp))
	cmd.AddCommand(newEventCommand(opts, "down", "Count down on each tick", eventTypeDown))
	cmd.AddCommand(newEventCommand(opts, "reset", "Restore the initial state", eventTypeReset))
	cmd.AddCommand(newValueCommand(opts, "set-to", "Set the count", eventTypeSetTo))
	cmd.AddCommand(newValueCommand(opts, "tick-speed", "Set the tick period in milliseconds", eventTypeTickSpeedChanged))
	cmd.AddCommand(newValueCommand(opts, "count-diff", "Set the step applied per tick", eventTypeCountDiffChanged))
	cmd.AddCommand(newStateCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))

	return cmd
}
