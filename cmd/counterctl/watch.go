package main

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	*rootOptions
	Count int
}

func newWatchCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &watchOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print WebSocket messages from counterd",
		Long: `Connect to the counterd WebSocket surface and print every message
(state_init, state_changed and render_*) as one JSON line.

Example:
  counterctl watch --ws ws://127.0.0.1:8090/ws`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", 0, "exit after this many messages (0 = until interrupted)")

	return cmd
}

func watch(ctx context.Context, opts *watchOptions, cmd *cobra.Command) error {
	u, err := url.Parse(opts.WSURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u.String(), err)
	}
	defer conn.Close()

	// Unblock ReadMessage on interrupt.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	seen := 0
	for opts.Count == 0 || seen < opts.Count {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(msg))
		seen++
	}
	return nil
}
