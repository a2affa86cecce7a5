package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// newEventCommand creates a command that sends a payload-less event.
func newEventCommand(opts *rootOptions, use, short, typ string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := sendEnvelope(opts.Socket, eventEnvelope{Type: typ}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

// newValueCommand creates a command that sends an event carrying one integer.
func newValueCommand(opts *rootOptions, use, short, typ string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <value>",
		Short: short,
		Long:  short + ".\n\nNegative values need a \"--\" separator, e.g. counterctl " + use + " -- -5",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid value %q: must be an integer", args[0])
			}
			env, err := valueEnvelope(typ, v)
			if err != nil {
				return err
			}
			if _, err := sendEnvelope(opts.Socket, env); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newStateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the latest counter snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := sendEnvelope(opts.Socket, eventEnvelope{Type: eventTypeGetState})
			if err != nil {
				return err
			}
			if len(resp.State) == 0 {
				return fmt.Errorf("daemon returned no state")
			}
			var out bytes.Buffer
			if err := json.Indent(&out, resp.State, "", "  "); err != nil {
				return fmt.Errorf("format state: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
}
