package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudk/split/host"
	"github.com/dudk/split/offline"
	"github.com/dudk/split/signal"
	"github.com/dudk/split/trace"
	"github.com/dudk/split/units"
)

// discard drops rendered blocks.
type discard struct{}

func (discard) Write(signal.Buffer) error { return nil }

func (discard) Close() error { return nil }

func planCommand(a *app) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "plan <track>",
		Short: "Print sub-blocks the track is split into",
		Long: "Print sub-blocks the track is split into for the configured block size. " +
			"Every line is a processor call with events due at its first frame.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.plan(cmd, args[0])
			if err != nil {
				return err
			}
			if dump {
				fmt.Fprint(cmd.OutOrStdout(), trace.Dump(rec))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print detailed dump of sub-blocks")
	return cmd
}

func (a *app) plan(cmd *cobra.Command, trackPath string) (*trace.Recorder, error) {
	format := a.settings.Format()
	track, err := readTrack(trackPath, format.SampleRate)
	if err != nil {
		return nil, err
	}
	rec := &trace.Recorder{}
	engine, err := host.NewEngine(units.Silence{}, format,
		host.WithObserver(rec),
		host.WithStreamCapacity(a.settings.StreamCapacity),
	)
	if err != nil {
		return nil, err
	}
	if err := host.NewSession(offline.New(track, discard{}), engine, host.WithLogger(a.logger)).Run(cmd.Context()); err != nil {
		return nil, err
	}
	return rec, nil
}
