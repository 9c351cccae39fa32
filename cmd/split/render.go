package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dudk/split"
	"github.com/dudk/split/host"
	"github.com/dudk/split/offline"
	"github.com/dudk/split/signal"
)

type renderOptions struct {
	units  []string
	input  string
	tail   time.Duration
	length time.Duration
}

func renderCommand(a *app) *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render <track> <output>",
		Short: "Render event track into wav or mp3 file",
		Long: "Render event track into wav or mp3 file. Track is a Standard MIDI File or a YAML event script. " +
			"Blocks are split at event offsets exactly as in live sessions of the same block size.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd, args[0], args[1], opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.units, "unit", "u", []string{"sine"}, "units to chain: sine, gain, silence or VST2 plugin")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "reference audio passed to the units: wav, aiff, mp3 or ogg")
	cmd.Flags().DurationVar(&opts.tail, "tail", 0, "render duration after the last event")
	cmd.Flags().DurationVar(&opts.length, "length", 0, "min duration of the output")
	return cmd
}

func (a *app) render(cmd *cobra.Command, trackPath, outPath string, opts renderOptions) (err error) {
	format := a.settings.Format()
	policy, err := a.settings.ErrorPolicy()
	if err != nil {
		return err
	}
	track, err := readTrack(trackPath, format.SampleRate)
	if err != nil {
		return err
	}

	options := []offline.Option{
		offline.WithRetries(a.settings.Retries),
		offline.WithTail(int(signal.FramesIn(format.SampleRate, opts.tail))),
		offline.WithLength(int(signal.FramesIn(format.SampleRate, opts.length))),
	}
	if opts.input != "" {
		source, err := offline.Open(opts.input)
		if err != nil {
			return err
		}
		defer source.Close()
		options = append(options, offline.WithSource(source))
	}

	unit, err := a.unit(opts.units)
	if err != nil {
		return err
	}
	engine, err := host.NewEngine(unit, format,
		host.WithPolicy(policy),
		host.WithStreamCapacity(a.settings.StreamCapacity),
	)
	if err != nil {
		return err
	}

	sink, err := offline.Create(outPath, format, offline.SinkOptions{
		BitDepth: signal.BitDepth(a.settings.Output.BitDepth),
		BitRate:  a.settings.Output.BitRate,
		Quality:  a.settings.Output.Quality,
	})
	if err != nil {
		_ = engine.Close()
		return err
	}
	defer func() {
		var errs split.Errors
		if err != nil {
			errs = append(errs, err)
		}
		if closeErr := sink.Close(); closeErr != nil {
			errs = append(errs, closeErr)
		}
		err = errs.Ret()
	}()

	renderer := offline.New(track, sink, options...)
	start := time.Now()
	if err := host.NewSession(renderer, engine, host.WithLogger(a.logger)).Run(cmd.Context()); err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"output":  outPath,
		"blocks":  renderer.Blocks(),
		"retried": renderer.Retried(),
		"elapsed": time.Since(start),
	}).Info("rendered")
	return nil
}
