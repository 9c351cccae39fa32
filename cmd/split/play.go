package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/host"
	"github.com/dudk/split/malgo"
	"github.com/dudk/split/metric"
	"github.com/dudk/split/midiin"
	"github.com/dudk/split/offline"
	"github.com/dudk/split/portaudio"
	"github.com/dudk/split/signal"
	"github.com/dudk/split/tap"
)

const shutdownTimeout = 5 * time.Second

// ErrOfflineBackend is returned when play is asked to use offline backend.
var ErrOfflineBackend = errors.New("offline backend can only render, use render command")

// factories open live adapters that log to the app logger.
func (a *app) factories() host.Factories {
	return host.Factories{
		host.PortAudio: func(f split.Format) (host.Adapter, error) {
			return portaudio.New(f, portaudio.WithLogger(a.logger))
		},
		host.Malgo: func(f split.Format) (host.Adapter, error) {
			return malgo.New(f, malgo.WithLogger(a.logger))
		},
	}
}

func playCommand(a *app) *cobra.Command {
	var unitNames []string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play units live with MIDI input",
		Long: "Play units on the live backend. Events of the MIDI input port are placed into blocks " +
			"by arrival time. Output can be recorded and metrics served over HTTP.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.play(cmd, unitNames)
		},
	}
	cmd.Flags().StringSliceVarP(&unitNames, "unit", "u", []string{"sine"}, "units to chain: sine, gain, silence or VST2 plugin")
	return cmd
}

func (a *app) play(cmd *cobra.Command, unitNames []string) (err error) {
	format := a.settings.Format()
	kind, err := a.settings.Kind()
	if err != nil {
		return err
	}
	if kind == host.Offline {
		return ErrOfflineBackend
	}
	policy, err := a.settings.ErrorPolicy()
	if err != nil {
		return err
	}
	adapter, err := a.factories().Open(kind, format)
	if err != nil {
		return err
	}

	queue := event.NewQueue(a.settings.QueueCapacity)
	options := []host.EngineOption{
		host.WithQueue(queue),
		host.WithPolicy(policy),
		host.WithStreamCapacity(a.settings.StreamCapacity),
	}
	var producers []host.Producer

	if addr := a.settings.Metrics.Listen; addr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := metric.New(reg)
		if err != nil {
			return err
		}
		options = append(options, host.WithMeter(metrics.Meter(kind.String(), format.SampleRate)))
		producers = append(producers, serveMetrics(addr, reg))
	}

	if port := a.settings.MIDI.Port; port != "" {
		in, err := midiin.Open(port)
		if err != nil {
			return err
		}
		listenerOptions := []midiin.Option{midiin.WithLogger(a.logger)}
		if ch := a.settings.MIDI.Channel; ch >= 0 {
			listenerOptions = append(listenerOptions, midiin.WithChannel(uint8(ch)))
		}
		producers = append(producers, midiin.New(in, queue, listenerOptions...).Run)
	}

	if path := a.settings.Record.Path; path != "" {
		sink, createErr := offline.Create(path, format, offline.SinkOptions{
			BitDepth: signal.BitDepth(a.settings.Output.BitDepth),
			BitRate:  a.settings.Output.BitRate,
			Quality:  a.settings.Output.Quality,
		})
		if createErr != nil {
			return createErr
		}
		defer func() {
			if closeErr := sink.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		recorder, tapErr := tap.New(format, sink, a.settings.Record.Buffer)
		if tapErr != nil {
			return tapErr
		}
		defer func() {
			if recorder.Dropped() > 0 {
				a.logger.WithField("frames", recorder.Dropped()).Warn("recorder dropped output")
			}
		}()
		options = append(options, host.WithTap(recorder))
		producers = append(producers, recorder.Run)
	}

	unit, err := a.unit(unitNames)
	if err != nil {
		return err
	}
	engine, err := host.NewEngine(unit, format, options...)
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	session := host.NewSession(adapter, engine,
		host.WithProducers(producers...),
		host.WithLogger(a.logger),
	)
	a.logger.WithField("session", session.ID()).Info("press ctrl+c to stop")
	if err := session.Run(ctx); err != nil {
		return err
	}
	if dropped := queue.Dropped(); dropped > 0 {
		a.logger.WithField("events", dropped).Warn("event queue overflowed")
	}
	return nil
}

// serveMetrics serves the registry until the context is done.
func serveMetrics(addr string, reg *prometheus.Registry) host.Producer {
	return func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: shutdownTimeout,
		}
		errc := make(chan error, 1)
		go func() {
			errc <- srv.ListenAndServe()
		}()
		select {
		case err := <-errc:
			return fmt.Errorf("serve metrics on %s: %w", addr, err)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
