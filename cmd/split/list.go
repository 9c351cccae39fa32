package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dudk/split"
	"github.com/dudk/split/malgo"
	"github.com/dudk/split/midiin"
	"github.com/dudk/split/portaudio"
	"github.com/dudk/split/units"
	"github.com/dudk/split/vst2"
)

func listCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show available devices, MIDI input ports and plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.list(cmd.OutOrStdout())
			return nil
		},
	}
}

// builtin are units available by name.
var builtin = []split.Unit{&units.Sine{}, &units.Gain{}, units.Silence{}}

// listUnits prints meta of built-in units.
func listUnits(w io.Writer) {
	fmt.Fprintln(w, "Units:")
	for _, u := range builtin {
		m := split.Describe(u)
		outputs := "any"
		if m.AudioOutputs != nil {
			outputs = strings.Join(m.AudioOutputs, ", ")
		}
		fmt.Fprintf(w, "\t%s: outputs %s, %d MIDI inputs\n", m.Name, outputs, m.MIDIInputs)
	}
}

// list prints what can be found. Backends that fail are reported and
// skipped.
func (a *app) list(w io.Writer) {
	listUnits(w)

	fmt.Fprintln(w, "PortAudio devices:")
	if devices, err := portaudio.Devices(); err != nil {
		a.logger.WithError(err).Warn("portaudio devices")
	} else {
		for _, d := range devices {
			fmt.Fprintf(w, "\t%s (%s): %d channels, %v Hz\n", d.Name, d.HostAPI, d.MaxOutputChannels, d.DefaultSampleRate)
		}
	}

	fmt.Fprintln(w, "Malgo devices:")
	if names, err := malgo.Devices(); err != nil {
		a.logger.WithError(err).Warn("malgo devices")
	} else {
		for _, name := range names {
			fmt.Fprintf(w, "\t%s\n", name)
		}
	}

	fmt.Fprintln(w, "MIDI input ports:")
	for _, name := range midiin.Ports() {
		fmt.Fprintf(w, "\t%s\n", name)
	}

	fmt.Fprint(w, vst2.NewCache(a.settings.VST.Paths...))
}
