// Command split hosts processing units live or renders them offline.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/split"
	"github.com/dudk/split/config"
	"github.com/dudk/split/log"
	"github.com/dudk/split/offline"
	"github.com/dudk/split/units"
	"github.com/dudk/split/vst2"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer midi.CloseDriver()
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		return 1
	}
	return 0
}

// app holds state shared by commands.
type app struct {
	viper      *viper.Viper
	configPath string
	settings   *config.Settings
	logger     *logrus.Logger
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{viper: config.New()}
	root := &cobra.Command{
		Use:           "split",
		Short:         "Sample-accurate host of audio processing units",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file")
	config.Flags(root.PersistentFlags())
	// flags are bound before parsing, so parsed values take precedence.
	if err := config.Bind(a.viper, root.PersistentFlags()); err != nil {
		panic(err)
	}
	root.AddCommand(
		listCommand(a),
		renderCommand(a),
		playCommand(a),
		planCommand(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	s, err := config.Load(a.viper, a.configPath)
	if err != nil {
		return err
	}
	a.settings = s
	if a.logger, err = log.New(cmd.ErrOrStderr(), s.Log.Level, s.Log.Format); err != nil {
		return err
	}
	return nil
}

// unit builds the chain of named units: sine, gain, silence, VST2 plugin
// names found in scan paths or paths to plugin libraries.
func (a *app) unit(names []string) (split.Unit, error) {
	var (
		chain units.Chain
		cache *vst2.Cache
	)
	for _, name := range names {
		switch strings.ToLower(name) {
		case "sine":
			chain = append(chain, &units.Sine{})
		case "gain":
			chain = append(chain, &units.Gain{Level: 1})
		case "silence":
			chain = append(chain, units.Silence{})
		default:
			path := name
			if _, err := os.Stat(path); err != nil {
				if cache == nil {
					cache = vst2.NewCache(a.settings.VST.Paths...)
				}
				if path, err = cache.Find(name); err != nil {
					_ = chain.Close()
					return nil, err
				}
			}
			u, err := vst2.Load(path)
			if err != nil {
				_ = chain.Close()
				return nil, err
			}
			a.logger.WithField("path", path).Debug("plugin loaded")
			chain = append(chain, u)
		}
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// readTrack reads Standard MIDI File or YAML event script.
func readTrack(path string, sampleRate int) (*offline.Track, error) {
	var read func(io.Reader, int) (*offline.Track, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".smf":
		read = offline.ReadSMF
	case ".yaml", ".yml":
		read = offline.ReadScript
	default:
		return nil, fmt.Errorf("%w: %s", offline.ErrUnsupportedFile, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f, sampleRate)
}
