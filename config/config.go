// Package config resolves session settings from defaults, an optional YAML
// file, SPLIT_* environment variables and command line flags, in order of
// increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dudk/split"
	"github.com/dudk/split/host"
)

// EnvPrefix is the prefix of environment variables.
const EnvPrefix = "SPLIT"

// ErrInvalidSetting is returned when a setting has unusable value.
var ErrInvalidSetting = errors.New("invalid setting")

type (
	// Settings of a session.
	Settings struct {
		SampleRate     int    `mapstructure:"sample_rate"`
		BlockSize      int    `mapstructure:"block_size"`
		Channels       int    `mapstructure:"channels"`
		Backend        string `mapstructure:"backend"`
		QueueCapacity  int    `mapstructure:"queue_capacity"`
		StreamCapacity int    `mapstructure:"stream_capacity"`
		Policy         string `mapstructure:"policy"`
		// Retries of a failed block, offline only.
		Retries int     `mapstructure:"retries"`
		Log     Log     `mapstructure:"log"`
		Output  Output  `mapstructure:"output"`
		Metrics Metrics `mapstructure:"metrics"`
		Record  Record  `mapstructure:"record"`
		MIDI    MIDI    `mapstructure:"midi"`
		VST     VST     `mapstructure:"vst"`
	}

	// Log settings.
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	// Output file settings of offline rendering.
	Output struct {
		BitDepth int `mapstructure:"bit_depth"`
		BitRate  int `mapstructure:"bit_rate"`
		Quality  int `mapstructure:"quality"`
	}

	// Metrics endpoint settings. Empty address disables the endpoint.
	Metrics struct {
		Listen string `mapstructure:"listen"`
	}

	// Record settings of live sessions. Empty path disables recording.
	Record struct {
		Path   string        `mapstructure:"path"`
		Buffer time.Duration `mapstructure:"buffer"`
	}

	// MIDI input settings. Empty port disables the input, negative channel
	// passes all channels.
	MIDI struct {
		Port    string `mapstructure:"port"`
		Channel int    `mapstructure:"channel"`
	}

	// VST plugin settings.
	VST struct {
		Paths []string `mapstructure:"paths"`
	}
)

var defaults = map[string]interface{}{
	"sample_rate":      44100,
	"block_size":       512,
	"channels":         2,
	"backend":          host.PortAudio.String(),
	"queue_capacity":   256,
	"stream_capacity":  128,
	"policy":           host.MuteOnError.String(),
	"retries":          0,
	"log.level":        "info",
	"log.format":       "text",
	"output.bit_depth": 16,
	"output.bit_rate":  192,
	"output.quality":   2,
	"metrics.listen":   "",
	"record.path":      "",
	"record.buffer":    time.Second,
	"midi.port":        "",
	"midi.channel":     -1,
	"vst.paths":        []string{},
}

// flags maps flag names to setting keys.
var flags = map[string]string{
	"sample-rate":     "sample_rate",
	"block-size":      "block_size",
	"channels":        "channels",
	"backend":         "backend",
	"queue-capacity":  "queue_capacity",
	"stream-capacity": "stream_capacity",
	"policy":          "policy",
	"retries":         "retries",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"bit-depth":       "output.bit_depth",
	"bit-rate":        "output.bit_rate",
	"quality":         "output.quality",
	"metrics":         "metrics.listen",
	"record":          "record.path",
	"record-buffer":   "record.buffer",
	"midi-port":       "midi.port",
	"midi-channel":    "midi.channel",
	"vst-path":        "vst.paths",
}

// New returns viper instance with defaults and environment bound.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Flags defines the settings flags.
func Flags(fs *pflag.FlagSet) {
	fs.Int("sample-rate", defaults["sample_rate"].(int), "sample rate in Hz")
	fs.Int("block-size", defaults["block_size"].(int), "max number of frames in a block")
	fs.Int("channels", defaults["channels"].(int), "number of output channels")
	fs.String("backend", defaults["backend"].(string), "live backend: portaudio or malgo")
	fs.Int("queue-capacity", defaults["queue_capacity"].(int), "live event queue capacity")
	fs.Int("stream-capacity", defaults["stream_capacity"].(int), "max number of events in a block")
	fs.String("policy", defaults["policy"].(string), "processing error policy: continue, mute or stop")
	fs.Int("retries", defaults["retries"].(int), "retries of a failed block when rendering")
	fs.String("log-level", defaults["log.level"].(string), "log level")
	fs.String("log-format", defaults["log.format"].(string), "log format: text or json")
	fs.Int("bit-depth", defaults["output.bit_depth"].(int), "wav output bit depth: 16, 24 or 32")
	fs.Int("bit-rate", defaults["output.bit_rate"].(int), "mp3 output bit rate in kbps")
	fs.Int("quality", defaults["output.quality"].(int), "mp3 encoder quality: 0 is best, 9 is fastest")
	fs.String("metrics", defaults["metrics.listen"].(string), "listen address of the metrics endpoint")
	fs.String("record", defaults["record.path"].(string), "record live output into wav file")
	fs.Duration("record-buffer", defaults["record.buffer"].(time.Duration), "recorder ring buffer duration")
	fs.String("midi-port", defaults["midi.port"].(string), "MIDI input port")
	fs.Int("midi-channel", defaults["midi.channel"].(int), "MIDI input channel, -1 for all")
	fs.StringSlice("vst-path", defaults["vst.paths"].([]string), "additional VST scan paths")
}

// Bind binds the flags defined in the set. Flags missing in the set are
// skipped.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flags {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file, if provided, and returns validated
// settings.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Format returns the session format.
func (s *Settings) Format() split.Format {
	return split.Format{
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		MaxFrames:  s.BlockSize,
	}
}

// Kind returns the backend adapter kind.
func (s *Settings) Kind() (host.Kind, error) {
	return host.ParseKind(s.Backend)
}

// ErrorPolicy returns the processing error policy.
func (s *Settings) ErrorPolicy() (host.Policy, error) {
	return host.ParsePolicy(s.Policy)
}

// Validate checks that settings can be used to set up a session.
func (s *Settings) Validate() error {
	f := s.Format()
	if err := f.Validate(); err != nil {
		return err
	}
	configError := func(err error) error {
		return &split.ConfigError{Format: f, Err: err}
	}
	kind, err := s.Kind()
	if err != nil {
		return configError(err)
	}
	switch kind {
	case host.PortAudio, host.Malgo, host.Offline:
	default:
		return configError(fmt.Errorf("backend %v: %w", kind, host.ErrUnknownKind))
	}
	if _, err := s.ErrorPolicy(); err != nil {
		return configError(err)
	}
	if _, err := logrus.ParseLevel(s.Log.Level); err != nil {
		return configError(fmt.Errorf("%w: log level: %v", ErrInvalidSetting, err))
	}
	checks := []struct {
		ok    bool
		name  string
		value interface{}
	}{
		{s.QueueCapacity > 0, "queue_capacity", s.QueueCapacity},
		{s.StreamCapacity > 0, "stream_capacity", s.StreamCapacity},
		{s.Retries >= 0, "retries", s.Retries},
		{s.Log.Format == "text" || s.Log.Format == "json", "log.format", s.Log.Format},
		{s.Output.BitDepth == 16 || s.Output.BitDepth == 24 || s.Output.BitDepth == 32, "output.bit_depth", s.Output.BitDepth},
		{s.Output.BitRate > 0, "output.bit_rate", s.Output.BitRate},
		{s.Output.Quality >= 0 && s.Output.Quality <= 9, "output.quality", s.Output.Quality},
		{s.Record.Buffer > 0, "record.buffer", s.Record.Buffer},
		{s.MIDI.Channel >= -1 && s.MIDI.Channel <= 15, "midi.channel", s.MIDI.Channel},
	}
	for _, c := range checks {
		if !c.ok {
			return configError(fmt.Errorf("%w: %s: %v", ErrInvalidSetting, c.name, c.value))
		}
	}
	return nil
}
