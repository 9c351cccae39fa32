package log

import (
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

// Logger is a global interface for split loggers.
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
	Error(...interface{})
}

// Discard is a logger that drops all messages.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debug(...interface{}) {}
func (discard) Info(...interface{})  {}
func (discard) Warn(...interface{})  {}
func (discard) Error(...interface{}) {}

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("SPLIT_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// New returns a logger with provided level and format. Format is either
// "text" or "json". Debug environment overrides the level.
func New(w io.Writer, level, format string) (*logrus.Logger, error) {
	l := GetLogger()
	l.SetOutput(w)
	if !debug && level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		l.SetLevel(lvl)
	}
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l, nil
}

// OrDiscard returns l or Discard if l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
