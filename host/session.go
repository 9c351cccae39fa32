package host

import (
	"context"
	"errors"
	"io"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dudk/split"
)

// Producer is a goroutine that runs alongside the adapter, for example a
// live MIDI input feeding the event queue. It must return when the
// context is done.
type Producer func(ctx context.Context) error

// Session runs the adapter, its producers and the error logger until the
// host is done, the context is done or the engine decides to stop.
type Session struct {
	id        xid.ID
	adapter   Adapter
	engine    *Engine
	producers []Producer
	logger    logrus.FieldLogger
}

// SessionOption configures the session.
type SessionOption func(*Session)

// WithProducers adds producers to the session.
func WithProducers(producers ...Producer) SessionOption {
	return func(s *Session) {
		s.producers = append(s.producers, producers...)
	}
}

// WithLogger sets the logger for block errors and lifecycle messages.
func WithLogger(l logrus.FieldLogger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession binds the adapter to the engine.
func NewSession(adapter Adapter, engine *Engine, options ...SessionOption) *Session {
	s := &Session{
		id:      xid.New(),
		adapter: adapter,
		engine:  engine,
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.logger = l
	}
	s.logger = s.logger.WithFields(logrus.Fields{
		"session": s.id.String(),
		"adapter": adapter.Kind().String(),
	})
	return s
}

// ID returns unique session id.
func (s *Session) ID() string {
	return s.id.String()
}

// Run executes the session and closes the engine when it's done. Errors of
// the adapter, producers and the engine teardown are returned together.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	meta := s.engine.Meta()
	s.logger.WithFields(logrus.Fields{
		"format":  s.engine.Format().String(),
		"unit":    meta.Name,
		"outputs": meta.Outputs(s.engine.Format().Channels),
	}).Info("session started")
	g.Go(func() error {
		defer cancel()
		return s.adapter.Run(runCtx, s.engine)
	})
	g.Go(func() error {
		s.logErrors(runCtx)
		return nil
	})
	for _, p := range s.producers {
		p := p
		g.Go(func() error {
			return p(runCtx)
		})
	}

	var errs split.Errors
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	if err := s.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.WithFields(logrus.Fields{
		"blocks": s.engine.Blocks(),
		"lost":   s.engine.Lost(),
	}).Info("session done")
	return errs.Ret()
}

// logErrors logs engine errors until the context is done.
func (s *Session) logErrors(ctx context.Context) {
	for {
		select {
		case err := <-s.engine.Errors():
			s.logError(err)
		case <-s.engine.Done():
			s.drainErrors()
			return
		case <-ctx.Done():
			s.drainErrors()
			return
		}
	}
}

func (s *Session) drainErrors() {
	for {
		select {
		case err := <-s.engine.Errors():
			s.logError(err)
		default:
			return
		}
	}
}

func (s *Session) logError(err error) {
	fields := logrus.Fields{}
	var be *BlockError
	if errors.As(err, &be) {
		fields["block"] = be.Block
		fields["decision"] = be.Decision.String()
	}
	var pe *split.ProcessingError
	if errors.As(err, &pe) {
		fields["start"] = pe.Start
		fields["end"] = pe.End
	}
	s.logger.WithFields(fields).Error(err)
}
