package split

// Option configures the scheduler.
type Option func(*Scheduler)

// WithObserver sets the observer that sees every sub-block before it's
// processed.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithMeter sets the meter that counts scheduled blocks.
func WithMeter(m Meter) Option {
	return func(s *Scheduler) {
		s.meter = m
	}
}
