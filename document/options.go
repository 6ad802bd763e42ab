package document

import (
	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/recovery"
)

// Option configures Load.
type Option func(*settings)

type settings struct {
	limits   config.Limits
	recovery recovery.Strategy
	logger   observability.Logger
	tracer   observability.Tracer
}

func newSettings(opts []Option) settings {
	s := settings{
		limits:   config.DefaultLimits(),
		recovery: recovery.NewSyntaxStrategy(),
		logger:   observability.NopLogger{},
		tracer:   observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func WithLimits(l config.Limits) Option {
	return func(s *settings) { s.limits = l }
}

// WithRecovery decides whether recoverable problems abort loading.
func WithRecovery(r recovery.Strategy) Option {
	return func(s *settings) {
		if r != nil {
			s.recovery = r
		}
	}
}

func WithStrict(strict bool) Option {
	return WithRecovery(recovery.For(strict))
}

func WithLogger(l observability.Logger) Option {
	return func(s *settings) { s.logger = observability.OrNop(l) }
}

func WithTracer(t observability.Tracer) Option {
	return func(s *settings) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithConfig applies the limits and strictness of a configuration file.
// Repair selects whole-file recovery unless Strict is also set.
func WithConfig(o config.Options) Option {
	return func(s *settings) {
		s.limits = o.Limits
		s.recovery = recovery.For(o.Strict)
		if o.Repair && !o.Strict {
			s.recovery = recovery.NewLenientStrategy()
		}
	}
}

func (s settings) strict() bool {
	_, ok := s.recovery.(*recovery.StrictStrategy)
	return ok
}
