package orchestrator

import (
	"io"
	"time"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger installs a debug logger for the run. The logger is also made
// available to package-level debug logging.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithMaxReplans bounds how many times a run may discard its pass and
// request a corrected plan. Negative values are treated as zero.
func WithMaxReplans(n int) Option {
	return func(o *Orchestrator) {
		if n < 0 {
			n = 0
		}
		o.maxReplans = n
	}
}

// WithEventBufferSize sets the capacity of the event channel. Events beyond
// the buffer are dropped rather than blocking the run.
func WithEventBufferSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.eventBufferSize = n
		}
	}
}

// WithVerdictModel overrides the model used for the final synthesis call.
func WithVerdictModel(model string) Option {
	return func(o *Orchestrator) {
		o.verdictModel = model
	}
}

// WithVerdictSystem overrides the system prompt for the final synthesis call.
func WithVerdictSystem(system string) Option {
	return func(o *Orchestrator) {
		o.verdictSystem = system
	}
}

// WithVerdictTimeout bounds the final synthesis call. Zero disables the bound.
func WithVerdictTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.verdictTimeout = d
	}
}

// WithVerdictSink streams verdict text to w as it is produced, when the
// synthesis capability supports streaming.
func WithVerdictSink(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.verdictSink = w
	}
}
