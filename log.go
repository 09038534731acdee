package mdns

import "go.uber.org/zap"

// WithLogger sets the logger the responder and its engines use for
// best-effort failures (bind warnings, parse errors, transmit errors,
// channel closures). The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Responder) error {
		if l != nil {
			r.log = l
		}
		return nil
	}
}
