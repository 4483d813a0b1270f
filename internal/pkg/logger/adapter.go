package logger

import (
	"portfolio_aggregator/internal/app/port"

	"go.uber.org/zap"
)

// slogAdapter implements port.Logger on top of the package-level helpers.
type slogAdapter struct{}

// NewSlogAdapter returns a port.Logger that writes through the global slog logger.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

func (a *slogAdapter) Info(msg string, args ...any)  { Info(msg, args...) }
func (a *slogAdapter) Debug(msg string, args ...any) { Debug(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { Error(msg, args...) }

// zapAdapter implements port.Logger on a named zap logger, for components that
// want their own logger name in the output.
type zapAdapter struct {
	s *zap.SugaredLogger
}

// NewZapAdapter wraps zl. Key/value args follow the zap SugaredLogger "w" convention.
func NewZapAdapter(zl *zap.Logger) port.Logger {
	return &zapAdapter{s: zl.Sugar()}
}

func (a *zapAdapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a *zapAdapter) Debug(msg string, args ...any) { a.s.Debugw(msg, args...) }
func (a *zapAdapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a *zapAdapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }

// NewNop returns a port.Logger that discards everything.
func NewNop() port.Logger {
	return NewZapAdapter(zap.NewNop())
}
