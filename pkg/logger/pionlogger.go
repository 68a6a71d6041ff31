package logger

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// PionLogger routes pion's internal logs into zerolog.
type PionLogger struct {
	log *Logger
}

const trace = zerolog.Level(TraceLevel)

func NewPionLogger(root *Logger, level int) *PionLogger {
	return &PionLogger{log: root.AtLevel(zerolog.Level(level))}
}

func (p PionLogger) NewLogger(scope string) logging.LeveledLogger {
	return PionLogger{log: p.log.Extend(p.log.With().Str(ModuleField, scope))}
}

func (p PionLogger) Debug(msg string)                  { p.log.Debug().Msg(msg) }
func (p PionLogger) Debugf(format string, args ...any) { p.log.Debug().Msgf(format, args...) }
func (p PionLogger) Error(msg string)                  { p.log.Error().Msg(msg) }
func (p PionLogger) Errorf(format string, args ...any) { p.log.Error().Msgf(format, args...) }
func (p PionLogger) Info(msg string)                   { p.log.Info().Msg(msg) }
func (p PionLogger) Infof(format string, args ...any)  { p.log.Info().Msgf(format, args...) }
func (p PionLogger) Trace(msg string)                  { p.log.WithLevel(trace).Msg(msg) }
func (p PionLogger) Tracef(format string, args ...any) { p.log.WithLevel(trace).Msgf(format, args...) }
func (p PionLogger) Warn(msg string)                   { p.log.Warn().Msg(msg) }
func (p PionLogger) Warnf(format string, args ...any)  { p.log.Warn().Msgf(format, args...) }
