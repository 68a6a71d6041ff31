// Package logger is a thin zerolog wrapper with the console layout
// and field names shared by every component.
package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Level int8

const (
	TraceLevel Level = iota - 1
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

const (
	ClientField    = "c"
	DirectionField = "d"
	ModuleField    = "m"
	RoomField      = "room"

	tagField = "s"
	pidField = "pid"
)

type Logger struct {
	logger *zerolog.Logger
}

// NewConsole makes a human-readable logger with the columns:
// time, pid, level, tag, module, client, direction and message.
func NewConsole(isDebug bool, tag string, noColor bool) *Logger {
	level := zerolog.InfoLevel
	if isDebug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	columns := []string{tagField, ModuleField, ClientField, DirectionField}
	out := zerolog.ConsoleWriter{
		Out:           os.Stdout,
		TimeFormat:    "15:04:05.0000",
		NoColor:       noColor,
		PartsOrder:    append([]string{zerolog.TimestampFieldName, pidField, zerolog.LevelFieldName}, append(columns, zerolog.MessageFieldName)...),
		FieldsExclude: append(columns, pidField),
	}
	if noColor {
		out.FormatMessage = func(i any) string {
			if i == nil {
				return ""
			}
			return fmt.Sprint(i)
		}
	}
	l := zerolog.New(out).With().
		Str(pidField, fmt.Sprintf("%4x", os.Getpid())).
		Str(tagField, tag).
		Str(ModuleField, "").
		Str(ClientField, " ").
		Str(DirectionField, " ").
		Timestamp().Logger()
	return &Logger{logger: &l}
}

// NewNop discards everything.
func NewNop() *Logger {
	l := zerolog.Nop()
	return &Logger{logger: &l}
}

// Default is the global zerolog logger.
func Default() *Logger { return &Logger{logger: &log.Logger} }

func (l *Logger) GetLevel() Level       { return Level(l.logger.GetLevel()) }
func (l *Logger) With() zerolog.Context { return l.logger.With() }

func (l *Logger) Debug() *zerolog.Event                        { return l.logger.Debug() }
func (l *Logger) Info() *zerolog.Event                         { return l.logger.Info() }
func (l *Logger) Warn() *zerolog.Event                         { return l.logger.Warn() }
func (l *Logger) Error() *zerolog.Event                        { return l.logger.Error() }
func (l *Logger) Fatal() *zerolog.Event                        { return l.logger.Fatal() }
func (l *Logger) WithLevel(level zerolog.Level) *zerolog.Event { return l.logger.WithLevel(level) }

// Extend makes a child logger from the context.
func (l *Logger) Extend(ctx zerolog.Context) *Logger {
	child := ctx.Logger()
	return &Logger{logger: &child}
}

// AtLevel makes a child logger that drops events below the level.
func (l *Logger) AtLevel(level zerolog.Level) *Logger {
	child := l.logger.Level(level)
	return &Logger{logger: &child}
}

// Module tags the child logger with the component name.
func (l *Logger) Module(name string) *Logger { return l.Extend(l.With().Str(ModuleField, name)) }
