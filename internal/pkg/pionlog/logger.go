// Package pionlog routes pion's leveled logs into zerolog.
package pionlog

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// LoggerFactory implements logging.LoggerFactory on top of a zerolog logger.
type LoggerFactory struct {
	logger zerolog.Logger
}

// New returns a LoggerFactory. Every scope becomes a "scope" field.
func New(logger *zerolog.Logger) *LoggerFactory {
	return &LoggerFactory{logger: logger.With().Str("component", "pion").Logger()}
}

// NewLogger implements logging.LoggerFactory.
func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{f.logger.With().Str("scope", scope).Logger()}
}

type leveledLogger struct {
	zerolog.Logger
}

func (l *leveledLogger) Trace(msg string) {
	l.Logger.Trace().Msg(msg)
}

func (l *leveledLogger) Tracef(format string, args ...interface{}) {
	l.Logger.Trace().Msgf(format, args...)
}

func (l *leveledLogger) Debug(msg string) {
	l.Logger.Debug().Msg(msg)
}

func (l *leveledLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debug().Msgf(format, args...)
}

func (l *leveledLogger) Info(msg string) {
	l.Logger.Info().Msg(msg)
}

func (l *leveledLogger) Infof(format string, args ...interface{}) {
	l.Logger.Info().Msgf(format, args...)
}

func (l *leveledLogger) Warn(msg string) {
	l.Logger.Warn().Msg(msg)
}

func (l *leveledLogger) Warnf(format string, args ...interface{}) {
	l.Logger.Warn().Msgf(format, args...)
}

func (l *leveledLogger) Error(msg string) {
	l.Logger.Error().Msg(msg)
}

func (l *leveledLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Error().Msgf(format, args...)
}
