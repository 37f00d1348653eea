package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// logLevels pairs the go-belt levels with the libav verbosity; libav is one
// step chattier than go-belt so Debug maps to Verbose and Trace to Debug.
var logLevels = []struct {
	belt logger.Level
	av   astiav.LogLevel
}{
	{logger.LevelUndefined, astiav.LogLevelQuiet},
	{logger.LevelPanic, astiav.LogLevelPanic},
	{logger.LevelFatal, astiav.LogLevelFatal},
	{logger.LevelError, astiav.LogLevelError},
	{logger.LevelWarning, astiav.LogLevelWarning},
	{logger.LevelInfo, astiav.LogLevelInfo},
	{logger.LevelDebug, astiav.LogLevelVerbose},
	{logger.LevelTrace, astiav.LogLevelDebug},
}

func LogLevelToAstiav(level logger.Level) astiav.LogLevel {
	for _, l := range logLevels {
		if l.belt == level {
			return l.av
		}
	}
	return astiav.LogLevelWarning
}

func LogLevelFromAstiav(level astiav.LogLevel) logger.Level {
	for _, l := range logLevels {
		if l.av == level {
			return l.belt
		}
	}
	return logger.LevelWarning
}
