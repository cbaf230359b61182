// Package logx is the tagged, leveled logger used by every service.
//
//	var log = logx.New("climate")
//	log.Info("Hum 45.3")
//	log.Warn("read failed", "err", err)
//
// Host builds render through charmbracelet/log; MCU builds write plain
// "[tag] LEVEL msg k=v" lines to the console.
package logx

import "sync/atomic"

type Level int32

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel accepts "debug", "info", "warn" and "error".
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

var level atomic.Int32

// SetLevel sets the minimum level emitted by all loggers.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// CurrentLevel returns the minimum level currently emitted.
func CurrentLevel() Level { return Level(level.Load()) }

func enabled(l Level) bool { return int32(l) >= level.Load() }

// Logger writes lines prefixed with its tag.
type Logger struct {
	tag string
}

func New(tag string) *Logger { return &Logger{tag: tag} }

func (l *Logger) Tag() string { return l.tag }

func (l *Logger) Debug(msg string, kv ...any) { l.log(LevelDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(LevelInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(LevelWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.log(LevelError, msg, kv) }

func (l *Logger) log(lv Level, msg string, kv []any) {
	if !enabled(lv) {
		return
	}
	emit(l.tag, lv, msg, kv)
}
