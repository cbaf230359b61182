//go:build !(rp2040 || rp2350)

package logx

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	rootMu sync.RWMutex
	root   = newRoot(os.Stderr)
)

func newRoot(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           log.DebugLevel, // filtering happens in Logger.log
	})
}

// SetOutput redirects all loggers to w.
func SetOutput(w io.Writer) {
	rootMu.Lock()
	root = newRoot(w)
	rootMu.Unlock()
}

func emit(tag string, lv Level, msg string, kv []any) {
	rootMu.RLock()
	l := root
	rootMu.RUnlock()
	l.WithPrefix(tag).Log(charmLevel(lv), msg, kv...)
}

func charmLevel(lv Level) log.Level {
	switch lv {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
