//go:build rp2040 || rp2350

package logx

import (
	"io"
	"sync"

	"dhtcode-go/x/conv"
)

// printWriter goes through the runtime console, like println.
type printWriter struct{}

func (printWriter) Write(p []byte) (int, error) {
	print(string(p))
	return len(p), nil
}

var (
	outMu sync.Mutex
	out   io.Writer = printWriter{}
	line  []byte
)

// SetOutput redirects all loggers to w (e.g. a UART).
func SetOutput(w io.Writer) {
	outMu.Lock()
	out = w
	outMu.Unlock()
}

func emit(tag string, lv Level, msg string, kv []any) {
	outMu.Lock()
	defer outMu.Unlock()
	b := line[:0]
	b = append(b, '[')
	b = append(b, tag...)
	b = append(b, "] "...)
	if lv != LevelInfo {
		b = append(b, lv.String()...)
		b = append(b, ' ')
	}
	b = append(b, msg...)
	for i := 0; i+1 < len(kv); i += 2 {
		b = append(b, ' ')
		b = appendValue(b, kv[i])
		b = append(b, '=')
		b = appendValue(b, kv[i+1])
	}
	b = append(b, '\n')
	_, _ = out.Write(b)
	line = b
}

func appendValue(b []byte, v any) []byte {
	var num [20]byte
	switch x := v.(type) {
	case string:
		return append(b, x...)
	case error:
		return append(b, x.Error()...)
	case interface{ String() string }:
		return append(b, x.String()...)
	case bool:
		if x {
			return append(b, "true"...)
		}
		return append(b, "false"...)
	case int:
		return append(b, conv.Itoa(num[:], int64(x))...)
	case int16:
		return append(b, conv.Itoa(num[:], int64(x))...)
	case int32:
		return append(b, conv.Itoa(num[:], int64(x))...)
	case int64:
		return append(b, conv.Itoa(num[:], x)...)
	case uint8:
		return append(b, conv.Itoa(num[:], int64(x))...)
	case uint16:
		return append(b, conv.Itoa(num[:], int64(x))...)
	case uint32:
		return append(b, conv.Itoa(num[:], int64(x))...)
	case uint64:
		return append(b, conv.Itoa(num[:], int64(x))...)
	default:
		return append(b, '?')
	}
}
