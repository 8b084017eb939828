// Package logger provides leveled, component-scoped logging for stagelink.
//
// Every log line carries a short component tag ("transport", "bridge",
// "mirror", ...) so interleaved output from the event loop stays readable.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level controls which messages are emitted.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

var (
	mu    sync.Mutex
	level = INFO
	out   io.Writer = os.Stderr
	now             = time.Now
)

// SetLevel sets the minimum level that will be emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetOutput redirects log output. Pass io.Discard to silence the logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func logC(l Level, component, msg string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}

	var b strings.Builder
	b.WriteString(now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(l.String())
	b.WriteString("] [")
	b.WriteString(component)
	b.WriteString("] ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	io.WriteString(out, b.String())
}

// DebugC logs a debug message for a component.
func DebugC(component, msg string) { logC(DEBUG, component, msg, nil) }

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]any) { logC(DEBUG, component, msg, fields) }

// InfoC logs an info message for a component.
func InfoC(component, msg string) { logC(INFO, component, msg, nil) }

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]any) { logC(INFO, component, msg, fields) }

// WarnC logs a warning for a component.
func WarnC(component, msg string) { logC(WARN, component, msg, nil) }

// WarnCF logs a warning with structured fields.
func WarnCF(component, msg string, fields map[string]any) { logC(WARN, component, msg, fields) }

// ErrorC logs an error message for a component.
func ErrorC(component, msg string) { logC(ERROR, component, msg, nil) }

// ErrorCF logs an error message with structured fields.
func ErrorCF(component, msg string, fields map[string]any) { logC(ERROR, component, msg, fields) }
