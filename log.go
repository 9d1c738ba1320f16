package forest

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// LogLevel is the severity of a forestLogger message, ordered so a
// logger configured at level L discards anything below L.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "DEBUG"
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	default:
		return "UNKNOWN"
	}
}

// forestLogger is a minimal leveled logger for the balance/partition/
// migration hot paths: round counts, shipment sizes, byte counts.
// Collective operations run on every rank, so the default level is
// LogWarn to keep a multi-rank run quiet unless a caller opts in.
type forestLogger struct {
	mu     sync.Mutex
	level  LogLevel
	out    io.Writer
	fields map[string]interface{}
}

var defaultLogger = &forestLogger{level: LogWarn, out: os.Stderr}

// SetLogLevel changes the minimum level defaultLogger emits.
func SetLogLevel(level LogLevel) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = level
}

// SetLogOutput redirects defaultLogger, mainly so tests can capture
// emitted lines instead of writing to stderr.
func SetLogOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.out = w
}

// withFields returns a copy of l carrying fields merged on top of
// whatever fields l already holds, mirroring junjiewwang's
// WithField/WithFields copy-on-write semantics.
func (l *forestLogger) withFields(fields map[string]interface{}) *forestLogger {
	l.mu.Lock()
	level, out := l.level, l.out
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	l.mu.Unlock()
	for k, v := range fields {
		merged[k] = v
	}
	return &forestLogger{level: level, out: out, fields: merged}
}

func (l *forestLogger) Debug(msg string, args ...interface{}) { l.log(LogDebug, msg, args...) }
func (l *forestLogger) Info(msg string, args ...interface{})  { l.log(LogInfo, msg, args...) }
func (l *forestLogger) Warn(msg string, args ...interface{})  { l.log(LogWarn, msg, args...) }

func (l *forestLogger) log(level LogLevel, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	formatted := fmt.Sprintf(msg, args...)
	fieldStr := ""
	for k, v := range l.fields {
		fieldStr += fmt.Sprintf(" %s=%v", k, v)
	}
	fmt.Fprintf(l.out, "[%s]%s %s\n", level, fieldStr, formatted)
}
