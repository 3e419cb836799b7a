package zone

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/andrew-d/go-termutil"
	"github.com/jpillora/ansi"
)

// LogLevel is the severity of a single log statement. Lower values are
// more severe; LogLevelPanic is the most severe and LogLevelTrace the
// least.
type LogLevel int

const (
	LogLevelUnknown LogLevel = iota - 2
	LogLevelPanic
	LogLevelFatal
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

var logLevelNames = map[LogLevel]string{
	LogLevelUnknown: "UNKNOWN",
	LogLevelPanic:   "PANIC",
	LogLevelFatal:   "FATAL",
	LogLevelError:   "ERROR",
	LogLevelWarning: "WARNING",
	LogLevelInfo:    "INFO",
	LogLevelDebug:   "DEBUG",
	LogLevelTrace:   "TRACE",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// StringToLogLevel parses a level name case-sensitively, returning
// LogLevelUnknown and false if s names no known level.
func StringToLogLevel(s string) (LogLevel, bool) {
	for level, name := range logLevelNames {
		if name == s {
			return level, true
		}
	}
	return LogLevelUnknown, false
}

// logLevelColor maps a level to the raw ANSI SGR escape sequence used by
// the console writer; it is written through an ansi.Writer so it renders
// correctly (or is stripped) on every platform the teacher's CLI targets.
var logLevelColor = map[LogLevel]string{
	LogLevelPanic:   "\x1b[31m",
	LogLevelFatal:   "\x1b[31m",
	LogLevelError:   "\x1b[31m",
	LogLevelWarning: "\x1b[33m",
	LogLevelInfo:    "\x1b[32m",
	LogLevelDebug:   "\x1b[36m",
	LogLevelTrace:   "\x1b[90m",
}

const ansiReset = "\x1b[0m"

// MinLogger is the minimal sink a Logger writes finished, prefixed lines
// to. *log.Logger satisfies it.
type MinLogger interface {
	Print(args ...interface{})
}

// Logger is the leveled logger every zone, service proxy, stub, object
// proxy and pass-through is handed at construction. Implementations fork
// child loggers with Fork so a single root logger produces a breadcrumbed
// prefix chain ("zone:3 > proxy:7 > stub:12") without any component
// needing to know its ancestry.
type Logger interface {
	// Fork returns a child Logger whose prefix is this logger's prefix
	// plus suffix, inheriting the current level unless overridden later.
	Fork(suffix string) Logger

	// SetLogLevel changes the minimum level this logger (and logger's
	// forked after the call) will emit.
	SetLogLevel(level LogLevel)
	LogLevel() LogLevel

	Log(level LogLevel, args ...interface{})
	Logf(level LogLevel, f string, args ...interface{})

	Panic(args ...interface{})
	Panicf(f string, args ...interface{})
	PanicOnError(err error)

	Fatal(args ...interface{})
	Fatalf(f string, args ...interface{})

	Errorf(f string, args ...interface{}) error

	ELogf(f string, args ...interface{})
	WLogf(f string, args ...interface{})
	ILogf(f string, args ...interface{})
	DLogf(f string, args ...interface{})
	TLogf(f string, args ...interface{})
}

// BasicLogger is the only Logger implementation this module ships: a
// prefix plus a sink, writing ANSI-colored lines when the sink is a
// terminal and plain lines otherwise.
type BasicLogger struct {
	mu       sync.Mutex
	prefix   string
	sink     MinLogger
	level    LogLevel
	colorize bool
}

// NewLogger builds a root Logger writing to os.Stderr, colorized only if
// os.Stderr is a terminal.
func NewLogger(prefix string, level LogLevel) *BasicLogger {
	isTerm := termutil.Isatty(os.Stderr.Fd())
	return NewLoggerWithSink(prefix, level, &writerSink{w: ansi.NewWriter(os.Stderr)}, isTerm)
}

// NewLoggerWithSink builds a root Logger writing to an arbitrary sink.
// Callers pass colorize=false for non-terminal or non-ANSI sinks.
func NewLoggerWithSink(prefix string, level LogLevel, sink MinLogger, colorize bool) *BasicLogger {
	return &BasicLogger{
		prefix:   prefix,
		sink:     sink,
		level:    level,
		colorize: colorize,
	}
}

// writerSink adapts an io.Writer (typically an ansi.Writer, which strips
// SGR sequences on platforms/streams that can't render them) to MinLogger.
type writerSink struct {
	w io.Writer
}

func (s *writerSink) Print(args ...interface{}) {
	fmt.Fprintln(s.w, args...)
}

func (l *BasicLogger) Fork(suffix string) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := suffix
	if l.prefix != "" {
		prefix = l.prefix + " > " + suffix
	}
	return &BasicLogger{
		prefix:   prefix,
		sink:     l.sink,
		level:    l.level,
		colorize: l.colorize,
	}
}

func (l *BasicLogger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *BasicLogger) LogLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *BasicLogger) enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level <= l.level || level <= LogLevelFatal
}

func (l *BasicLogger) render(level LogLevel, msg string) string {
	line := fmt.Sprintf("[%s] %s: %s", level, l.prefix, msg)
	if !l.colorize {
		return line
	}
	if color, ok := logLevelColor[level]; ok {
		return color + line + ansiReset
	}
	return line
}

func (l *BasicLogger) Log(level LogLevel, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.emit(level, fmt.Sprint(args...))
}

func (l *BasicLogger) Logf(level LogLevel, f string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.emit(level, fmt.Sprintf(f, args...))
}

// emit writes the rendered line and then, for Panic/Fatal, unwinds the
// process exactly as the level demands.
func (l *BasicLogger) emit(level LogLevel, msg string) {
	l.sink.Print(l.render(level, msg))
	switch level {
	case LogLevelFatal:
		os.Exit(1)
	case LogLevelPanic:
		panic(msg)
	}
}

func (l *BasicLogger) Panic(args ...interface{})            { l.Log(LogLevelPanic, args...) }
func (l *BasicLogger) Panicf(f string, args ...interface{}) { l.Logf(LogLevelPanic, f, args...) }

func (l *BasicLogger) PanicOnError(err error) {
	if err != nil {
		l.Panic(err)
	}
}

func (l *BasicLogger) Fatal(args ...interface{})            { l.Log(LogLevelFatal, args...) }
func (l *BasicLogger) Fatalf(f string, args ...interface{}) { l.Logf(LogLevelFatal, f, args...) }

// Errorf logs at LogLevelError (subject to the level gate) and always
// returns a plain error carrying the formatted message, regardless of
// whether the level was enabled -- callers use the return value as their
// function's error result.
func (l *BasicLogger) Errorf(f string, args ...interface{}) error {
	msg := fmt.Sprintf(f, args...)
	if l.enabled(LogLevelError) {
		l.emit(LogLevelError, msg)
	}
	return fmt.Errorf("%s", msg)
}

func (l *BasicLogger) ELogf(f string, args ...interface{}) { l.Logf(LogLevelError, f, args...) }
func (l *BasicLogger) WLogf(f string, args ...interface{}) { l.Logf(LogLevelWarning, f, args...) }
func (l *BasicLogger) ILogf(f string, args ...interface{}) { l.Logf(LogLevelInfo, f, args...) }
func (l *BasicLogger) DLogf(f string, args ...interface{}) { l.Logf(LogLevelDebug, f, args...) }
func (l *BasicLogger) TLogf(f string, args ...interface{}) { l.Logf(LogLevelTrace, f, args...) }
