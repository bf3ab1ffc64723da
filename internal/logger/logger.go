package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var (
	defaultLogger = log.New(os.Stderr, "", log.LstdFlags)
	currentLevel  atomic.Int32
)

func init() {
	currentLevel.Store(int32(INFO))
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a level name (case-insensitive) to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "fatal":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

func SetFlags(flag int) {
	defaultLogger.SetFlags(flag)
}

// SetLevel drops messages below level. Fatal messages are always written.
func SetLevel(level LogLevel) {
	currentLevel.Store(int32(level))
}

func Level() LogLevel {
	return LogLevel(currentLevel.Load())
}

func enabled(level LogLevel) bool {
	return level >= Level()
}

func formatMessage(level LogLevel, format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	return fmt.Sprintf("[%s] [NIXSTRAP] %s", level, msg)
}

func Debug(format string, args ...interface{}) {
	if enabled(DEBUG) {
		defaultLogger.Println(formatMessage(DEBUG, format, args...))
	}
}

func Info(format string, args ...interface{}) {
	if enabled(INFO) {
		defaultLogger.Println(formatMessage(INFO, format, args...))
	}
}

func Warn(format string, args ...interface{}) {
	if enabled(WARN) {
		defaultLogger.Println(formatMessage(WARN, format, args...))
	}
}

func Error(format string, args ...interface{}) {
	if enabled(ERROR) {
		defaultLogger.Println(formatMessage(ERROR, format, args...))
	}
}

func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatal(formatMessage(FATAL, format, args...))
}

func Printf(format string, args ...interface{}) {
	defaultLogger.Printf(format, args...)
}

func Println(args ...interface{}) {
	defaultLogger.Println(args...)
}
