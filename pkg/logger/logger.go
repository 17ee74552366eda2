package logger

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Minimal leveled logger shared by the API server, the CLI and the cleanup worker.
// - Debug/Info/Warn/Error/Fatal variants and Init(level)
// - optional key=value fields via With

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Fields are appended to a log line as sorted key=value pairs.
type Fields map[string]interface{}

// Entry is a logger bound to a set of fields.
type Entry struct {
	fields Fields
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = parseLevel(l)
}

func parseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func header(lvl string) string {
	return fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(lvl))
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func (f Fields) String() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, f[k])
	}
	return b.String()
}

// With returns an Entry carrying the given fields.
func With(f Fields) *Entry {
	return &Entry{fields: f}
}

// With merges additional fields into a copy of the entry.
func (e *Entry) With(f Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(f))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range f {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

func (e *Entry) logf(l Level, name, format string, v ...interface{}) {
	if !shouldLog(l) {
		return
	}
	suffix := ""
	if e != nil {
		suffix = e.fields.String()
	}
	logger.Print(header(name) + fmt.Sprintf(format, v...) + suffix)
}

func (e *Entry) Debugf(format string, v ...interface{}) { e.logf(LevelDebug, "debug", format, v...) }
func (e *Entry) Infof(format string, v ...interface{})  { e.logf(LevelInfo, "info", format, v...) }
func (e *Entry) Warnf(format string, v ...interface{})  { e.logf(LevelWarn, "warn", format, v...) }
func (e *Entry) Errorf(format string, v ...interface{}) { e.logf(LevelError, "error", format, v...) }

func Debugf(format string, v ...interface{}) { (*Entry)(nil).logf(LevelDebug, "debug", format, v...) }
func Infof(format string, v ...interface{})  { (*Entry)(nil).logf(LevelInfo, "info", format, v...) }
func Warnf(format string, v ...interface{})  { (*Entry)(nil).logf(LevelWarn, "warn", format, v...) }
func Errorf(format string, v ...interface{}) { (*Entry)(nil).logf(LevelError, "error", format, v...) }

func Fatalf(format string, v ...interface{}) {
	logger.Printf(header("fatal")+format, v...)
	os.Exit(1)
}

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) {
	if !shouldLog(LevelInfo) {
		return
	}
	logger.Print(header("info") + fmt.Sprintln(v...))
}

func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
