package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the notes service.
// - Debug/Info/Warn/Error/Fatal variants and Init(level)
// - With(key, value, ...) attaches key=value fields to a line

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
}

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values select info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(l)
}

// ParseLevel maps a level name to a Level, defaulting to LevelInfo.
func ParseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", 0)
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return levelNames[level]
}

func enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func output(l Level, fields string, format string, v ...interface{}) {
	if l != LevelFatal && !enabled(l) {
		return
	}
	line := fmt.Sprintf("%s [%s] %s", time.Now().Format(time.RFC3339), strings.ToUpper(levelNames[l]), fmt.Sprintf(format, v...))
	if fields != "" {
		line += " " + fields
	}
	mu.RLock()
	lg := logger
	mu.RUnlock()
	lg.Print(line)
}

func Debugf(format string, v ...interface{}) { output(LevelDebug, "", format, v...) }
func Infof(format string, v ...interface{})  { output(LevelInfo, "", format, v...) }
func Warnf(format string, v ...interface{})  { output(LevelWarn, "", format, v...) }
func Errorf(format string, v ...interface{}) { output(LevelError, "", format, v...) }

func Fatalf(format string, v ...interface{}) {
	output(LevelFatal, "", format, v...)
	os.Exit(1)
}

func Info(v string) { Infof("%s", v) }
func Warn(v string) { Warnf("%s", v) }

// Entry is a set of fields rendered after the message.
type Entry struct {
	fields string
}

// With returns an Entry carrying the given key/value pairs. A trailing key
// without a value is rendered with an empty value.
func With(kv ...interface{}) *Entry {
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		var val interface{} = ""
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		s := fmt.Sprint(val)
		if strings.ContainsAny(s, " \t\"=") {
			s = fmt.Sprintf("%q", s)
		}
		fmt.Fprintf(&b, "%v=%s", kv[i], s)
	}
	return &Entry{fields: b.String()}
}

func (e *Entry) Debugf(format string, v ...interface{}) { output(LevelDebug, e.fields, format, v...) }
func (e *Entry) Infof(format string, v ...interface{})  { output(LevelInfo, e.fields, format, v...) }
func (e *Entry) Warnf(format string, v ...interface{})  { output(LevelWarn, e.fields, format, v...) }
func (e *Entry) Errorf(format string, v ...interface{}) { output(LevelError, e.fields, format, v...) }
