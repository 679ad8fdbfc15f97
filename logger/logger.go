package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// ANSI prefixes for console output; the file sink stays plain.
var levelTags = map[Level]struct{ color, plain string }{
	DEBUG: {"\033[90m[DEBUG]\033[0m ", "[DEBUG] "},
	INFO:  {"[INFO]  ", "[INFO]  "},
	WARN:  {"\033[33m[WARN]\033[0m  ", "[WARN]  "},
	ERROR: {"\033[31m[ERROR]\033[0m ", "[ERROR] "},
}

type sink struct {
	console  map[Level]*log.Logger
	file     map[Level]*log.Logger
	logFile  *os.File
	minLevel Level
}

var (
	mu  sync.Mutex
	def *sink
)

func newSink(console bool, file *os.File) *sink {
	s := &sink{minLevel: DEBUG, logFile: file}
	flags := log.Ldate | log.Ltime
	if console {
		s.console = make(map[Level]*log.Logger)
		for lvl, tag := range levelTags {
			s.console[lvl] = log.New(os.Stdout, tag.color, flags)
		}
	}
	if file != nil {
		s.file = make(map[Level]*log.Logger)
		for lvl, tag := range levelTags {
			s.file[lvl] = log.New(file, tag.plain, flags)
		}
	}
	return s
}

func active() *sink {
	if def == nil {
		def = newSink(true, nil)
	}
	return def
}

// Init routes log output to the given file (append-only) and, when
// console is true, to stdout as well. An empty filename keeps console
// output only.
func Init(filename string, console bool) error {
	mu.Lock()
	defer mu.Unlock()

	var file *os.File
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
	}
	if file == nil && !console {
		return fmt.Errorf("no output destination specified")
	}

	if def != nil && def.logFile != nil {
		def.logFile.Close()
	}
	def = newSink(console, file)
	return nil
}

// SetLevel drops messages below the given level.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	active().minLevel = level
}

// Close releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if def != nil && def.logFile != nil {
		def.logFile.Close()
		def.logFile = nil
		def.file = nil
	}
}

func emit(level Level, msg string) {
	mu.Lock()
	defer mu.Unlock()
	s := active()
	if level < s.minLevel {
		return
	}
	if l, ok := s.console[level]; ok {
		l.Output(3, msg)
	}
	if l, ok := s.file[level]; ok {
		l.Output(3, msg)
	}
}

func Debug(v ...interface{}) { emit(DEBUG, fmt.Sprint(v...)) }
func Info(v ...interface{})  { emit(INFO, fmt.Sprint(v...)) }
func Warn(v ...interface{})  { emit(WARN, fmt.Sprint(v...)) }
func Error(v ...interface{}) { emit(ERROR, fmt.Sprint(v...)) }

func Debugf(format string, v ...interface{}) { emit(DEBUG, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { emit(INFO, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { emit(WARN, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { emit(ERROR, fmt.Sprintf(format, v...)) }

// Fatal logs at ERROR and exits the process.
func Fatal(v ...interface{}) {
	emit(ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

func Fatalf(format string, v ...interface{}) {
	emit(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}
