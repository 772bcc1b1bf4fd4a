package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Logger struct {
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
}

func NewLogger() *Logger {
	return New(os.Stdout, os.Stderr)
}

func New(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmsgprefix
	return &Logger{
		infoLog:  log.New(out, "INFO: ", flags),
		warnLog:  log.New(errOut, "WARN: ", flags),
		errorLog: log.New(errOut, "ERROR: ", flags),
	}
}

// Nop discards everything; used by tests and tools.
func Nop() *Logger {
	return New(io.Discard, io.Discard)
}

func (l *Logger) Info(msg string, kv ...any) { l.infoLog.Println(format(msg, kv)) }
func (l *Logger) Warn(msg string, kv ...any) { l.warnLog.Println(format(msg, kv)) }
func (l *Logger) Error(msg string, kv ...any) { l.errorLog.Println(format(msg, kv)) }

// Printf lets the logger stand in where a printf-style logger is expected
// (kafka-go reader/writer).
func (l *Logger) Printf(f string, args ...any) { l.infoLog.Printf(f, args...) }

// Errorf is the error-level counterpart of Printf.
func (l *Logger) Errorf(f string, args ...any) { l.errorLog.Printf(f, args...) }

func format(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(kv) {
			fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, "%v", kv[i])
		}
	}
	return b.String()
}
