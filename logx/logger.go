package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the thin application-facing wrapper around a *slog.Logger
// backed by an OutputHandler. It exists so call sites can write
// log.Notice("...") / log.Error("...") the way the original program calls
// debug()/error()/die() (SPEC_FULL.md §7's three tiers), without every
// caller constructing slog.Attr/level values by hand.
type Logger struct {
	slog    *slog.Logger
	handler *OutputHandler
}

// NewFileLogger builds a logger writing one
// "YYYY/MM/DD HH:MM:SS LEVEL : section: message" line per record to w (not
// the bracketed "[YYYY-MM-DD HH:MM:SS] [section]" form). When debug is true, every
// record is additionally mirrored to stderr, matching the original
// program's debug()-function behaviour of mirroring to stderr only when a
// runtime debug flag is set (SPEC_FULL.md "Supplemented features").
func NewFileLogger(w io.Writer, debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := NewOutputHandler(w, &slog.HandlerOptions{Level: level}, logFormatDate|logFormatTime)
	if debug {
		h.AddOutput(false, func(_ slog.Level, text string) {
			os.Stderr.WriteString(text)
		})
	}
	return &Logger{slog: slog.New(h), handler: h}
}

// Section returns a derived Logger that renders name as the "section: "
// component of every subsequent log line.
func (l *Logger) Section(name string) *Logger {
	h2 := l.handler.WithSection(name)
	return &Logger{slog: slog.New(h2), handler: h2}
}

// ErrorCount is the running count of records logged at Error or above,
// the Go equivalent of the original's global error_count.
func (l *Logger) ErrorCount() int64 { return l.handler.ErrorCount() }

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	l.slog.Log(context.Background(), level, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any)     { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)       { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Notice(msg string, args ...any)     { l.log(LevelNotice, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)       { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any)      { l.log(slog.LevelError, msg, args...) }
func (l *Logger) Critical(msg string, args ...any)   { l.log(LevelCritical, msg, args...) }
func (l *Logger) Alert(msg string, args ...any)      { l.log(LevelAlert, msg, args...) }
func (l *Logger) Emergency(msg string, args ...any)  { l.log(LevelEmergency, msg, args...) }
