// Package logx provides the logging substrate used by every binary in this
// module: a log/slog handler extended with the severity levels this
// program's three-tier error model (SPEC_FULL.md §7) needs beyond slog's
// stock Debug/Info/Warn/Error four, plus a log-file text format of
// "YYYY/MM/DD HH:MM:SS LEVEL : section: message". The bracketed
// "[YYYY-MM-DD HH:MM:SS] [section] message" form is not produced.
//
// The extended levels and the handler's behaviour (slogLevelToString,
// mapLogLevelNames, the format-flag bitmask, AddOutput/SetOutput) are
// grounded on github.com/rclone/rclone's fs/log package: the production
// source of that package was not retrieved into the reference pack, but
// its test file (fs/log/slog_test.go) specifies the behaviour completely
// and is followed here field-for-field.
package logx

import "log/slog"

// Extended severity levels, slotted between and above the stdlib set the
// same way syslog(3)'s levels sit around slog's four.
const (
	LevelNotice    = slog.Level(2)  // between Info (0) and Warn (4)
	LevelCritical  = slog.Level(10) // above Error (8)
	LevelAlert     = slog.Level(12)
	LevelEmergency = slog.Level(14)
)

// slogLevelToString renders a level the way the log file and stderr
// debug mirror want it: an uppercase name for the levels this program
// knows about, else slog's own default String() rendering.
func slogLevelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case slog.LevelWarn:
		return "WARNING"
	case slog.LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	case LevelAlert:
		return "ALERT"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return level.String()
	}
}

// mapLogLevelNames is a slog.HandlerOptions.ReplaceAttr-shaped function
// that lowercases the level name for structured (JSON) output, leaving
// every other attribute untouched.
func mapLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := levelOf(a.Value.Any())
	if !ok {
		return a
	}
	a.Value = slog.StringValue(lowerLevelName(slogLevelToString(level)))
	return a
}

// levelOf recovers a slog.Level from whatever concrete representation
// slog.AnyValue chose to store it as (slog.Level directly, or one of the
// integer kinds its Value type collapses small integers into).
func levelOf(v any) (slog.Level, bool) {
	switch v := v.(type) {
	case slog.Level:
		return v, true
	case int64:
		return slog.Level(v), true
	case int:
		return slog.Level(v), true
	default:
		return 0, false
	}
}

func lowerLevelName(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
