package logx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	utcPlusOne = time.FixedZone("UTC+1", 1*60*60)
	t0         = time.Date(2020, 1, 2, 3, 4, 5, 123456000, utcPlusOne)
)

func TestSlogLevelToString(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "DEBUG"},
		{slog.LevelInfo, "INFO"},
		{LevelNotice, "NOTICE"},
		{slog.LevelWarn, "WARNING"},
		{slog.LevelError, "ERROR"},
		{LevelCritical, "CRITICAL"},
		{LevelAlert, "ALERT"},
		{LevelEmergency, "EMERGENCY"},
		{slog.Level(1234), slog.Level(1234).String()},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, slogLevelToString(tc.level))
	}
}

func TestMapLogLevelNames(t *testing.T) {
	a := slog.Any(slog.LevelKey, slog.LevelWarn)
	mapped := mapLogLevelNames(nil, a)
	val, ok := mapped.Value.Any().(string)
	require.True(t, ok)
	assert.Equal(t, "warning", val)

	other := slog.String("foo", "bar")
	out := mapLogLevelNames(nil, other)
	assert.Equal(t, out.Value, other.Value)
}

func TestGetCaller(t *testing.T) {
	out := getCaller(0)
	assert.NotEqual(t, "", out)
	match := regexp.MustCompile(`^([^:]+):(\d+)$`).FindStringSubmatch(out)
	assert.NotNil(t, match)
}

func TestFormatStdLogHeader(t *testing.T) {
	cases := []struct {
		name       string
		format     logFormat
		lineInfo   string
		object     string
		wantPrefix string
	}{
		{"dateTime", logFormatDate | logFormatTime, "", "", "2020/01/02 03:04:05 "},
		{"time", logFormatTime, "", "", "03:04:05 "},
		{"date", logFormatDate, "", "", "2020/01/02 "},
		{"dateTimeUTC", logFormatDate | logFormatTime | logFormatUTC, "", "", "2020/01/02 02:04:05 "},
		{"dateTimeMicro", logFormatDate | logFormatTime | logFormatMicroseconds, "", "", "2020/01/02 03:04:05.123456 "},
		{"micro", logFormatMicroseconds, "", "", "03:04:05.123456 "},
		{"shortFile", logFormatShortFile, "foo.go:10", "", "foo.go:10: "},
		{"longFile", logFormatLongFile, "foo.go:10", "", "foo.go:10: "},
		{"pid", logFormatPid, "", "", fmt.Sprintf("[%d] ", os.Getpid())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &OutputHandler{format: tc.format}
			buf := &bytes.Buffer{}
			h.formatStdLogHeader(buf, slog.LevelInfo, t0, tc.object, tc.lineInfo)
			assert.True(t, strings.HasPrefix(buf.String(), tc.wantPrefix), "got %q", buf.String())
		})
	}
}

func TestFormatStdLogHeaderLevelObject(t *testing.T) {
	h := &OutputHandler{format: 0}
	buf := &bytes.Buffer{}
	h.formatStdLogHeader(buf, slog.LevelInfo, t0, "myobj", "")
	assert.Equal(t, "INFO  : myobj: ", buf.String())
}

func TestEnabled(t *testing.T) {
	h := NewOutputHandler(&bytes.Buffer{}, nil, 0)
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	h2 := NewOutputHandler(&bytes.Buffer{}, opts, 0)
	assert.True(t, h2.Enabled(context.Background(), slog.LevelDebug))
}

func TestClearSetFormatFlags(t *testing.T) {
	h := &OutputHandler{format: logFormatDate | logFormatTime}
	h.clearFormatFlags(logFormatTime)
	assert.True(t, h.format&logFormatTime == 0)
	h.setFormatFlags(logFormatMicroseconds)
	assert.True(t, h.format&logFormatMicroseconds != 0)
}

func TestSetResetOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewOutputHandler(buf, nil, 0)
	var gotOverride string
	out := func(_ slog.Level, txt string) { gotOverride = txt }

	h.SetOutput(out)
	r := slog.NewRecord(t0, slog.LevelInfo, "hello", 0)
	require.NoError(t, h.Handle(context.Background(), r))
	assert.NotEqual(t, "", gotOverride)
	require.Equal(t, "", buf.String())

	h.ResetOutput()
	require.NoError(t, h.Handle(context.Background(), r))
	require.NotEqual(t, "", buf.String())
}

func TestAddOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewOutputHandler(buf, nil, logFormatDate|logFormatTime)
	var extraText string
	h.AddOutput(false, func(_ slog.Level, txt string) { extraText = txt })

	r := slog.NewRecord(t0, slog.LevelInfo, "world", 0)
	require.NoError(t, h.Handle(context.Background(), r))
	assert.Equal(t, "2020/01/02 03:04:05 INFO  : world\n", buf.String())
	assert.Equal(t, "2020/01/02 03:04:05 INFO  : world\n", extraText)
}

func TestAddOutputJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewOutputHandler(buf, nil, logFormatDate|logFormatTime)
	var extraText string
	h.AddOutput(true, func(_ slog.Level, txt string) { extraText = txt })

	r := slog.NewRecord(t0, slog.LevelInfo, "world", 0)
	require.NoError(t, h.Handle(context.Background(), r))
	assert.NotEqual(t, "", extraText)
	assert.Equal(t, "2020/01/02 03:04:05 INFO  : world\n", buf.String())
	assert.True(t, strings.HasPrefix(extraText, `{"time":"2020-01-02T03:04:05.123456+01:00","level":"info","msg":"world","source":"`))
	assert.True(t, strings.HasSuffix(extraText, "\"}\n"))
}

func TestWithAttrsAndGroup(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewOutputHandler(buf, nil, logFormatDate)
	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")})
	if _, ok := h2.(*OutputHandler); !ok {
		t.Error("WithAttrs returned wrong type")
	}
	h3 := h.WithGroup("grp")
	if _, ok := h3.(*OutputHandler); !ok {
		t.Error("WithGroup returned wrong type")
	}
}

func TestTextLogAndJSONLog(t *testing.T) {
	h := NewOutputHandler(&bytes.Buffer{}, nil, logFormatDate|logFormatTime)
	r := slog.NewRecord(t0, slog.LevelWarn, "msg!", 0)
	r.AddAttrs(slog.String("object", "obj"))

	bufText := &bytes.Buffer{}
	require.NoError(t, h.textLog(context.Background(), bufText, r))
	out := bufText.String()
	assert.True(t, strings.Contains(out, "WARNING"))
	assert.True(t, strings.Contains(out, "obj:"))
	assert.True(t, strings.HasSuffix(out, "\n"))

	bufJSON := &bytes.Buffer{}
	require.NoError(t, h.jsonLog(context.Background(), bufJSON, r))
	j := bufJSON.String()
	assert.True(t, strings.Contains(j, `"level":"warning"`))
	assert.True(t, strings.Contains(j, `"msg":"msg!"`))
}

func TestHandleFormatFlags(t *testing.T) {
	r := slog.NewRecord(t0, slog.LevelInfo, "hi", 0)
	cases := []struct {
		name     string
		format   logFormat
		wantJSON bool
	}{
		{"textMode", 0, false},
		{"jsonMode", logFormatJSON, true},
	}
	for _, tc := range cases {
		buf := &bytes.Buffer{}
		h := NewOutputHandler(buf, nil, tc.format)
		require.NoError(t, h.Handle(context.Background(), r))
		out := buf.String()
		if tc.wantJSON {
			assert.True(t, strings.HasPrefix(out, "{"))
			assert.True(t, strings.Contains(out, `"level":"info"`))
		} else {
			assert.True(t, strings.Contains(out, "INFO"))
		}
	}
}

func TestErrorCount(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewFileLogger(buf, false)
	logger.Error("boom")
	logger.Error("boom again")
	logger.Info("fine")
	assert.Equal(t, int64(2), logger.ErrorCount())
}

func TestSectionAppearsInOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewFileLogger(buf, false).Section("backups")
	logger.Notice("starting")
	assert.True(t, strings.Contains(buf.String(), "backups:"))
}
