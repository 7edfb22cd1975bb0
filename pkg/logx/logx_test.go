package logx

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFieldsRender(t *testing.T) {
	_ = NewConsole("error") // installs the package-wide zerolog field names

	var buf bytes.Buffer
	l := Logger{base: zerolog.New(&buf), hasBase: true}

	l.Info("hello",
		String("s", "v"),
		Int("i", 7),
		Int64("i64", 9),
		Bool("ok", true),
		Err(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{`"s":"v"`, `"i":7`, `"i64":9`, `"ok":true`, `"err":"boom"`, `"message":"hello"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestWithFieldsStick(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{base: zerolog.New(&buf), hasBase: true}.With(String("comp", "test"))

	l.Warn("first")
	if !strings.Contains(buf.String(), `"comp":"test"`) {
		t.Errorf("derived field not applied: %s", buf.String())
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	l.Debug("a")
	l.Info("b", Bool("ok", false))
	l.Error("c", Err(nil))
	l.With(String("k", "v")).Warn("d")
}

func TestNewConsoleRespectsLevel(t *testing.T) {
	// Below-threshold events must not panic and must be cheap no-ops.
	l := NewConsole("error").With(String("comp", "boot"))
	l.Debug("suppressed", Bool("verbose", true))
	l.Info("suppressed too")
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{" info ", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
