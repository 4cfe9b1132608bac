package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"production":  zapcore.InfoLevel,
		"staging":     zapcore.InfoLevel,
		"development": zapcore.DebugLevel,
		"":            zapcore.DebugLevel,
	}
	for env, want := range cases {
		if got := parseLevel(env); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", env, got, want)
		}
	}
}

func TestConfigEncoding(t *testing.T) {
	if enc := config("production").Encoding; enc != "json" {
		t.Fatalf("expected json encoding in production, got %s", enc)
	}
	if enc := config("development").Encoding; enc != "console" {
		t.Fatalf("expected console encoding in development, got %s", enc)
	}
	if New("development") == nil {
		t.Fatalf("expected logger")
	}
}
