package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactsCredentialKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "auth").Info("login", "user", "u1", "jwt_secret", "s3cr3t", "Authorization", "Bearer x")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["jwt_secret"] != "[REDACTED]" || fields["Authorization"] != "[REDACTED]" {
		t.Fatalf("expected redaction, got %v", fields)
	}
	if fields["user"] != "u1" || fields["component"] != "auth" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestOrNop(t *testing.T) {
	OrNop(nil).Warn("dropped", "k", 1)
}
