package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithActorID(ctx, "user-7")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"actor_id\":\"user-7\"")) {
		t.Fatalf("expected actor_id to be preserved; entry=%s", buf.String())
	}
}

func TestLoggerImportRunFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithImportRun(context.Background(), "direct", "42")
	log.Info(ctx, "import.started")

	if !bytes.Contains(buf.Bytes(), []byte("\"import_kind\":\"direct\"")) {
		t.Fatalf("expected import_kind field; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"import_id\":\"42\"")) {
		t.Fatalf("expected import_id field; entry=%s", buf.String())
	}
}

func TestLoggerPartsAndConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Info(log.WithParts(context.Background(), []string{"CAB-1", "CAB-2"}), "stock reserved")
	if !bytes.Contains(buf.Bytes(), []byte("\"part_count\":2")) {
		t.Fatalf("expected part_count field; entry=%s", buf.String())
	}

	buf.Reset()
	console := New(Options{ServiceName: "test", Format: FormatConsole, Output: buf})
	console.Info(context.Background(), "hello")
	if bytes.HasPrefix(bytes.TrimSpace(buf.Bytes()), []byte("{")) {
		t.Fatalf("expected console output, got json: %s", buf.String())
	}
}

func TestLoggerDebugSuppressedAtInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Debug(context.Background(), "noisy")
	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be dropped at info level; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}
