package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwrk-planet/pairchat/pkg/logger"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func captureStdOut(fn func()) string {
	orig := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() {
		os.Stdout = orig
	}()

	fn()

	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()
	return buf.String()
}

func zapConfig(out io.Writer) logger.Config {
	return logger.Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		Output:           out,
		SampleInitial:    100000,
		SampleThereafter: 100000,
	}
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	if got := logger.DetectEnv(); got != logger.EnvDev {
		t.Fatalf("default should be dev, got %q", got)
	}

	t.Setenv("APP_ENV", "staging")
	if got := logger.DetectEnv(); got != logger.EnvStage {
		t.Fatalf("expected stage, got %q", got)
	}

	t.Setenv("APP_ENV", " Production ")
	if got := logger.DetectEnv(); got != logger.EnvProd {
		t.Fatalf("expected prod, got %q", got)
	}
}

func TestInit_DevStd_TextOutPut(t *testing.T) {
	out := captureStdOut(func() {
		logger.Init(logger.Config{
			Service:   "demo",
			Version:   "v0.0.1",
			Env:       logger.EnvDev,
			Backend:   logger.BackendStd,
			Level:     slog.LevelDebug,
			AddSource: true,
		})
		slog.Info("Hello world")
	})

	if strings.Contains(out, "{") && strings.Contains(out, "}") {
		t.Fatalf("expected text output in dev/std, got JSON: %s", out)
	}
	if !strings.Contains(out, "Hello world") {
		t.Fatalf("message missing: %s", out)
	}
	if !strings.Contains(out, "service=demo") || !strings.Contains(out, "env=dev") {
		t.Fatalf("common attrs missing: %s", out)
	}
}

func TestInit_StdDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{Env: logger.EnvDev, Output: &buf})
	slog.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered by default: %s", buf.String())
	}

	logger.Init(logger.Config{Env: logger.EnvDev, Debug: true, Output: &buf})
	slog.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("debug flag must enable debug level: %s", buf.String())
	}
}

func TestInit_ProdZap_JSONOutPut(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(zapConfig(&buf))
	slog.Info("booted", slog.String("k", "v"))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON line, got %s, err=%v", buf.String(), err)
	}
	if m["msg"] != "booted" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
	if m["service"] != "demo" || m["env"] != "prod" || m["version"] != "1.2.3" {
		t.Fatalf("attrs missing: service=%v env=%v version=%v", m["service"], m["env"], m["version"])
	}
	if m["level"] != "INFO" {
		t.Fatalf("level mismatch: %v", m["level"])
	}
	if m["k"] != "v" {
		t.Fatalf("custom field missing: %v", m["k"])
	}
}

func TestInit_TraceIDsFromContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()
	otel.SetTracerProvider(tp)

	var buf bytes.Buffer
	logger.Init(zapConfig(&buf))

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	slog.InfoContext(ctx, "with trace")
	span.End()

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON, got: %s, err=%v", buf.String(), err)
	}
	if m["trace_id"] != span.SpanContext().TraceID().String() || m["span_id"] == nil {
		t.Fatalf("trace_id/span_id missing in log: %v", m)
	}

	if attrs := logger.AttrsFromCtx(context.Background()); attrs != nil {
		t.Fatalf("no span, no attrs: %v", attrs)
	}
}

func TestOpenOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairchat.log")
	w, err := logger.OpenOutput(path)
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}
	logger.Init(logger.Config{Env: logger.EnvDev, Output: w})
	slog.Info("to file")
	_ = w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("file log missing message: %s", data)
	}

	if w, err := logger.OpenOutput(""); err != nil || w.Close() != nil {
		t.Fatalf("empty path must map to stdout, err=%v", err)
	}
}
