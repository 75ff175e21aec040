package instrumentation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNew_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.config.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", inst.config.ServiceName, DefaultServiceName)
	}
	if inst.config.ServiceVersion != DefaultServiceVersion {
		t.Errorf("ServiceVersion = %q, want %q", inst.config.ServiceVersion, DefaultServiceVersion)
	}
	if inst.Metrics() == nil {
		t.Fatal("Metrics() returned nil")
	}
	if inst.MeterProvider() == nil || inst.TracerProvider() == nil {
		t.Fatal("providers not initialized")
	}
}

func TestMetrics_RecordWithNoopProviders(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	inst.Metrics().RecordTokenVerification(ctx, true, 5*time.Millisecond)
	inst.Metrics().RecordTokenVerification(ctx, false, 5*time.Millisecond)
	inst.Metrics().RecordClientRegistration(ctx, true, 10*time.Millisecond)
}

func TestTracerNaming(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if inst.Tracer("http") == nil {
		t.Fatal("Tracer() returned nil")
	}
	if inst.Meter("verifier") == nil {
		t.Fatal("Meter() returned nil")
	}
}

func TestSpanHelpers_NilSafe(t *testing.T) {
	// All helpers must tolerate nil spans.
	SetSpanSuccess(nil)
	SetSpanError(nil, errors.New("boom"))
	SetSpanAttributes(nil, attribute.String(AttrClientID, "client-1"))

	tracer := noop.NewTracerProvider().Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	defer span.End()

	SetSpanAttributes(span, attribute.String(AttrClientID, "client-1"))
	SetSpanError(span, nil)
	SetSpanSuccess(span)
}

func TestShutdown_Idempotent(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	calls := 0
	inst.shutdownFuncs = append(inst.shutdownFuncs, func(context.Context) error {
		calls++
		return nil
	})

	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("shutdown funcs ran %d times, want 1", calls)
	}
}
