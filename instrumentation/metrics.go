package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments for the OAuth front door.
type Metrics struct {
	// Token verification
	TokenVerificationsTotal   metric.Int64Counter
	TokenVerificationDuration metric.Float64Histogram

	// Dynamic client registration
	ClientRegistrationsTotal   metric.Int64Counter
	ClientRegistrationDuration metric.Float64Histogram
}

// newMetrics creates and registers all metric instruments.
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	verifierMeter := inst.Meter("verifier")
	httpMeter := inst.Meter("http")

	var err error
	m.TokenVerificationsTotal, err = verifierMeter.Int64Counter(
		"oauth.token.verifications.total",
		metric.WithDescription("Total number of bearer token verifications"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.verifications.total counter: %w", err)
	}

	m.TokenVerificationDuration, err = verifierMeter.Float64Histogram(
		"oauth.token.verification.duration",
		metric.WithDescription("Bearer token verification duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.verification.duration histogram: %w", err)
	}

	m.ClientRegistrationsTotal, err = httpMeter.Int64Counter(
		"oauth.client.registrations.total",
		metric.WithDescription("Total number of dynamic client registrations"),
		metric.WithUnit("{registration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client.registrations.total counter: %w", err)
	}

	m.ClientRegistrationDuration, err = httpMeter.Float64Histogram(
		"oauth.client.registration.duration",
		metric.WithDescription("Dynamic client registration duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client.registration.duration histogram: %w", err)
	}

	return m, nil
}

// RecordTokenVerification records one token verification outcome.
func (m *Metrics) RecordTokenVerification(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool(AttrSuccess, success))
	m.TokenVerificationsTotal.Add(ctx, 1, attrs)
	m.TokenVerificationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordClientRegistration records one dynamic client registration outcome.
func (m *Metrics) RecordClientRegistration(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool(AttrSuccess, success))
	m.ClientRegistrationsTotal.Add(ctx, 1, attrs)
	m.ClientRegistrationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}
