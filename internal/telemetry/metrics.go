package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all custom metrics for the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal metric.Int64Counter
	HTTPDurationMs    metric.Float64Histogram

	// Business metrics
	TenantTotal           metric.Int64Counter
	PatientTotal          metric.Int64Counter
	UserTotal             metric.Int64Counter
	AdministrationsTotal  metric.Int64Counter
	BarcodeMismatchTotal  metric.Int64Counter
	AlertsCreatedTotal    metric.Int64Counter
	SimulationResetsTotal metric.Int64Counter
	AlertScanDurationMs   metric.Float64Histogram

	// Auth metrics
	AuthFailuresTotal       metric.Int64Counter
	PermissionCheckDuration metric.Float64Histogram
}

// InitMetrics initializes all custom metrics
func InitMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter("github.com/haccare/emr-service"))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.HTTPRequestsTotal, "http_server_requests_total", "Total number of HTTP requests", "{request}"},
		{&m.TenantTotal, "tenant_total", "Total number of tenant operations", "{operation}"},
		{&m.PatientTotal, "patient_total", "Total number of patient operations", "{operation}"},
		{&m.UserTotal, "user_total", "Total number of user operations", "{operation}"},
		{&m.AdministrationsTotal, "medication_administrations_total", "Total number of recorded medication administrations", "{administration}"},
		{&m.BarcodeMismatchTotal, "bcma_barcode_mismatch_total", "Total number of rejected barcode scans", "{scan}"},
		{&m.AlertsCreatedTotal, "alerts_created_total", "Total number of alerts raised", "{alert}"},
		{&m.SimulationResetsTotal, "simulation_resets_total", "Total number of simulation run resets", "{reset}"},
		{&m.AuthFailuresTotal, "auth_failures_total", "Total number of authentication failures", "{failure}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.HTTPDurationMs, err = meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.PermissionCheckDuration, err = meter.Float64Histogram(
		"permission_check_duration_ms",
		metric.WithDescription("Permission check duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.AlertScanDurationMs, err = meter.Float64Histogram(
		"alert_scan_duration_ms",
		metric.WithDescription("Duration of one tenant alert scan in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	log.Debug().Msg("custom metrics initialized")
	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http_method", method),
		attribute.String("http_route", route),
		attribute.Int("http_status_code", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPDurationMs.Record(ctx, durationMs, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTenantOperation(ctx context.Context, operation string) {
	m.TenantTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordPatientOperation records a patient operation metric
func (m *Metrics) RecordPatientOperation(ctx context.Context, operation string) {
	m.PatientTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (m *Metrics) RecordUserOperation(ctx context.Context, operation string) {
	m.UserTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordAdministration counts a BCMA outcome. Outcome is "recorded" or the
// mismatch reason.
func (m *Metrics) RecordAdministration(ctx context.Context, tenantID, outcome string) {
	attrs := metric.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("outcome", outcome),
	)
	if outcome == "recorded" {
		m.AdministrationsTotal.Add(ctx, 1, attrs)
		return
	}
	m.BarcodeMismatchTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordAlertCreated(ctx context.Context, alertType, priority string) {
	m.AlertsCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", alertType),
		attribute.String("priority", priority),
	))
}

func (m *Metrics) RecordAlertScan(ctx context.Context, tenantID string, durationMs float64) {
	m.AlertScanDurationMs.Record(ctx, durationMs, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}

func (m *Metrics) RecordSimulationReset(ctx context.Context, tenantID string) {
	m.SimulationResetsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}

// RecordAuthFailure records an authentication failure metric
func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	m.AuthFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordPermissionCheck records a permission check duration metric
func (m *Metrics) RecordPermissionCheck(ctx context.Context, permission string, durationMs float64, allowed bool) {
	m.PermissionCheckDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("permission", permission),
		attribute.Bool("allowed", allowed),
	))
}
