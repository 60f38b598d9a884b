package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/haccare/emr-service/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		Env:             "development",
		ServiceName:     "emr-service",
		OTLPEndpoint:    "otel:4317",
		TracesSampler:   "always_off",
		MetricsInterval: 10 * time.Second,
	}

	got := FromAppConfig(cfg)

	assert.Equal(t, "emr-service", got.ServiceName)
	assert.Equal(t, "haccare", got.ServiceNamespace)
	assert.Equal(t, "development", got.Environment)
	assert.Equal(t, "otel:4317", got.OTLPEndpoint)
	assert.Equal(t, "always_off", got.TracesSampler)
	assert.Equal(t, 10*time.Second, got.MetricsInterval)
	assert.Equal(t, Version, got.ServiceVersion)
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"always_on", "AlwaysOnSampler"},
		{"", "AlwaysOnSampler"},
		{"bogus", "AlwaysOnSampler"},
		{"ALWAYS_OFF", "AlwaysOffSampler"},
		{"traceidratio", "TraceIDRatioBased{0.1}"},
		{"traceidratio:0.25", "TraceIDRatioBased{0.25}"},
		{"traceidratio:7", "TraceIDRatioBased{0.1}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, samplerFor(tt.in).Description(), "sampler for %q", tt.in)
	}
}

func TestProviderShutdown_Empty(t *testing.T) {
	p := &Provider{}
	assert.NoError(t, p.Shutdown(context.Background()))
}
