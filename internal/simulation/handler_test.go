package simulation

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
)

// mockService implements ServiceInterface for testing
type mockService struct {
	captureFunc func(ctx context.Context, scope access.Scope, tenantID string) (*BaselineSummary, error)
	resetFunc   func(ctx context.Context, scope access.Scope, tenantID string) (*ResetSummary, error)
}

func (m *mockService) CaptureBaseline(ctx context.Context, scope access.Scope, tenantID string) (*BaselineSummary, error) {
	if m.captureFunc != nil {
		return m.captureFunc(ctx, scope, tenantID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) ResetRun(ctx context.Context, scope access.Scope, tenantID string) (*ResetSummary, error) {
	if m.resetFunc != nil {
		return m.resetFunc(ctx, scope, tenantID)
	}
	return nil, errors.New("not implemented")
}

// mockResolver grants access to the tenants it lists
type mockResolver struct {
	allowed  map[string]bool
	lastWant string
}

func (m *mockResolver) Resolve(ctx context.Context, p *auth.Principal, requested string) (*access.Scope, error) {
	m.lastWant = requested
	if !m.allowed[requested] {
		return nil, access.ErrForbidden
	}
	return &access.Scope{UserID: p.UserID, TenantID: requested, Roles: p.Roles}, nil
}

func withPrincipal(req *http.Request) *http.Request {
	return req.WithContext(auth.ContextWithPrincipal(req.Context(), &auth.Principal{UserID: "i-1", Roles: []string{auth.RoleInstructor}}))
}

// TestResetRunHandler tests status mapping for the reset_run RPC
func TestResetRunHandler(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"success", `{"tenant_id":"sim-1"}`, nil, http.StatusOK},
		{"missing tenant", `{}`, nil, http.StatusBadRequest},
		{"no access", `{"tenant_id":"sim-9"}`, nil, http.StatusForbidden},
		{"institution", `{"tenant_id":"sim-1"}`, ErrNotSimulation, http.StatusBadRequest},
		{"policy denied", `{"tenant_id":"sim-1"}`, ErrForbidden, http.StatusForbidden},
		{"no baseline", `{"tenant_id":"sim-1"}`, ErrNoBaseline, http.StatusConflict},
		{"bad json", `{`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				resetFunc: func(ctx context.Context, scope access.Scope, tenantID string) (*ResetSummary, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &ResetSummary{TenantID: tenantID, RunNumber: 2}, nil
				},
			}
			handler := NewHandler(svc, &mockResolver{allowed: map[string]bool{"sim-1": true}})

			req := withPrincipal(httptest.NewRequest(http.MethodPost, "/rpc/reset_run", bytes.NewBufferString(tt.body)))
			w := httptest.NewRecorder()
			handler.ResetRun(w, req)

			if w.Code != tt.code {
				t.Errorf("Expected status %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}
}

// TestResetRunHandler_HeaderFallback tests that X-Tenant-ID is used without a body
func TestResetRunHandler_HeaderFallback(t *testing.T) {
	resolver := &mockResolver{allowed: map[string]bool{"sim-1": true}}
	svc := &mockService{
		resetFunc: func(ctx context.Context, scope access.Scope, tenantID string) (*ResetSummary, error) {
			return &ResetSummary{TenantID: tenantID}, nil
		},
	}
	handler := NewHandler(svc, resolver)

	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/rpc/reset_run", nil))
	req.Header.Set(access.TenantHeader, "sim-1")
	w := httptest.NewRecorder()
	handler.ResetRun(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if resolver.lastWant != "sim-1" {
		t.Errorf("Expected resolver asked for sim-1, got %q", resolver.lastWant)
	}
}

// TestResetRunHandler_NoPrincipal tests the unauthenticated response
func TestResetRunHandler_NoPrincipal(t *testing.T) {
	handler := NewHandler(&mockService{}, &mockResolver{})

	req := httptest.NewRequest(http.MethodPost, "/rpc/reset_run", bytes.NewBufferString(`{"tenant_id":"sim-1"}`))
	w := httptest.NewRecorder()
	handler.ResetRun(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

// TestCaptureBaselineHandler tests the capture RPC
func TestCaptureBaselineHandler(t *testing.T) {
	svc := &mockService{
		captureFunc: func(ctx context.Context, scope access.Scope, tenantID string) (*BaselineSummary, error) {
			return &BaselineSummary{TenantID: tenantID, Medications: 3}, nil
		},
	}
	handler := NewHandler(svc, &mockResolver{allowed: map[string]bool{"sim-1": true}})

	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/rpc/capture_baseline", bytes.NewBufferString(`{"tenant_id":"sim-1"}`)))
	w := httptest.NewRecorder()
	handler.CaptureBaseline(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
