package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/haccare/emr-service/internal/access"
)

// mockService implements ServiceInterface for testing
type mockService struct {
	createFunc func(ctx context.Context, scope access.Scope, a Alert) (*Alert, bool, error)
	listFunc   func(ctx context.Context, scope access.Scope, patientID string) ([]Alert, error)
	ackFunc    func(ctx context.Context, scope access.Scope, id string) (*Alert, error)
}

func (m *mockService) Create(ctx context.Context, scope access.Scope, a Alert) (*Alert, bool, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, scope, a)
	}
	return nil, false, errors.New("not implemented")
}

func (m *mockService) ListActive(ctx context.Context, scope access.Scope, patientID string) ([]Alert, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, scope, patientID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) Acknowledge(ctx context.Context, scope access.Scope, id string) (*Alert, error) {
	if m.ackFunc != nil {
		return m.ackFunc(ctx, scope, id)
	}
	return nil, errors.New("not implemented")
}

func withScope(req *http.Request) *http.Request {
	return req.WithContext(access.WithScope(req.Context(), nurseScope))
}

// TestCreateHandler_DefaultsAndTenant tests that the scope tenant and system type are applied
func TestCreateHandler_DefaultsAndTenant(t *testing.T) {
	svc := &mockService{
		createFunc: func(ctx context.Context, scope access.Scope, a Alert) (*Alert, bool, error) {
			if a.TenantID != "inst" || a.Type != TypeSystem {
				t.Errorf("Unexpected alert %+v", a)
			}
			a.ID = "al-1"
			return &a, true, nil
		},
	}
	handler := NewHandler(svc)

	body, _ := json.Marshal(CreateAlertRequest{Message: "Fall risk", Priority: PriorityMedium})
	req := withScope(httptest.NewRequest(http.MethodPost, "/api/alerts", bytes.NewReader(body)))
	rr := httptest.NewRecorder()

	handler.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rr.Code)
	}
}

// TestCreateHandler_Duplicate tests 200 when the alert already exists
func TestCreateHandler_Duplicate(t *testing.T) {
	svc := &mockService{
		createFunc: func(ctx context.Context, scope access.Scope, a Alert) (*Alert, bool, error) {
			return nil, false, nil
		},
	}
	handler := NewHandler(svc)

	req := withScope(httptest.NewRequest(http.MethodPost, "/api/alerts", bytes.NewReader([]byte(`{"message":"x","priority":"low","source_id":"s"}`))))
	rr := httptest.NewRecorder()

	handler.Create(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

// TestAcknowledgeHandler_Conflict tests 409 on double acknowledgement
func TestAcknowledgeHandler_Conflict(t *testing.T) {
	svc := &mockService{
		ackFunc: func(ctx context.Context, scope access.Scope, id string) (*Alert, error) {
			return nil, ErrAlreadyAcknowledged
		},
	}
	handler := NewHandler(svc)

	req := withScope(httptest.NewRequest(http.MethodPost, "/api/alerts/al-1/acknowledge", nil))
	req = mux.SetURLVars(req, map[string]string{"alertId": "al-1"})
	rr := httptest.NewRecorder()

	handler.Acknowledge(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rr.Code)
	}
}

// TestListActiveHandler_PatientFilter tests the query parameter
func TestListActiveHandler_PatientFilter(t *testing.T) {
	svc := &mockService{
		listFunc: func(ctx context.Context, scope access.Scope, patientID string) ([]Alert, error) {
			if patientID != "p-1" {
				t.Errorf("Expected p-1, got '%s'", patientID)
			}
			return []Alert{{ID: "al-1"}}, nil
		},
	}
	handler := NewHandler(svc)

	req := withScope(httptest.NewRequest(http.MethodGet, "/api/alerts?patient_id=p-1", nil))
	rr := httptest.NewRecorder()

	handler.ListActive(rr, req)

	var resp AlertListResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if rr.Code != http.StatusOK || resp.Count != 1 {
		t.Errorf("Expected 200 with 1 alert, got %d / %d", rr.Code, resp.Count)
	}
}
