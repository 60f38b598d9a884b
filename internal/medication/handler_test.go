package medication

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
	createFunc     func(ctx context.Context, scope access.Scope, patientID string, req CreateMedicationRequest) (*Medication, error)
	listFunc       func(ctx context.Context, scope access.Scope, patientID, status string) ([]Medication, error)
	getFunc        func(ctx context.Context, scope access.Scope, id string) (*Medication, error)
	updateFunc     func(ctx context.Context, scope access.Scope, id string, req UpdateMedicationRequest) (*Medication, error)
	deleteFunc     func(ctx context.Context, scope access.Scope, id string) error
	dueFunc        func(ctx context.Context, scope access.Scope, patientID string) (*DueListResponse, error)
	administerFunc func(ctx context.Context, scope access.Scope, medicationID string, req AdministerRequest) (*AdministerResult, error)
	historyFunc    func(ctx context.Context, scope access.Scope, medicationID string) ([]Administration, error)
	labelFunc      func(ctx context.Context, scope access.Scope, id string) ([]byte, error)
}

func (m *mockService) CreateMedication(ctx context.Context, scope access.Scope, patientID string, req CreateMedicationRequest) (*Medication, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, scope, patientID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) ListMedications(ctx context.Context, scope access.Scope, patientID, status string) ([]Medication, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, scope, patientID, status)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) GetMedication(ctx context.Context, scope access.Scope, id string) (*Medication, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, scope, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) UpdateMedication(ctx context.Context, scope access.Scope, id string, req UpdateMedicationRequest) (*Medication, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, scope, id, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) DeleteMedication(ctx context.Context, scope access.Scope, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, scope, id)
	}
	return errors.New("not implemented")
}

func (m *mockService) DueList(ctx context.Context, scope access.Scope, patientID string) (*DueListResponse, error) {
	if m.dueFunc != nil {
		return m.dueFunc(ctx, scope, patientID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) Administer(ctx context.Context, scope access.Scope, medicationID string, req AdministerRequest) (*AdministerResult, error) {
	if m.administerFunc != nil {
		return m.administerFunc(ctx, scope, medicationID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) ListAdministrations(ctx context.Context, scope access.Scope, medicationID string) ([]Administration, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, scope, medicationID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) Label(ctx context.Context, scope access.Scope, id string) ([]byte, error) {
	if m.labelFunc != nil {
		return m.labelFunc(ctx, scope, id)
	}
	return nil, errors.New("not implemented")
}

func scoped(req *http.Request, vars map[string]string) *http.Request {
	req = req.WithContext(access.WithScope(req.Context(), nurseScope))
	return mux.SetURLVars(req, vars)
}

// TestAdministerHandler_Success tests the 201 response
func TestAdministerHandler_Success(t *testing.T) {
	svc := &mockService{
		administerFunc: func(ctx context.Context, scope access.Scope, medicationID string, req AdministerRequest) (*AdministerResult, error) {
			if medicationID != "m-1" || req.PatientBarcode != "0001" {
				t.Errorf("Unexpected call %s %+v", medicationID, req)
			}
			return &AdministerResult{Administration: &Administration{ID: "adm-1"}, Medication: activeMed()}, nil
		},
	}
	handler := NewHandler(svc)

	body, _ := json.Marshal(validScan())
	req := scoped(httptest.NewRequest(http.MethodPost, "/api/medications/m-1/administer", bytes.NewReader(body)),
		map[string]string{"medicationId": "m-1"})
	rr := httptest.NewRecorder()

	handler.Administer(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp AdministerResult
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Administration == nil || resp.Administration.ID != "adm-1" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

// TestAdministerHandler_VerificationFailed tests 422 for barcode mismatches
func TestAdministerHandler_VerificationFailed(t *testing.T) {
	for _, e := range []error{ErrPatientBarcodeMismatch, ErrMedicationBarcodeMismatch, ErrWrongPatient, ErrMedicationInactive} {
		svc := &mockService{
			administerFunc: func(ctx context.Context, scope access.Scope, medicationID string, req AdministerRequest) (*AdministerResult, error) {
				return nil, e
			},
		}
		handler := NewHandler(svc)
		req := scoped(httptest.NewRequest(http.MethodPost, "/api/medications/m-1/administer", bytes.NewReader([]byte(`{}`))),
			map[string]string{"medicationId": "m-1"})
		rr := httptest.NewRecorder()

		handler.Administer(rr, req)

		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("%v: expected status 422, got %d", e, rr.Code)
		}
	}
}

// TestCreateMedicationHandler_Validation tests 400 mapping
func TestCreateMedicationHandler_Validation(t *testing.T) {
	svc := &mockService{
		createFunc: func(ctx context.Context, scope access.Scope, patientID string, req CreateMedicationRequest) (*Medication, error) {
			if patientID != "p-1" {
				t.Errorf("Expected patient p-1, got '%s'", patientID)
			}
			return nil, ErrInvalidCategory
		},
	}
	handler := NewHandler(svc)

	req := scoped(httptest.NewRequest(http.MethodPost, "/api/patients/p-1/medications", bytes.NewReader([]byte(`{"category":"x"}`))),
		map[string]string{"id": "p-1"})
	rr := httptest.NewRecorder()

	handler.CreateMedication(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

// TestDueListHandler_Success tests the due endpoint
func TestDueListHandler_Success(t *testing.T) {
	svc := &mockService{
		dueFunc: func(ctx context.Context, scope access.Scope, patientID string) (*DueListResponse, error) {
			return &DueListResponse{Success: true, Due: []Medication{}, Overdue: []Medication{*activeMed()}, PRN: []Medication{}}, nil
		},
	}
	handler := NewHandler(svc)

	req := scoped(httptest.NewRequest(http.MethodGet, "/api/patients/p-1/medications/due", nil), map[string]string{"id": "p-1"})
	rr := httptest.NewRecorder()

	handler.DueList(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp DueListResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Overdue) != 1 {
		t.Errorf("Expected 1 overdue, got %d", len(resp.Overdue))
	}
}

// TestGetMedicationHandler_NotFound tests 404 mapping
func TestGetMedicationHandler_NotFound(t *testing.T) {
	svc := &mockService{
		getFunc: func(ctx context.Context, scope access.Scope, id string) (*Medication, error) {
			return nil, ErrMedicationNotFound
		},
	}
	handler := NewHandler(svc)

	req := scoped(httptest.NewRequest(http.MethodGet, "/api/medications/x", nil), map[string]string{"medicationId": "x"})
	rr := httptest.NewRecorder()

	handler.GetMedication(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

// TestListAdministrationsHandler_Count tests the history response
func TestListAdministrationsHandler_Count(t *testing.T) {
	svc := &mockService{
		historyFunc: func(ctx context.Context, scope access.Scope, medicationID string) ([]Administration, error) {
			return []Administration{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	handler := NewHandler(svc)

	req := scoped(httptest.NewRequest(http.MethodGet, "/api/medications/m-1/administrations", nil), map[string]string{"medicationId": "m-1"})
	rr := httptest.NewRecorder()

	handler.ListAdministrations(rr, req)

	var resp AdministrationListResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if rr.Code != http.StatusOK || resp.Count != 2 {
		t.Errorf("Expected 200 with 2 entries, got %d / %d", rr.Code, resp.Count)
	}
}
