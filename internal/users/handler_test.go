package users

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
	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/pagination"
)

// mockService implements ServiceInterface for testing
type mockService struct {
	assignFunc        func(ctx context.Context, p *auth.Principal, req AssignUserRequest) (*Membership, error)
	removeFunc        func(ctx context.Context, scope access.Scope, userID string) error
	listMembersFunc   func(ctx context.Context, scope access.Scope, params pagination.Params) (*PaginatedMemberListResponse, error)
	getProfileFunc    func(ctx context.Context, p *auth.Principal) (*UserProfile, error)
	updateProfileFunc func(ctx context.Context, p *auth.Principal, req UpdateProfileRequest) (*UserProfile, error)
	listMyTenantsFunc func(ctx context.Context, p *auth.Principal) ([]UserTenant, error)
}

func (m *mockService) AssignUserToTenant(ctx context.Context, p *auth.Principal, req AssignUserRequest) (*Membership, error) {
	if m.assignFunc != nil {
		return m.assignFunc(ctx, p, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) RemoveMember(ctx context.Context, scope access.Scope, userID string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, scope, userID)
	}
	return errors.New("not implemented")
}

func (m *mockService) ListMembers(ctx context.Context, scope access.Scope, params pagination.Params) (*PaginatedMemberListResponse, error) {
	if m.listMembersFunc != nil {
		return m.listMembersFunc(ctx, scope, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) GetMyProfile(ctx context.Context, p *auth.Principal) (*UserProfile, error) {
	if m.getProfileFunc != nil {
		return m.getProfileFunc(ctx, p)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) UpdateMyProfile(ctx context.Context, p *auth.Principal, req UpdateProfileRequest) (*UserProfile, error) {
	if m.updateProfileFunc != nil {
		return m.updateProfileFunc(ctx, p, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) ListMyTenants(ctx context.Context, p *auth.Principal) ([]UserTenant, error) {
	if m.listMyTenantsFunc != nil {
		return m.listMyTenantsFunc(ctx, p)
	}
	return nil, errors.New("not implemented")
}

func withPrincipal(req *http.Request, p *auth.Principal) *http.Request {
	return req.WithContext(auth.ContextWithPrincipal(req.Context(), p))
}

// TestHandlerAssignUserToTenant_Success tests the RPC response body
func TestHandlerAssignUserToTenant_Success(t *testing.T) {
	handler := NewHandler(&mockService{
		assignFunc: func(ctx context.Context, p *auth.Principal, req AssignUserRequest) (*Membership, error) {
			return &Membership{UserID: req.UserID, TenantID: req.TenantID, Role: req.Role, IsActive: true}, nil
		},
	})

	body, _ := json.Marshal(AssignUserRequest{UserID: "u-1", TenantID: "inst", Role: "NURSE"})
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/rpc/assign_user_to_tenant", bytes.NewReader(body)), superAdmin)
	rec := httptest.NewRecorder()

	handler.AssignUserToTenant(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var response struct {
		Success    bool       `json:"success"`
		Membership Membership `json:"membership"`
	}
	json.NewDecoder(rec.Body).Decode(&response)
	if !response.Success || response.Membership.UserID != "u-1" {
		t.Errorf("Unexpected response %+v", response)
	}
}

// TestHandlerAssignUserToTenant_ErrorMapping tests service errors to HTTP status codes
func TestHandlerAssignUserToTenant_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrForbidden, http.StatusForbidden},
		{ErrUserNotFound, http.StatusNotFound},
		{ErrTenantNotFound, http.StatusNotFound},
		{ErrTenantInactive, http.StatusConflict},
		{ErrInvalidRole, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			handler := NewHandler(&mockService{
				assignFunc: func(ctx context.Context, p *auth.Principal, req AssignUserRequest) (*Membership, error) {
					return nil, tt.err
				},
			})
			req := withPrincipal(httptest.NewRequest(http.MethodPost, "/rpc/assign_user_to_tenant", bytes.NewReader([]byte(`{}`))), tenantAdmin)
			rec := httptest.NewRecorder()

			handler.AssignUserToTenant(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

// TestHandlerAssignUserToTenant_InvalidJSON tests a malformed body
func TestHandlerAssignUserToTenant_InvalidJSON(t *testing.T) {
	handler := NewHandler(&mockService{})
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/rpc/assign_user_to_tenant", bytes.NewReader([]byte(`{`))), superAdmin)
	rec := httptest.NewRecorder()

	handler.AssignUserToTenant(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

// TestHandlerRemoveMember_Success tests the path variable and scope are passed through
func TestHandlerRemoveMember_Success(t *testing.T) {
	var gotScope access.Scope
	var gotUser string
	handler := NewHandler(&mockService{
		removeFunc: func(ctx context.Context, scope access.Scope, userID string) error {
			gotScope, gotUser = scope, userID
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/members/u-9", nil)
	req = mux.SetURLVars(req, map[string]string{"userId": "u-9"})
	req = req.WithContext(access.WithScope(req.Context(), access.Scope{UserID: "adm-1", TenantID: "inst"}))
	rec := httptest.NewRecorder()

	handler.RemoveMember(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}
	if gotUser != "u-9" || gotScope.TenantID != "inst" {
		t.Errorf("Expected u-9 in inst, got %s in %s", gotUser, gotScope.TenantID)
	}
}

// TestHandlerListMembers_NoScope tests that a missing tenant scope is rejected
func TestHandlerListMembers_NoScope(t *testing.T) {
	handler := NewHandler(&mockService{})
	rec := httptest.NewRecorder()

	handler.ListMembers(rec, httptest.NewRequest(http.MethodGet, "/api/members", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

// TestHandlerListMembers_Success tests paginated output
func TestHandlerListMembers_Success(t *testing.T) {
	handler := NewHandler(&mockService{
		listMembersFunc: func(ctx context.Context, scope access.Scope, params pagination.Params) (*PaginatedMemberListResponse, error) {
			if params.Page != 2 {
				t.Errorf("Expected page 2, got %d", params.Page)
			}
			return &PaginatedMemberListResponse{Success: true, Members: []Member{{UserID: "u-1"}}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/members?page=2", nil)
	req = req.WithContext(access.WithScope(req.Context(), access.Scope{UserID: "adm-1", TenantID: "inst"}))
	rec := httptest.NewRecorder()

	handler.ListMembers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var response PaginatedMemberListResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if len(response.Members) != 1 {
		t.Errorf("Expected 1 member, got %d", len(response.Members))
	}
}

// TestHandlerUpdateMyProfile_Validation tests a no-op update
func TestHandlerUpdateMyProfile_Validation(t *testing.T) {
	handler := NewHandler(&mockService{
		updateProfileFunc: func(ctx context.Context, p *auth.Principal, req UpdateProfileRequest) (*UserProfile, error) {
			return nil, ErrNoFieldsToUpdate
		},
	})
	req := withPrincipal(httptest.NewRequest(http.MethodPatch, "/api/me", bytes.NewReader([]byte(`{}`))), tenantAdmin)
	rec := httptest.NewRecorder()

	handler.UpdateMyProfile(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

// TestHandlerListMyTenants_Success tests the count field
func TestHandlerListMyTenants_Success(t *testing.T) {
	handler := NewHandler(&mockService{
		listMyTenantsFunc: func(ctx context.Context, p *auth.Principal) ([]UserTenant, error) {
			return []UserTenant{{TenantID: "inst", Role: auth.RoleAdmin}}, nil
		},
	})
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/me/tenants", nil), tenantAdmin)
	rec := httptest.NewRecorder()

	handler.ListMyTenants(rec, req)

	var response struct {
		Count int `json:"count"`
	}
	json.NewDecoder(rec.Body).Decode(&response)
	if response.Count != 1 {
		t.Errorf("Expected count 1, got %d", response.Count)
	}
}

// TestHandlerGetMyProfile_Unauthenticated tests missing authentication
func TestHandlerGetMyProfile_Unauthenticated(t *testing.T) {
	handler := NewHandler(&mockService{})
	rec := httptest.NewRecorder()

	handler.GetMyProfile(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}
