//go:build integration

package e2e

import (
	"crypto/rsa"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	httpserver "github.com/haccare/emr-service/internal/http"
	"github.com/haccare/emr-service/internal/testutil"
)

// TestServer is a running API backed by a real PostgreSQL database.
type TestServer struct {
	Server        *httptest.Server
	DB            *sql.DB
	MockPublisher *testutil.MockPublisher
	Verifier      *auth.Verifier
	PrivateKey    *rsa.PrivateKey
}

// SetupE2ETest builds the full router over a migrated test database. Events
// go to an in-memory publisher.
func SetupE2ETest(t *testing.T) *TestServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	mockPublisher := testutil.NewMockPublisher()

	perms, err := auth.LoadPermissions("../../permissions.yml")
	if err != nil {
		t.Fatalf("Failed to load permissions: %v", err)
	}
	policies, err := access.LoadPolicies("../../policies.yml")
	if err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}
	engine, err := access.NewPolicyEngine(policies)
	if err != nil {
		t.Fatalf("Failed to compile policies: %v", err)
	}

	verifier, privateKey := testutil.CreateTestVerifier(t)

	deps := httpserver.Wire(db, httpserver.Options{
		Verifier:    verifier,
		Permissions: perms,
		Policy:      engine,
		Publisher:   mockPublisher,
		Config:      httpserver.RouterConfig{ServiceName: "emr-service-e2e"},
	})
	server := httptest.NewServer(httpserver.SetupRouter(deps, nil))

	return &TestServer{
		Server:        server,
		DB:            db,
		MockPublisher: mockPublisher,
		Verifier:      verifier,
		PrivateKey:    privateKey,
	}
}

func (ts *TestServer) Cleanup(t *testing.T) {
	t.Helper()
	ts.Server.Close()
	testutil.CleanupTestDB(t, ts.DB)
}

func (ts *TestServer) NewClient(token string) *testutil.HTTPTestClient {
	return testutil.NewHTTPTestClient(ts.Server.URL, token)
}

func (ts *TestServer) SuperAdminClient(t *testing.T) *testutil.HTTPTestClient {
	t.Helper()
	return ts.NewClient(testutil.GenerateSuperAdminToken(t, ts.PrivateKey))
}

// NewUser signs a token for a fresh user with role and makes sure the user
// has a profile, which assignment requires.
func (ts *TestServer) NewUser(t *testing.T, role string) (string, *testutil.HTTPTestClient) {
	t.Helper()

	userID := uuid.NewString()
	client := ts.NewClient(testutil.GenerateTestJWT(t, ts.PrivateKey, userID, "", []string{role}))

	resp := client.GET(t, "/api/me")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()
	return userID, client
}

// CreateTenant creates a tenant as super admin and returns its id.
func (ts *TestServer) CreateTenant(t *testing.T, body map[string]interface{}) string {
	t.Helper()

	resp := ts.SuperAdminClient(t).POST(t, "/api/tenants", body)
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var result struct {
		Tenant struct {
			ID string `json:"id"`
		} `json:"tenant"`
	}
	testutil.DecodeJSON(t, resp, &result)
	if result.Tenant.ID == "" {
		t.Fatalf("Expected tenant id in response")
	}
	return result.Tenant.ID
}

// Assign runs the assign_user_to_tenant RPC as super admin.
func (ts *TestServer) Assign(t *testing.T, userID, tenantID, role string) {
	t.Helper()

	resp := ts.SuperAdminClient(t).POST(t, "/rpc/assign_user_to_tenant", map[string]interface{}{
		"user_id":   userID,
		"tenant_id": tenantID,
		"role":      role,
	})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()
}

// CreatePatient creates a patient in the client's tenant and returns its id.
func CreatePatient(t *testing.T, client *testutil.HTTPTestClient, first, last string) string {
	t.Helper()

	resp := client.POST(t, "/api/patients", map[string]interface{}{
		"first_name":    first,
		"last_name":     last,
		"date_of_birth": "1961-04-12",
		"room_number":   "12",
		"bed_number":    "A",
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var result struct {
		Patient struct {
			ID string `json:"id"`
		} `json:"patient"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Patient.ID
}
