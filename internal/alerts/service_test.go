package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/testutil"
)

var (
	nurseScope = access.Scope{UserID: "n-1", TenantID: "inst", Roles: []string{auth.RoleNurse}}
	fixedNow   = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func loadPolicy(t *testing.T) *access.PolicyEngine {
	t.Helper()
	policies, err := access.LoadPolicies("../../policies.yml")
	if err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}
	engine, err := access.NewPolicyEngine(policies)
	if err != nil {
		t.Fatalf("Failed to compile policies: %v", err)
	}
	return engine
}

func newTestService(t *testing.T, repo RepositoryInterface, pub messaging.PublisherInterface) *Service {
	svc := NewService(repo, loadPolicy(t), pub)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func validAlert() Alert {
	return Alert{TenantID: "inst", PatientID: "p-1", Type: TypeSystem, Message: "Check IV site", Priority: PriorityLow}
}

// TestCreate_MissingTenant tests that an empty tenant never reaches the policy or the database
func TestCreate_MissingTenant(t *testing.T) {
	policy := &countingAuthorizer{}
	repo := &mockRepository{}
	svc := NewService(repo, policy, nil)

	for _, tenant := range []string{"", "   "} {
		a := validAlert()
		a.TenantID = tenant

		_, _, err := svc.Create(context.Background(), SystemScope(""), a)

		if !errors.Is(err, ErrMissingTenant) {
			t.Errorf("%q: expected ErrMissingTenant, got %v", tenant, err)
		}
	}
	if policy.calls != 0 || repo.insertCalls != 0 {
		t.Errorf("Expected no policy or repository calls, got %d/%d", policy.calls, repo.insertCalls)
	}
}

// TestAlertPolicy_RejectsMissingTenant tests the insert predicate on its own
func TestAlertPolicy_RejectsMissingTenant(t *testing.T) {
	policy := loadPolicy(t)
	superAdmin := access.Scope{UserID: "root", SuperAdmin: true}

	if err := policy.Authorize("alerts", "insert", superAdmin, map[string]any{}); err == nil {
		t.Error("Expected denial for a row without tenant_id")
	}
	if err := policy.Authorize("alerts", "insert", superAdmin, map[string]any{"tenant_id": ""}); err == nil {
		t.Error("Expected denial for an empty tenant_id")
	}
	if err := policy.Authorize("alerts", "insert", superAdmin, map[string]any{"tenant_id": "inst"}); err != nil {
		t.Errorf("Expected super admin insert allowed, got %v", err)
	}
}

// TestCreate_Validation tests type, priority and message checks
func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Alert)
		want   error
	}{
		{"bad type", func(a *Alert) { a.Type = "billing" }, ErrInvalidType},
		{"bad priority", func(a *Alert) { a.Priority = "urgent" }, ErrInvalidPriority},
		{"no message", func(a *Alert) { a.Message = " " }, ErrMessageRequired},
	}

	svc := newTestService(t, &mockRepository{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAlert()
			tt.mutate(&a)
			if _, _, err := svc.Create(context.Background(), nurseScope, a); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestCreate_OtherTenantForbidden tests that a nurse cannot raise alerts elsewhere
func TestCreate_OtherTenantForbidden(t *testing.T) {
	svc := newTestService(t, &mockRepository{}, nil)
	a := validAlert()
	a.TenantID = "elsewhere"

	if _, _, err := svc.Create(context.Background(), nurseScope, a); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

// TestCreate_PublishesAndRecords tests a new alert
func TestCreate_PublishesAndRecords(t *testing.T) {
	repo := &mockRepository{
		insertFunc: func(ctx context.Context, sess db.Session, a *Alert) (*Alert, bool, error) {
			saved := *a
			saved.ID = "al-1"
			return &saved, true, nil
		},
	}
	pub := testutil.NewMockPublisher()
	metrics := &mockMetrics{}
	svc := newTestService(t, repo, pub).WithMetrics(metrics)

	a, created, err := svc.Create(context.Background(), nurseScope, validAlert())

	if err != nil || !created {
		t.Fatalf("Expected created alert, got %v / %v", created, err)
	}
	if a.ID != "al-1" {
		t.Errorf("Expected al-1, got '%s'", a.ID)
	}
	if len(metrics.created) != 1 || metrics.created[0] != TypeSystem+"/"+PriorityLow {
		t.Errorf("Unexpected metrics: %v", metrics.created)
	}

	var event messaging.AlertEvent
	pub.DecodeLast(t, messaging.EventAlertCreated, &event)
	if event.Data.AlertID != "al-1" || event.TenantID != "inst" {
		t.Errorf("Unexpected event: %+v", event)
	}
}

// TestCreate_Duplicate tests that a deduplicated alert is silent
func TestCreate_Duplicate(t *testing.T) {
	repo := &mockRepository{
		insertFunc: func(ctx context.Context, sess db.Session, a *Alert) (*Alert, bool, error) {
			return nil, false, nil
		},
	}
	pub := testutil.NewMockPublisher()
	metrics := &mockMetrics{}
	svc := newTestService(t, repo, pub).WithMetrics(metrics)

	a, created, err := svc.Create(context.Background(), nurseScope, validAlert())

	if err != nil || created || a != nil {
		t.Errorf("Expected silent duplicate, got %v / %v / %v", a, created, err)
	}
	pub.AssertEventCount(t, messaging.EventAlertCreated, 0)
	if len(metrics.created) != 0 {
		t.Errorf("Expected no metrics, got %v", metrics.created)
	}
}

// TestCreate_SystemScopeSession tests that background inserts carry the tenant in the session
func TestCreate_SystemScopeSession(t *testing.T) {
	var got db.Session
	repo := &mockRepository{
		insertFunc: func(ctx context.Context, sess db.Session, a *Alert) (*Alert, bool, error) {
			got = sess
			return a, true, nil
		},
	}
	svc := newTestService(t, repo, nil)

	if _, _, err := svc.Create(context.Background(), SystemScope("inst"), validAlert()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !got.SuperAdmin || got.TenantID != "inst" {
		t.Errorf("Unexpected session %+v", got)
	}
}

// TestAcknowledge_Success tests acknowledgement and event
func TestAcknowledge_Success(t *testing.T) {
	repo := &mockRepository{
		getFunc: func(ctx context.Context, sess db.Session, tenantID, id string) (*Alert, error) {
			a := validAlert()
			a.ID = id
			return &a, nil
		},
		ackFunc: func(ctx context.Context, sess db.Session, tenantID, id, userID string) (*Alert, error) {
			a := validAlert()
			a.ID, a.Acknowledged, a.AcknowledgedBy = id, true, userID
			return &a, nil
		},
	}
	pub := testutil.NewMockPublisher()
	svc := newTestService(t, repo, pub)

	a, err := svc.Acknowledge(context.Background(), nurseScope, "al-1")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !a.Acknowledged || a.AcknowledgedBy != "n-1" {
		t.Errorf("Unexpected alert %+v", a)
	}
	var event messaging.AlertEvent
	pub.DecodeLast(t, messaging.EventAlertAcknowledged, &event)
	if event.Data.ActorID != "n-1" {
		t.Errorf("Expected actor n-1, got '%s'", event.Data.ActorID)
	}
}

// TestAcknowledge_Twice tests that an acknowledged alert is rejected
func TestAcknowledge_Twice(t *testing.T) {
	repo := &mockRepository{
		getFunc: func(ctx context.Context, sess db.Session, tenantID, id string) (*Alert, error) {
			a := validAlert()
			a.Acknowledged = true
			return &a, nil
		},
	}
	svc := newTestService(t, repo, nil)

	if _, err := svc.Acknowledge(context.Background(), nurseScope, "al-1"); !errors.Is(err, ErrAlreadyAcknowledged) {
		t.Errorf("Expected ErrAlreadyAcknowledged, got %v", err)
	}
}

// TestListActive_EmptySlice tests nil normalisation
func TestListActive_EmptySlice(t *testing.T) {
	repo := &mockRepository{
		listFunc: func(ctx context.Context, sess db.Session, tenantID, patientID string, now time.Time) ([]Alert, error) {
			if !now.Equal(fixedNow) {
				t.Errorf("Expected now %s, got %s", fixedNow, now)
			}
			return nil, nil
		},
	}
	svc := newTestService(t, repo, nil)

	out, err := svc.ListActive(context.Background(), nurseScope, "")

	if err != nil || out == nil {
		t.Errorf("Expected empty slice, got %v / %v", out, err)
	}
}

// TestPurge_UsesRetention tests the cutoff passed to the repository
func TestPurge_UsesRetention(t *testing.T) {
	var cutoff time.Time
	repo := &mockRepository{
		purgeFunc: func(ctx context.Context, sess db.Session, before time.Time) (int64, error) {
			cutoff = before
			return 3, nil
		},
	}
	svc := newTestService(t, repo, nil)

	n, err := svc.Purge(context.Background(), 48*time.Hour)

	if err != nil || n != 3 {
		t.Errorf("Expected 3 purged, got %d / %v", n, err)
	}
	if want := fixedNow.Add(-48 * time.Hour); !cutoff.Equal(want) {
		t.Errorf("Expected cutoff %s, got %s", want, cutoff)
	}
}

// Mock implementations

type mockRepository struct {
	mu          sync.Mutex
	insertCalls int

	insertFunc func(ctx context.Context, sess db.Session, a *Alert) (*Alert, bool, error)
	listFunc   func(ctx context.Context, sess db.Session, tenantID, patientID string, now time.Time) ([]Alert, error)
	getFunc    func(ctx context.Context, sess db.Session, tenantID, id string) (*Alert, error)
	ackFunc    func(ctx context.Context, sess db.Session, tenantID, id, userID string) (*Alert, error)
	purgeFunc  func(ctx context.Context, sess db.Session, before time.Time) (int64, error)
}

func (m *mockRepository) Insert(ctx context.Context, sess db.Session, a *Alert) (*Alert, bool, error) {
	m.mu.Lock()
	m.insertCalls++
	m.mu.Unlock()
	if m.insertFunc != nil {
		return m.insertFunc(ctx, sess, a)
	}
	return nil, false, errors.New("not implemented")
}

func (m *mockRepository) ListActive(ctx context.Context, sess db.Session, tenantID, patientID string, now time.Time) ([]Alert, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, sess, tenantID, patientID, now)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepository) GetAlert(ctx context.Context, sess db.Session, tenantID, id string) (*Alert, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, sess, tenantID, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepository) Acknowledge(ctx context.Context, sess db.Session, tenantID, id, userID string) (*Alert, error) {
	if m.ackFunc != nil {
		return m.ackFunc(ctx, sess, tenantID, id, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepository) DeleteAcknowledgedBefore(ctx context.Context, sess db.Session, before time.Time) (int64, error) {
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, sess, before)
	}
	return 0, errors.New("not implemented")
}

type countingAuthorizer struct {
	calls int
}

func (c *countingAuthorizer) Authorize(table, op string, scope access.Scope, row map[string]any) error {
	c.calls++
	return nil
}

type mockMetrics struct {
	mu      sync.Mutex
	created []string
	scans   []string
}

func (m *mockMetrics) RecordAlertCreated(ctx context.Context, alertType, priority string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, alertType+"/"+priority)
}

func (m *mockMetrics) RecordAlertScan(ctx context.Context, tenantID string, durationMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, tenantID)
}
