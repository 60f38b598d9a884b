package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/medication"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/testutil"
	"github.com/haccare/emr-service/internal/workerpool"
)

type stubTenants struct {
	ids []string
	err error
}

func (s stubTenants) ListActiveTenantIDs(ctx context.Context) ([]string, error) {
	return s.ids, s.err
}

type stubMeds map[string][]medication.DueMedication

func (s stubMeds) ListActiveByTenant(ctx context.Context, sess db.Session, tenantID string) ([]medication.DueMedication, error) {
	if tenantID == "broken" {
		return nil, errors.New("connection reset")
	}
	if !sess.SuperAdmin || sess.TenantID != tenantID {
		return nil, errors.New("unexpected session")
	}
	return s[tenantID], nil
}

func due(tenantID, patientID, name, id string, offset time.Duration) medication.DueMedication {
	at := fixedNow.Add(offset)
	return medication.DueMedication{
		Medication: medication.Medication{
			ID: id, TenantID: tenantID, PatientID: patientID, Name: "Drug " + id, Dosage: "1 tab",
			Category: medication.CategoryScheduled, Status: medication.StatusActive, Frequency: "Q6H", NextDue: &at,
		},
		PatientName: name,
	}
}

func scanConfig() workerpool.Config {
	return workerpool.Config{Workers: 2, QueueSize: 1, MaxRetries: 0, GracefulShutdownTimeout: 5 * time.Second}
}

func newTestScanner(t *testing.T, tenants TenantLister, meds MedicationLister, repo RepositoryInterface, pub messaging.PublisherInterface, metrics *mockMetrics) *Scanner {
	svc := newTestService(t, repo, pub).WithMetrics(metrics)
	s := NewScanner(tenants, meds, svc, scanConfig())
	s.now = func() time.Time { return fixedNow }
	return s
}

// insertingRepo accepts every alert except those whose source is already open.
func insertingRepo(open map[string]bool) *mockRepository {
	return &mockRepository{
		insertFunc: func(ctx context.Context, sess db.Session, a *Alert) (*Alert, bool, error) {
			if open[a.SourceID] {
				return nil, false, nil
			}
			saved := *a
			saved.ID = "al-" + a.SourceID
			return &saved, true, nil
		},
	}
}

// TestScanOnce_AllTenants tests alert creation across tenants and patients
func TestScanOnce_AllTenants(t *testing.T) {
	meds := stubMeds{
		"inst": {
			due("inst", "p-1", "John Doe", "m-1", -time.Hour),
			due("inst", "p-1", "John Doe", "m-2", 30*time.Minute),
			due("inst", "p-2", "Mary Major", "m-3", 3*time.Hour),
		},
		"sim": {
			due("sim", "p-9", "Sim Patient", "m-9", -5*time.Minute),
		},
	}
	pub := testutil.NewMockPublisher()
	metrics := &mockMetrics{}
	s := newTestScanner(t, stubTenants{ids: []string{"inst", "sim"}}, meds, insertingRepo(nil), pub, metrics)

	summary, err := s.ScanOnce(context.Background())

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.Tenants != 2 || summary.Created != 3 || summary.Failed != 0 {
		t.Errorf("Unexpected summary %+v", summary)
	}
	pub.AssertEventCount(t, messaging.EventAlertCreated, 3)
	if len(metrics.scans) != 2 {
		t.Errorf("Expected 2 scan metrics, got %v", metrics.scans)
	}
}

// TestScanOnce_Deduplicates tests that open alerts are not counted again
func TestScanOnce_Deduplicates(t *testing.T) {
	m := due("inst", "p-1", "John Doe", "m-1", -time.Hour)
	open := map[string]bool{doseSource(m.Medication): true}
	pub := testutil.NewMockPublisher()
	s := newTestScanner(t, stubTenants{ids: []string{"inst"}}, stubMeds{"inst": {m}}, insertingRepo(open), pub, &mockMetrics{})

	summary, err := s.ScanOnce(context.Background())

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.Created != 0 {
		t.Errorf("Expected nothing created, got %d", summary.Created)
	}
	pub.AssertEventCount(t, messaging.EventAlertCreated, 0)
}

// TestScanOnce_TenantFailureIsolated tests that one failing tenant does not stop the rest
func TestScanOnce_TenantFailureIsolated(t *testing.T) {
	meds := stubMeds{"inst": {due("inst", "p-1", "John Doe", "m-1", -time.Hour)}}
	s := newTestScanner(t, stubTenants{ids: []string{"broken", "inst"}}, meds, insertingRepo(nil), nil, &mockMetrics{})

	summary, err := s.ScanOnce(context.Background())

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.Failed != 1 || summary.Created != 1 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

// TestScanOnce_TenantListError tests that a lookup failure is returned
func TestScanOnce_TenantListError(t *testing.T) {
	s := newTestScanner(t, stubTenants{err: errors.New("db down")}, stubMeds{}, insertingRepo(nil), nil, &mockMetrics{})

	if _, err := s.ScanOnce(context.Background()); err == nil {
		t.Error("Expected error")
	}
}

// TestScanOnce_NoTenants tests the empty pass
func TestScanOnce_NoTenants(t *testing.T) {
	s := newTestScanner(t, stubTenants{}, stubMeds{}, insertingRepo(nil), nil, &mockMetrics{})

	summary, err := s.ScanOnce(context.Background())

	if err != nil || summary.Tenants != 0 {
		t.Errorf("Expected empty summary, got %+v / %v", summary, err)
	}
}

// TestGroupByPatient_KeepsOrder tests grouping by first appearance
func TestGroupByPatient_KeepsOrder(t *testing.T) {
	groups := groupByPatient([]medication.DueMedication{
		due("inst", "p-2", "B", "m-1", 0),
		due("inst", "p-1", "A", "m-2", 0),
		due("inst", "p-2", "B", "m-3", 0),
	})

	if len(groups) != 2 || groups[0].name != "B" || len(groups[0].meds) != 2 || groups[1].name != "A" {
		t.Errorf("Unexpected groups %+v", groups)
	}
}

// sourceRepo keeps alerts in memory and, like the alerts_source_idx unique
// index, refuses a second alert for a source whatever its acknowledgement.
type sourceRepo struct {
	mu     sync.Mutex
	alerts map[string]*Alert
}

func newSourceRepo() *sourceRepo {
	return &sourceRepo{alerts: map[string]*Alert{}}
}

func (r *sourceRepo) Insert(ctx context.Context, sess db.Session, a *Alert) (*Alert, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.alerts {
		if existing.TenantID == a.TenantID && existing.Type == a.Type && existing.SourceID == a.SourceID {
			return nil, false, nil
		}
	}
	saved := *a
	saved.ID = "al-" + a.SourceID
	r.alerts[saved.ID] = &saved
	return &saved, true, nil
}

func (r *sourceRepo) ListActive(ctx context.Context, sess db.Session, tenantID, patientID string, now time.Time) ([]Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Alert
	for _, a := range r.alerts {
		if a.TenantID == tenantID && !a.Acknowledged {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *sourceRepo) GetAlert(ctx context.Context, sess db.Session, tenantID, id string) (*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok || a.TenantID != tenantID {
		return nil, ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *sourceRepo) Acknowledge(ctx context.Context, sess db.Session, tenantID, id, userID string) (*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok || a.Acknowledged {
		return nil, ErrAlreadyAcknowledged
	}
	a.Acknowledged = true
	a.AcknowledgedBy = userID
	cp := *a
	return &cp, nil
}

func (r *sourceRepo) DeleteAcknowledgedBefore(ctx context.Context, sess db.Session, before time.Time) (int64, error) {
	return 0, nil
}

// TestScanOnce_AcknowledgedDoseStaysAcknowledged tests that rescanning an
// overdue dose after a nurse acknowledged it raises nothing, while the next
// dose of the same medication raises a fresh alert.
func TestScanOnce_AcknowledgedDoseStaysAcknowledged(t *testing.T) {
	m := due("inst", "p-1", "John Doe", "m-1", -time.Hour)
	meds := stubMeds{"inst": {m}}
	repo := newSourceRepo()
	pub := testutil.NewMockPublisher()
	s := newTestScanner(t, stubTenants{ids: []string{"inst"}}, meds, repo, pub, &mockMetrics{})
	ctx := context.Background()

	summary, err := s.ScanOnce(ctx)
	if err != nil || summary.Created != 1 {
		t.Fatalf("Expected one alert on the first scan, got %+v / %v", summary, err)
	}

	if _, err := s.alerts.Acknowledge(ctx, nurseScope, "al-"+doseSource(m.Medication)); err != nil {
		t.Fatalf("Expected acknowledge to succeed, got: %v", err)
	}

	summary, err = s.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.Created != 0 {
		t.Errorf("Expected acknowledged dose to stay quiet, got %d new", summary.Created)
	}
	active, _ := repo.ListActive(ctx, nurseScope.Session(), "inst", "", fixedNow)
	if len(active) != 0 {
		t.Errorf("Expected no open alerts, got %d", len(active))
	}

	next := due("inst", "p-1", "John Doe", "m-1", -10*time.Minute)
	meds["inst"] = []medication.DueMedication{next}

	summary, err = s.ScanOnce(ctx)
	if err != nil || summary.Created != 1 {
		t.Errorf("Expected the next dose to alert, got %+v / %v", summary, err)
	}
	pub.AssertEventCount(t, messaging.EventAlertCreated, 2)
}

// TestScanOnce_ReportsRetries tests that pool retries of a failing tenant
// show up in the summary
func TestScanOnce_ReportsRetries(t *testing.T) {
	meds := stubMeds{"inst": {due("inst", "p-1", "John Doe", "m-1", -time.Hour)}}
	s := newTestScanner(t, stubTenants{ids: []string{"broken", "inst"}}, meds, insertingRepo(nil), nil, &mockMetrics{})
	s.pool.MaxRetries = 2
	s.pool.RetryDelay = time.Millisecond

	summary, err := s.ScanOnce(context.Background())

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.Retried != 2 || summary.Failed != 1 || summary.Created != 1 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}
