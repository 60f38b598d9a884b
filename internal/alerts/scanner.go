package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/medication"
	"github.com/haccare/emr-service/internal/workerpool"
	"github.com/rs/zerolog/log"
)

type TenantLister interface {
	ListActiveTenantIDs(ctx context.Context) ([]string, error)
}

type MedicationLister interface {
	ListActiveByTenant(ctx context.Context, sess db.Session, tenantID string) ([]medication.DueMedication, error)
}

// Scanner periodically raises medication alerts for every active tenant,
// one worker pool task per tenant.
type Scanner struct {
	tenants TenantLister
	meds    MedicationLister
	alerts  *Service
	pool    workerpool.Config
	now     func() time.Time
}

func NewScanner(tenants TenantLister, meds MedicationLister, alerts *Service, pool workerpool.Config) *Scanner {
	return &Scanner{tenants: tenants, meds: meds, alerts: alerts, pool: pool, now: time.Now}
}

// Run scans every interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("alert scanner started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("alert scanner stopped")
			return
		case <-ticker.C:
			if _, err := s.ScanOnce(ctx); err != nil {
				log.Error().Err(err).Msg("alert scan failed")
			}
		}
	}
}

// ScanOnce runs one pass over all active tenants.
func (s *Scanner) ScanOnce(ctx context.Context) (ScanSummary, error) {
	start := time.Now()

	ids, err := s.tenants.ListActiveTenantIDs(ctx)
	if err != nil {
		return ScanSummary{}, err
	}
	summary := ScanSummary{Tenants: len(ids)}
	if len(ids) == 0 {
		return summary, nil
	}

	cfg := s.pool
	if cfg.QueueSize < len(ids) {
		cfg.QueueSize = len(ids)
	}
	pool, err := workerpool.New(cfg, s.scanTask, log.Logger)
	if err != nil {
		return summary, err
	}
	pool.Start()

	for _, id := range ids {
		if err := pool.Submit(&workerpool.Task{ID: id, Payload: id, Context: ctx}); err != nil {
			log.Error().Err(err).Str("tenant_id", id).Msg("failed to queue tenant scan")
			summary.Failed++
		}
	}
	if err := pool.Stop(); err != nil {
		log.Warn().Err(err).Msg("alert scan did not finish cleanly")
	}
	summary.Retried = pool.Stats().TasksRetried

	for result := range pool.Results() {
		if !result.Success {
			summary.Failed++
			continue
		}
		if n, ok := result.Data.(int); ok {
			summary.Created += n
		}
	}

	summary.Elapsed = time.Since(start)
	log.Info().
		Int("tenants", summary.Tenants).
		Int("created", summary.Created).
		Int("failed", summary.Failed).
		Int64("retried", summary.Retried).
		Dur("elapsed", summary.Elapsed).
		Msg("alert scan complete")
	return summary, nil
}

func (s *Scanner) scanTask(ctx context.Context, task *workerpool.Task) *workerpool.Result {
	tenantID, _ := task.Payload.(string)
	n, err := s.ScanTenant(ctx, tenantID)
	if err != nil {
		return &workerpool.Result{Error: err}
	}
	return &workerpool.Result{Success: true, Data: n}
}

// ScanTenant classifies the tenant's active medications patient by patient
// and stores the resulting alerts. It returns how many were new.
func (s *Scanner) ScanTenant(ctx context.Context, tenantID string) (int, error) {
	start := time.Now()
	scope := SystemScope(tenantID)

	meds, err := s.meds.ListActiveByTenant(ctx, scope.Session(), tenantID)
	if err != nil {
		return 0, fmt.Errorf("tenant %s: %w", tenantID, err)
	}

	now := s.now()
	created := 0
	for _, group := range groupByPatient(meds) {
		c := medication.Classify(group.meds, now)
		for _, a := range DeriveMedicationAlerts(group.name, c, now) {
			_, isNew, err := s.alerts.Create(ctx, scope, a)
			if err != nil {
				return created, fmt.Errorf("tenant %s: %w", tenantID, err)
			}
			if isNew {
				created++
			}
		}
	}

	if s.alerts.metrics != nil {
		s.alerts.metrics.RecordAlertScan(ctx, tenantID, float64(time.Since(start).Milliseconds()))
	}
	return created, nil
}

type patientMeds struct {
	name string
	meds []medication.Medication
}

// groupByPatient keeps first-seen patient order.
func groupByPatient(meds []medication.DueMedication) []patientMeds {
	index := map[string]int{}
	var groups []patientMeds
	for _, m := range meds {
		i, ok := index[m.PatientID]
		if !ok {
			i = len(groups)
			index[m.PatientID] = i
			groups = append(groups, patientMeds{name: m.PatientName})
		}
		groups[i].meds = append(groups[i].meds, m.Medication)
	}
	return groups
}
