package alerts

import (
	"fmt"
	"time"

	"github.com/haccare/emr-service/internal/medication"
)

// DeriveMedicationAlerts turns one patient's classification into alerts.
// Overdue doses are high priority; doses due within the hour are medium and
// expire at their due time, when the overdue alert takes over. The source id
// names the medication and the dose, so each dose alerts at most once while
// open.
func DeriveMedicationAlerts(patientName string, c medication.Classification, now time.Time) []Alert {
	out := make([]Alert, 0, len(c.Overdue)+len(c.DueSoon))

	for _, m := range c.Overdue {
		due := *m.NextDue
		out = append(out, Alert{
			TenantID:    m.TenantID,
			PatientID:   m.PatientID,
			PatientName: patientName,
			Type:        TypeMedicationOverdue,
			SourceID:    doseSource(m),
			Message: fmt.Sprintf("%s %s for %s is overdue by %s (due %s)",
				m.Name, m.Dosage, patientName, now.Sub(due).Round(time.Minute), due.Format("15:04")),
			Priority: PriorityHigh,
		})
	}

	for _, m := range c.DueSoon {
		due := *m.NextDue
		expires := due
		out = append(out, Alert{
			TenantID:    m.TenantID,
			PatientID:   m.PatientID,
			PatientName: patientName,
			Type:        TypeMedicationDue,
			SourceID:    doseSource(m),
			Message: fmt.Sprintf("%s %s for %s is due at %s",
				m.Name, m.Dosage, patientName, due.Format("15:04")),
			Priority:  PriorityMedium,
			ExpiresAt: &expires,
		})
	}
	return out
}

func doseSource(m medication.Medication) string {
	return fmt.Sprintf("%s@%d", m.ID, m.NextDue.Unix())
}
