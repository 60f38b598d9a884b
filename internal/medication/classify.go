package medication

import "time"

// DueSoonWindow is how far ahead a scheduled dose counts as due.
const DueSoonWindow = time.Hour

type Classification struct {
	DueSoon []Medication
	Overdue []Medication
	PRN     []Medication
}

// Classify partitions the active medications in meds relative to now.
//
// A dose is overdue once next_due has passed and due-soon from now until
// DueSoonWindow ahead, both ends inclusive. PRN medications are listed
// separately and are never due. Medications that are not active, or have no
// next_due, fall in no partition.
func Classify(meds []Medication, now time.Time) Classification {
	var c Classification
	horizon := now.Add(DueSoonWindow)

	for _, m := range meds {
		if m.Status != StatusActive {
			continue
		}
		if m.Category == CategoryPRN {
			c.PRN = append(c.PRN, m)
			continue
		}
		if m.NextDue == nil {
			continue
		}
		switch due := *m.NextDue; {
		case due.Before(now):
			c.Overdue = append(c.Overdue, m)
		case !due.After(horizon):
			c.DueSoon = append(c.DueSoon, m)
		}
	}
	return c
}
