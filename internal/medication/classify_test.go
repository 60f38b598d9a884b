package medication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var classifyNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func med(id, category, status string, due *time.Time) Medication {
	return Medication{ID: id, Category: category, Status: status, Frequency: "Q4H", NextDue: due}
}

func at(d time.Duration) *time.Time {
	t := classifyNow.Add(d)
	return &t
}

func ids(meds []Medication) []string {
	out := make([]string, 0, len(meds))
	for _, m := range meds {
		out = append(out, m.ID)
	}
	return out
}

// TestClassify_Partitions tests each partition boundary
func TestClassify_Partitions(t *testing.T) {
	meds := []Medication{
		med("past", CategoryScheduled, StatusActive, at(-time.Minute)),
		med("now", CategoryScheduled, StatusActive, at(0)),
		med("soon", CategoryScheduled, StatusActive, at(30*time.Minute)),
		med("edge", CategoryScheduled, StatusActive, at(time.Hour)),
		med("later", CategoryScheduled, StatusActive, at(time.Hour+time.Second)),
		med("drip", CategoryContinuous, StatusActive, at(-2*time.Hour)),
		med("prn", CategoryPRN, StatusActive, nil),
		med("nodue", CategoryScheduled, StatusActive, nil),
	}

	c := Classify(meds, classifyNow)

	assert.Equal(t, []string{"past", "drip"}, ids(c.Overdue))
	assert.Equal(t, []string{"now", "soon", "edge"}, ids(c.DueSoon))
	assert.Equal(t, []string{"prn"}, ids(c.PRN))
}

// TestClassify_PastScheduledIsOverdue tests that any non-PRN dose in the past is overdue
func TestClassify_PastScheduledIsOverdue(t *testing.T) {
	for _, d := range []time.Duration{-time.Nanosecond, -time.Hour, -72 * time.Hour} {
		c := Classify([]Medication{med("m", CategoryScheduled, StatusActive, at(d))}, classifyNow)
		assert.Len(t, c.Overdue, 1, "offset %s", d)
		assert.Empty(t, c.DueSoon)
	}
}

// TestClassify_PRNNeverDue tests PRN medications even with a stale due time
func TestClassify_PRNNeverDue(t *testing.T) {
	c := Classify([]Medication{med("prn", CategoryPRN, StatusActive, at(-time.Hour))}, classifyNow)

	assert.Empty(t, c.Overdue)
	assert.Empty(t, c.DueSoon)
	assert.Len(t, c.PRN, 1)
}

// TestClassify_SkipsInactive tests that discontinued and completed medications are ignored
func TestClassify_SkipsInactive(t *testing.T) {
	meds := []Medication{
		med("stopped", CategoryScheduled, StatusDiscontinued, at(-time.Hour)),
		med("done", CategoryScheduled, StatusCompleted, at(10*time.Minute)),
		med("prn-stopped", CategoryPRN, StatusDiscontinued, nil),
	}

	c := Classify(meds, classifyNow)

	assert.Empty(t, c.Overdue)
	assert.Empty(t, c.DueSoon)
	assert.Empty(t, c.PRN)
}

// TestClassify_Empty tests the zero value for no input
func TestClassify_Empty(t *testing.T) {
	c := Classify(nil, classifyNow)
	assert.Nil(t, c.Overdue)
	assert.Nil(t, c.DueSoon)
	assert.Nil(t, c.PRN)
}
