package vitals

import "time"

type VitalSigns struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	PatientID        string    `json:"patient_id"`
	Temperature      *float64  `json:"temperature,omitempty"`
	Systolic         *int      `json:"systolic,omitempty"`
	Diastolic        *int      `json:"diastolic,omitempty"`
	HeartRate        *int      `json:"heart_rate,omitempty"`
	RespiratoryRate  *int      `json:"respiratory_rate,omitempty"`
	OxygenSaturation *int      `json:"oxygen_saturation,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
	RecordedBy       string    `json:"recorded_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type RecordVitalsRequest struct {
	Temperature      *float64   `json:"temperature"`
	Systolic         *int       `json:"systolic"`
	Diastolic        *int       `json:"diastolic"`
	HeartRate        *int       `json:"heart_rate"`
	RespiratoryRate  *int       `json:"respiratory_rate"`
	OxygenSaturation *int       `json:"oxygen_saturation"`
	RecordedAt       *time.Time `json:"recorded_at,omitempty"`
}

// plausible bounds reject typing errors, not abnormal values.
func (r *RecordVitalsRequest) Validate() error {
	if r.Temperature == nil && r.Systolic == nil && r.Diastolic == nil &&
		r.HeartRate == nil && r.RespiratoryRate == nil && r.OxygenSaturation == nil {
		return ErrNoReadings
	}
	if (r.Systolic == nil) != (r.Diastolic == nil) {
		return ErrIncompleteBloodPressure
	}
	if r.Temperature != nil && (*r.Temperature < 25 || *r.Temperature > 45) {
		return ErrImplausibleReading
	}
	checks := []struct {
		v        *int
		min, max int
	}{
		{r.Systolic, 40, 300},
		{r.Diastolic, 20, 200},
		{r.HeartRate, 20, 300},
		{r.RespiratoryRate, 2, 80},
		{r.OxygenSaturation, 40, 100},
	}
	for _, c := range checks {
		if c.v != nil && (*c.v < c.min || *c.v > c.max) {
			return ErrImplausibleReading
		}
	}
	if r.Systolic != nil && *r.Systolic <= *r.Diastolic {
		return ErrImplausibleReading
	}
	return nil
}

// RecordResult is a stored reading with whatever it triggered.
type RecordResult struct {
	Vitals   *VitalSigns `json:"vitals"`
	Findings []Finding   `json:"findings"`
	AlertID  string      `json:"alert_id,omitempty"`
}

type VitalsListResponse struct {
	Success bool         `json:"success"`
	Vitals  []VitalSigns `json:"vitals"`
	Count   int          `json:"count"`
}
