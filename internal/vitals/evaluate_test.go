package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ip(n int) *int         { return &n }
func fp(f float64) *float64 { return &f }

// TestEvaluate_Thresholds tests each vital against its warning and critical bounds
func TestEvaluate_Thresholds(t *testing.T) {
	tests := []struct {
		name     string
		vitals   VitalSigns
		vital    string
		severity string
	}{
		{"systolic high", VitalSigns{Systolic: ip(185), Diastolic: ip(80)}, "systolic", SeverityWarning},
		{"systolic critical", VitalSigns{Systolic: ip(210), Diastolic: ip(80)}, "systolic", SeverityCritical},
		{"systolic low", VitalSigns{Systolic: ip(85), Diastolic: ip(65)}, "systolic", SeverityWarning},
		{"diastolic high", VitalSigns{Systolic: ip(150), Diastolic: ip(115)}, "diastolic", SeverityWarning},
		{"diastolic low", VitalSigns{Systolic: ip(120), Diastolic: ip(55)}, "diastolic", SeverityWarning},
		{"tachycardia", VitalSigns{HeartRate: ip(130)}, "heart_rate", SeverityWarning},
		{"bradycardia critical", VitalSigns{HeartRate: ip(35)}, "heart_rate", SeverityCritical},
		{"fever", VitalSigns{Temperature: fp(38.9)}, "temperature", SeverityWarning},
		{"hypothermia", VitalSigns{Temperature: fp(34.5)}, "temperature", SeverityWarning},
		{"hyperpyrexia", VitalSigns{Temperature: fp(40.5)}, "temperature", SeverityCritical},
		{"tachypnea", VitalSigns{RespiratoryRate: ip(26)}, "respiratory_rate", SeverityWarning},
		{"bradypnea", VitalSigns{RespiratoryRate: ip(9)}, "respiratory_rate", SeverityWarning},
		{"hypoxia", VitalSigns{OxygenSaturation: ip(88)}, "oxygen_saturation", SeverityWarning},
		{"severe hypoxia", VitalSigns{OxygenSaturation: ip(80)}, "oxygen_saturation", SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Evaluate(tt.vitals)
			if assert.Len(t, findings, 1) {
				assert.Equal(t, tt.vital, findings[0].Vital)
				assert.Equal(t, tt.severity, findings[0].Severity)
			}
		})
	}
}

// TestEvaluate_BoundariesAreNormal tests that the threshold values themselves do not flag
func TestEvaluate_BoundariesAreNormal(t *testing.T) {
	v := VitalSigns{
		Temperature:      fp(38.5),
		Systolic:         ip(180),
		Diastolic:        ip(110),
		HeartRate:        ip(50),
		RespiratoryRate:  ip(24),
		OxygenSaturation: ip(90),
	}
	assert.Empty(t, Evaluate(v))

	low := VitalSigns{Temperature: fp(35), Systolic: ip(90), Diastolic: ip(60), HeartRate: ip(120), RespiratoryRate: ip(10)}
	assert.Empty(t, Evaluate(low))
}

// TestEvaluate_MultipleFindings tests ordering and message text
func TestEvaluate_MultipleFindings(t *testing.T) {
	findings := Evaluate(VitalSigns{Systolic: ip(190), Diastolic: ip(100), OxygenSaturation: ip(84)})

	if assert.Len(t, findings, 2) {
		assert.Equal(t, "systolic high (190 mmHg)", findings[0].Message)
		assert.Equal(t, "oxygen_saturation low (84%)", findings[1].Message)
	}
	assert.Equal(t, SeverityCritical, worst(findings))
	assert.Equal(t, SeverityWarning, worst(findings[:1]))
	assert.Equal(t, "", worst(nil))
}

// TestRecordVitalsRequest_Validate tests input validation
func TestRecordVitalsRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  RecordVitalsRequest
		want error
	}{
		{"empty", RecordVitalsRequest{}, ErrNoReadings},
		{"systolic only", RecordVitalsRequest{Systolic: ip(120)}, ErrIncompleteBloodPressure},
		{"diastolic above systolic", RecordVitalsRequest{Systolic: ip(80), Diastolic: ip(90)}, ErrImplausibleReading},
		{"temperature typo", RecordVitalsRequest{Temperature: fp(370)}, ErrImplausibleReading},
		{"spo2 over 100", RecordVitalsRequest{OxygenSaturation: ip(101)}, ErrImplausibleReading},
		{"heart rate zero", RecordVitalsRequest{HeartRate: ip(0)}, ErrImplausibleReading},
		{"full set", RecordVitalsRequest{Temperature: fp(36.8), Systolic: ip(120), Diastolic: ip(80), HeartRate: ip(72), RespiratoryRate: ip(16), OxygenSaturation: ip(98)}, nil},
		{"abnormal but plausible", RecordVitalsRequest{OxygenSaturation: ip(82)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.req.Validate(), tt.want)
		})
	}
}
