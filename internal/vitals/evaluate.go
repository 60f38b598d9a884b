package vitals

import "fmt"

const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Finding is one abnormal reading.
type Finding struct {
	Vital    string `json:"vital"`
	Value    string `json:"value"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// band is an abnormal range; crit* mark the critical extremes.
type band struct {
	low, high         float64
	critLow, critHigh float64
}

var (
	temperatureBand = band{low: 35, high: 38.5, critLow: 34, critHigh: 40}
	systolicBand    = band{low: 90, high: 180, critLow: 80, critHigh: 200}
	diastolicBand   = band{low: 60, high: 110, critLow: 50, critHigh: 120}
	heartRateBand   = band{low: 50, high: 120, critLow: 40, critHigh: 150}
	respiratoryBand = band{low: 10, high: 24, critLow: 8, critHigh: 30}
)

// spo2 has no upper limit.
const (
	spo2Low     = 90
	spo2CritLow = 85
)

func (b band) check(v float64) (string, string, bool) {
	switch {
	case v < b.critLow:
		return SeverityCritical, "low", true
	case v > b.critHigh:
		return SeverityCritical, "high", true
	case v < b.low:
		return SeverityWarning, "low", true
	case v > b.high:
		return SeverityWarning, "high", true
	}
	return "", "", false
}

// Evaluate returns the abnormal readings in v, in a fixed order.
func Evaluate(v VitalSigns) []Finding {
	var out []Finding
	add := func(vital, value string, b band, x float64) {
		if sev, dir, bad := b.check(x); bad {
			out = append(out, Finding{Vital: vital, Value: value, Severity: sev, Message: fmt.Sprintf("%s %s (%s)", vital, dir, value)})
		}
	}

	if v.Temperature != nil {
		add("temperature", fmt.Sprintf("%.1f°C", *v.Temperature), temperatureBand, *v.Temperature)
	}
	if v.Systolic != nil {
		add("systolic", fmt.Sprintf("%d mmHg", *v.Systolic), systolicBand, float64(*v.Systolic))
	}
	if v.Diastolic != nil {
		add("diastolic", fmt.Sprintf("%d mmHg", *v.Diastolic), diastolicBand, float64(*v.Diastolic))
	}
	if v.HeartRate != nil {
		add("heart_rate", fmt.Sprintf("%d bpm", *v.HeartRate), heartRateBand, float64(*v.HeartRate))
	}
	if v.RespiratoryRate != nil {
		add("respiratory_rate", fmt.Sprintf("%d/min", *v.RespiratoryRate), respiratoryBand, float64(*v.RespiratoryRate))
	}
	if v.OxygenSaturation != nil && *v.OxygenSaturation < spo2Low {
		sev := SeverityWarning
		if *v.OxygenSaturation < spo2CritLow {
			sev = SeverityCritical
		}
		value := fmt.Sprintf("%d%%", *v.OxygenSaturation)
		out = append(out, Finding{Vital: "oxygen_saturation", Value: value, Severity: sev, Message: "oxygen_saturation low (" + value + ")"})
	}
	return out
}

// worst returns the highest severity among findings.
func worst(findings []Finding) string {
	sev := ""
	for _, f := range findings {
		if f.Severity == SeverityCritical {
			return SeverityCritical
		}
		sev = f.Severity
	}
	return sev
}
