package domain

import "fmt"

// Efficiency metric names. These strings are stored as document fields and
// sent by clients, so they must not change.
const (
	MetricCurrentEfficiencyHCl  = "Current Efficiency (HCl)"
	MetricCurrentEfficiencyNaOH = "Current Efficiency (NaOH)"
	MetricVoltageDrop           = "Voltage Drop Efficiency"
	MetricReaction              = "Reaction Efficiency"
	MetricOverall               = "Overall Efficiency"
)

// AllMetrics lists the metrics in presentation order.
var AllMetrics = []string{
	MetricCurrentEfficiencyHCl,
	MetricCurrentEfficiencyNaOH,
	MetricVoltageDrop,
	MetricReaction,
	MetricOverall,
}

// ComponentMetrics are the inputs of the overall efficiency.
var ComponentMetrics = AllMetrics[:4]

// IsMetric reports whether name is a known metric
func IsMetric(name string) bool {
	for _, m := range AllMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// EfficiencyKey builds the cache key for an experiment and interval.
func EfficiencyKey(experimentID string, intervalMinutes int) string {
	return fmt.Sprintf("%s %d", experimentID, intervalMinutes)
}

// EfficiencyRecord is the memoized result set for one experiment and
// interval. A metric mapped to nil was attempted and is not computable; a
// metric absent from the map was never requested.
type EfficiencyRecord struct {
	ID              string              `json:"_id"`
	ExperimentID    string              `json:"experimentId"`
	IntervalMinutes int                 `json:"timeIntervalMinutes"`
	Metrics         map[string]*float64 `json:"-"`
}

// Computed returns the metric value when it holds a number.
func (e *EfficiencyRecord) Computed(metric string) (float64, bool) {
	v, ok := e.Metrics[metric]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// ToRecord renders the record as a document with fields in presentation order.
func (e *EfficiencyRecord) ToRecord() *Record {
	r := NewRecord(
		FieldDocID, e.ID,
		FieldExperimentID, e.ExperimentID,
		FieldTimeInterval, e.IntervalMinutes,
	)
	for _, m := range AllMetrics {
		if v, ok := e.Metrics[m]; ok {
			r.Set(m, ValueOf(v))
		}
	}
	return r
}

// EfficiencyFromRecord parses a stored efficiency document.
func EfficiencyFromRecord(r *Record) *EfficiencyRecord {
	out := &EfficiencyRecord{
		ID:           r.Text(FieldDocID),
		ExperimentID: r.Text(FieldExperimentID),
		Metrics:      make(map[string]*float64),
	}
	if n, ok := r.Value(FieldTimeInterval).Float(); ok {
		out.IntervalMinutes = int(n)
	}
	for _, m := range AllMetrics {
		v, ok := r.Get(m)
		if !ok {
			continue
		}
		if f, isNum := v.Float(); isNum {
			out.Metrics[m] = &f
		} else {
			out.Metrics[m] = nil
		}
	}
	return out
}

// MarshalJSON writes the document form
func (e *EfficiencyRecord) MarshalJSON() ([]byte, error) {
	return e.ToRecord().MarshalJSON()
}
