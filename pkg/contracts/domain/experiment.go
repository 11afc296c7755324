package domain

import "time"

// Well-known document fields.
const (
	FieldDocID           = "_id"
	FieldExperimentID    = "experimentId"
	FieldDataSheetID     = "dataSheetId"
	FieldDate            = "Date"
	FieldTime            = "Time"
	FieldSeq             = "#"
	FieldNotes           = "Notes"
	FieldUploadTimestamp = "uploadTimestamp"
	FieldTimeInterval    = "timeIntervalMinutes"
)

// Collection names.
const (
	CollectionExperiments  = "experiments"
	CollectionData         = "data"
	CollectionEfficiencies = "efficiencies"
)

// Experiment is a stored experiment document. Its attributes are whatever
// columns the uploaded sheet carried.
type Experiment struct {
	*Record
}

// ID returns the experiment identity, e.g. "#3 2024-05-01".
func (e Experiment) ID() string { return e.Text(FieldExperimentID) }

// Date returns the canonical YYYY-MM-DD date.
func (e Experiment) Date() string { return e.Text(FieldDate) }

// Number returns a numeric attribute.
func (e Experiment) Number(field string) (float64, bool) {
	return e.Value(field).Float()
}

// DataRecord is one measurement row linked to an experiment.
type DataRecord struct {
	*Record
}

// SheetID returns the row identity, e.g. "#12 2024-05-01 10:05:00".
func (d DataRecord) SheetID() string { return d.Text(FieldDataSheetID) }

// ExperimentID returns the owning experiment identity
func (d DataRecord) ExperimentID() string { return d.Text(FieldExperimentID) }

// Time returns the sample timestamp when present
func (d DataRecord) Time() (time.Time, bool) {
	return d.Value(FieldTime).TimeValue()
}

// AmbiguousLink describes a data sheet whose date matched more than one
// experiment. It is returned to the caller and never persisted.
type AmbiguousLink struct {
	SourceID               string   `json:"sourceId"`
	Date                   string   `json:"date"`
	CandidateExperimentIDs []string `json:"candidateExperimentIds"`
}
