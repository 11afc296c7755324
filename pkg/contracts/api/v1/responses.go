package api

import "alkalytics/pkg/contracts/domain"

// Status values shared by the responses.
const (
	StatusSuccess  = "success"
	StatusRepeated = "repeated"
)

// AmbiguousData reports a data file whose date matched several experiments.
// DataFile echoes the original payload so the client can resubmit it through
// the manual upload endpoint.
type AmbiguousData struct {
	DataID      string       `json:"dataId"`
	Date        string       `json:"date"`
	MatchingExp []string     `json:"matchingExp"`
	DataFile    *FilePayload `json:"dataFile,omitempty"`
}

// FileError reports a file that could not be read.
type FileError struct {
	SourceID string `json:"sourceId"`
	Message  string `json:"message"`
}

// UploadResponse summarizes a migration batch.
type UploadResponse struct {
	Status              string          `json:"status"`
	Message             string          `json:"message"`
	ImportedExperiments []string        `json:"importedExperiments"`
	DuplicatesSkipped   int             `json:"duplicatesSkipped"`
	DataSheetsImported  int             `json:"dataSheetsImported"`
	DataRecordsImported int             `json:"dataRecordsImported"`
	AmbiguousData       []AmbiguousData `json:"ambiguousData"`
	UnresolvedSheets    []string        `json:"unresolvedSheets"`
	FileErrors          []FileError     `json:"fileErrors"`
}

// ManualUploadResponse summarizes a manual link request.
type ManualUploadResponse struct {
	Status          string      `json:"status"`
	Message         string      `json:"message"`
	InsertedRecords int         `json:"insertedRecords"`
	FileErrors      []FileError `json:"fileErrors"`
}

// CalculateEfficienciesResponse reports one calculation. Metrics holds every
// stored metric for the key, null where a metric could not be computed;
// Failures names the metrics this request could not compute.
type CalculateEfficienciesResponse struct {
	Status          string              `json:"status"`
	Message         string              `json:"message"`
	ID              string              `json:"id"`
	ExperimentID    string              `json:"experimentId"`
	IntervalMinutes int                 `json:"timeIntervalMinutes"`
	Metrics         map[string]*float64 `json:"metrics"`
	Failures        map[string]string   `json:"failures,omitempty"`
}

// EfficienciesResponse lists stored efficiency records. Each record is the
// flat document: _id, experimentId, timeIntervalMinutes and its metrics.
type EfficienciesResponse struct {
	Status string                     `json:"status"`
	Data   []*domain.EfficiencyRecord `json:"data"`
}
