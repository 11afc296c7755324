// Package api contains the HTTP request and response contracts of the
// alkalytics backend. Field names match the JSON the lab frontend sends.
package api

// FilePayload is an uploaded file encoded as base64. Content may carry a
// data URL prefix ("data:...;base64,").
type FilePayload struct {
	Filename string `json:"filename" validate:"required,max=255"`
	Mimetype string `json:"mimetype,omitempty"`
	Content  string `json:"content" validate:"required,base64payload"`
}

// UploadRequest carries one migration batch.
type UploadRequest struct {
	ExperimentFiles []FilePayload `json:"experimentFiles" validate:"omitempty,dive"`
	DataFiles       []FilePayload `json:"dataFiles" validate:"omitempty,dive"`
}

// LinkedFilePayload is a data file the operator has assigned to an experiment.
type LinkedFilePayload struct {
	FilePayload
	LinkedID string `json:"linkedId" validate:"required"`
}

// ManualUploadRequest carries operator resolved links.
type ManualUploadRequest struct {
	LinkedData []LinkedFilePayload `json:"linkedData" validate:"omitempty,dive"`
}

// CalculateEfficienciesRequest asks for a set of metrics over one interval.
// A nil TimeInterval selects the configured default.
type CalculateEfficienciesRequest struct {
	ExperimentID         string   `json:"experimentId" validate:"required"`
	SelectedEfficiencies []string `json:"selectedEfficiencies" validate:"required,min=1,dive,required"`
	TimeInterval         *int     `json:"timeInterval,omitempty"`
}

// ClientLogRequest is a log entry forwarded by the frontend.
type ClientLogRequest struct {
	Level   string         `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Message string         `json:"message" validate:"required,max=2000"`
	Data    map[string]any `json:"data,omitempty"`
	Source  string         `json:"source,omitempty"`
}
