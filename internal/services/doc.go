// Package services implements the business logic behind the HTTP API.
// Handlers decode and validate requests, then hand them to a service;
// services own scratch files, archiving and the calls into the migration
// engine and the efficiency cache.
//
// # Services
//
//	- UploadService: decodes uploaded spreadsheets and runs a migration batch
//	- EfficiencyService: computes, caches and lists efficiency records
//	- HealthService: liveness, readiness (store ping) and version reporting
//
// # Error Handling
//
// Services return *errors.AppError or *errors.APIError values. The HTTP
// layer turns both into problem responses through errors.ErrorHandler, so a
// service never writes status codes itself.
//
// # Testing
//
// Services are tested against the in-memory document store, or with a
// testify mock where the collaborator is an interface:
//
//	m := &mockMigrator{}
//	m.On("ImportBatch", mock.Anything, mock.Anything, mock.Anything).Return(result, nil)
//	svc := NewUploadService(m, archive.Nop{}, t.TempDir(), logger)
package services
