// Package http implements the HTTP handlers of the alkalytics API. Handlers
// are thin: they decode and validate the JSON body, call a service and
// render the result. Every failure goes through errors.ErrorHandler and
// comes back as an RFC 7807 problem document:
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "No files were provided",
//	    "instance": "/api/upload",
//	    "error_code": "NO_FILES"
//	}
//
// Routes are registered by the app package:
//
//	POST /api/upload                  UploadHandler.Upload
//	POST /api/manual-upload           UploadHandler.ManualUpload
//	POST /api/calculate-efficiencies  EfficiencyHandler.Calculate
//	GET  /api/efficiencies            EfficiencyHandler.List
//	GET  /api/health{,/ready,/live}   HealthHandler
//	POST /api/logs                    ClientLogHandler.Handle
//	GET  /metrics                     MetricsHandler
//
// Handlers depend on the service interfaces in interfaces.go, so tests
// drive them with testify mocks and httptest recorders.
package http
