// Package app wires the alkalytics server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from environment and config.yaml
//	2. Initialize logging and OpenTelemetry
//	3. Open the document store (memory, sqlite or postgres)
//	4. Create the migration engine, the efficiency cache and the services
//	5. Register handlers and middleware on a chi router
//	6. Start the HTTP server and wait for a signal
//
// # Usage
//
//	a, err := app.NewApplication(ctx)
//	if err != nil {
//	    return err
//	}
//	return a.Run()
//
// Tests build the application with New and a config that selects the
// memory store, then drive a.Router through httptest.
package app
