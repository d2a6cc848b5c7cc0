// Package app wires the expense analytics service together and manages its
// lifecycle.
//
// # Initialization Flow
//
// NewApplication builds everything from a loaded config.Config:
//
//	1. OpenTelemetry providers and the application instruments
//	2. The WebSocket hub that pushes analysis events to dashboards
//	3. The analytics engine with the configured defaults
//	4. The optional Google Sheets source
//	5. The analysis, health and report services
//	6. The chi router and the HTTP server
//
// # Background Work
//
// Start launches the hub, a runtime metrics sampler and a periodic
// system.status broadcast before serving HTTP. StartBackground starts the
// same work without a listener, which is what tests use with httptest.
//
// # Graceful Shutdown
//
// Run stops on SIGINT or SIGTERM. Stop drains in-flight requests within
// Server.ShutdownTimeout, stops the background loops, disconnects WebSocket
// clients and flushes telemetry.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
