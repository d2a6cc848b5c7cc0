// Package services implements the business logic between the HTTP handlers
// and the analytics engine.
//
// AnalysisService keeps normalized dataset snapshots in an in-memory cache
// with a sliding expiry, deduplicates uploads by content fingerprint and
// runs the engine with the overall series and every category analyzed in
// parallel. Runs are traced, counted and announced to websocket clients.
//
// HealthService reports liveness, readiness and runtime statistics.
package services
