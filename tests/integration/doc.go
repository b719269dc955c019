// Package integration runs the conversation and campus stores, and the full
// server, against real PostgreSQL, MongoDB and Redis instances started with
// testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
