// Package testinfra starts throwaway PostgreSQL containers for integration
// tests. Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// Tests skip when Docker is not available.
package testinfra
