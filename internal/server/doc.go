// Package server implements the authenticated WebSocket relay.
//
// The implementation is split into the connection gate (credential checks
// before upgrade), the registry of admitted connections, the hub that fans
// chat messages out to every registered client, per-connection read/write
// pumps, and the HTTP handlers, routes and configuration glue around them.
package server
