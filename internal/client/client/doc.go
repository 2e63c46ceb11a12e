// Package client contains the client-side building blocks for talking to a
// notesync server.
//
// # Overview
//
//  1. Client is the API contract the CLI services depend on: account calls,
//     Ping, Submit, Query, attachments, and the live feed with Ack.
//  2. GRPCClient implements it over gRPC. An interceptor injects the access
//     token and, when the server reports it expired, rotates the token pair
//     once and retries. Status codes are mapped to the sentinel errors below.
//  3. OpenDatabase and RunMigrations bootstrap the local SQLite cache with
//     embedded goose migrations.
//
// # Error Handling
//
// Callers match ErrUnavailable, ErrUnauthorized, ErrInvalidInput and
// ErrNotFound with errors.Is. ErrUnavailable is the only one worth retrying.
package client
