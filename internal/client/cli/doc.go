// Package cli provides the notesync command-line client.
//
// It wires configuration, the local SQLite cache and the gRPC client into a
// set of cobra commands. Typical flow: register or login once, then post
// entries, read history and follow the live feed with tail.
//
// Key features:
//   - register / login / logout, with tokens cached and refreshed
//   - post with optional file attachments
//   - history with filters, answered from the cache when offline
//   - tail, a live feed that reconnects and resumes after drops
//   - attach / fetch for raw attachments
//
// The command tree is built by NewRootCommand.
package cli
