// Package services implements the CLI's use cases on top of the gRPC client
// and the local SQLite cache: signing in, posting and reading history,
// attachments, and the live follow loop.
package services
