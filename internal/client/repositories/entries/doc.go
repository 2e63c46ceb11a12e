// Package entries is the client's local cache of committed entries.
//
// Entries arrive from the server already numbered; the cache stores them by
// id so replays after a reconnect are harmless. History commands fall back
// to the cache when the server cannot be reached.
package entries
