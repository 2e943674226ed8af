// Package tokenstore persists the session of one client.
//
// A Store is a thin wrapper over a key-value Backend holding four keys:
// the session token, the refresh token, the cached user profile (JSON) and
// an authenticated flag. Backends decide where the keys live:
//
//   - MemoryBackend: process memory, lost on restart. Useful in tests.
//   - FileBackend: a JSON document on disk, written atomically.
//   - S3Backend: one JSON object in a bucket, shared between hosts.
//   - redisstore.Backend: one Redis hash, shared between hosts.
//
// Clear removes every key in a single backend call while holding the
// store's write lock, so concurrent readers never see half a session.
//
// The pending redirect target is deliberately not part of the Store: it is
// volatile per-tab state and lives in Pending, which is never persisted.
package tokenstore
