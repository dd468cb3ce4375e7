// Package store provides the expiring key/value store that holds every piece
// of in-flight authorization state: device sessions, their status, and the
// token records used for revocation and lookup.
//
// Two implementations are provided. RedisStore is the production backend and
// MemoryStore serves tests and single-process development. Both distinguish a
// missing key (ErrNotFound) from a failing backend (ErrUnavailable).
package store
