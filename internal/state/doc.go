// Package state provides typed access to promobot's durable documents.
//
// It layers three things on top of the raw storage.Store:
//   - Typed records (Tenant, Target, Schedule, PostedRecord) with a single
//     validated normalization step at the load boundary. Legacy documents that
//     carry "id" instead of "key" are normalized here and nowhere else.
//   - Per-document mutexes so every read-modify-write of a document is
//     serialized within the process. The store itself has no transactions;
//     without this, two overlapping ticks could drop an update.
//   - Stable schedule id generation (time-ordered prefix + random suffix).
package state
