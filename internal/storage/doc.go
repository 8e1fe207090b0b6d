// Package storage provides the durable persistence layer used by promobot.
//
// It is a whole-document key/value store: callers read and write complete
// JSON documents (tenant list, per-tenant target list, per-tenant cooldown
// map, schedule list, per-tenant posted-record list). There are no partial
// updates and no query language; read-modify-write serialization is the
// caller's responsibility (see internal/state).
package storage
