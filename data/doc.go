// Package data implements the typed value model of the event store.
//
// Every cell of an ingested event is a Data: a tagged variant covering nil,
// bool, integer, count, real, string, pattern, address, subnet, time,
// duration, enumeration, list, map, and record. Types mirror the variant and
// may carry attributes; a Schema is a named set of record types.
//
// The representation is designed to make predicate evaluation fast and
// predictable: no reflection and no fmt-based stringification on hot paths.
package data
