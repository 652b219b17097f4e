// Package eventgo is an embedded, typed event-telemetry store.
//
// Semi-structured security and network events (CSV, NDJSON, ...) are
// normalized into a typed columnar representation, persisted into immutable
// segments, and indexed per column with lossy synopses and exact value
// indexes. Boolean expressions over fields push down to partitions and
// stream matching table slices back.
//
// The Store facade ties the layers together: readers produce slices, an
// active partition absorbs them until capacity, sealing writes the
// partition directory through the filesystem actor, and queries fan out
// over sealed partitions.
package eventgo
