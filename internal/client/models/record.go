// Package models defines the data shapes shared by the cache, the remote
// store adapter, and the synchronization core: health records, the per-user
// document, the user profile, and the session.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Record is an opaque health record: a medication, an appointment, or a
// vital reading. The synchronization layer never inspects domain fields;
// it only guarantees an identifier and a creation timestamp are present.
type Record map[string]any

// NewRecord returns a copy of fields with "id" and "createdAt" filled in
// when absent. The id is a random UUID, the timestamp is RFC 3339 UTC.
func NewRecord(fields map[string]any) Record {
	r := make(Record, len(fields)+2)
	for k, v := range fields {
		r[k] = v
	}
	if _, ok := r["id"]; !ok {
		r["id"] = uuid.NewString()
	}
	if _, ok := r["createdAt"]; !ok {
		r["createdAt"] = time.Now().UTC().Format(time.RFC3339)
	}
	return r
}

// ID returns the record identifier, or "" if the record has none.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// CloneRecords returns a shallow copy of the collection slice. Records
// themselves are shared; callers must treat them as immutable.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
