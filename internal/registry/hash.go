package registry

import (
	"crypto/sha256"
	"fmt"
)

// ComputeSnapshotHash computes a deterministic hash over the resolvable part
// of a set of records: identifier, canonical path and title. Source files and
// generations do NOT affect the hash, so two builds that would resolve every
// token identically hash the same.
func ComputeSnapshotHash(records []Record) string {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sortRecords(sorted)

	h := sha256.New()
	for _, rec := range sorted {
		fmt.Fprintf(h, "id:%s\n", rec.Identifier)
		fmt.Fprintf(h, "path:%s\n", rec.CanonicalPath)
		fmt.Fprintf(h, "title:%s\n", rec.Title)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Hash fingerprints the current registry contents.
func (r *Registry) Hash() string {
	return ComputeSnapshotHash(r.Snapshot())
}
