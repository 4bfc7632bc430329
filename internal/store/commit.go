package store

import "fmt"

// CommitBatch inserts all buffered rows from a BatchedStore within a single
// transaction. Fake (negative) document IDs are remapped to real IDs and
// link rows are rewritten to point at them.
//
// Insert order respects FK dependencies:
//  1. Documents (depend on build_id only, which is already real)
//  2. Links (depend on document_id)
//  3. Diagnostics (depend on build_id only)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	for _, doc := range batch.Documents {
		realID, err := insertDocumentTx(tx, &doc)
		if err != nil {
			return fmt.Errorf("commit batch: document %q: %w", doc.SourceFile, err)
		}
		fakeToReal[doc.ID] = realID
	}

	for _, l := range batch.Links {
		if l.DocumentID < 0 {
			realID, ok := fakeToReal[l.DocumentID]
			if !ok {
				return fmt.Errorf("commit batch: link %q: unknown document %d", l.Token, l.DocumentID)
			}
			l.DocumentID = realID
		}
		if _, err := insertLinkTx(tx, &l); err != nil {
			return fmt.Errorf("commit batch: link %q: %w", l.Token, err)
		}
	}

	for _, d := range batch.Diagnostics {
		if _, err := insertDiagnosticTx(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
