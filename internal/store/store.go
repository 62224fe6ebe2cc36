// Package store is the facade over the locked file store, the index
// manager and the document codec. It implements create, get, update,
// supersede and list, keeping the index (system of record for status and
// sequence) and the per-record document (human-readable projection) in
// sync after every mutation.
//
// A single record's index entry and document are updated under two
// separate lock acquisitions, not one transaction. A crash between the two
// can leave them transiently inconsistent; because the document render is
// a pure function of the record, re-running the rendering repairs it.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrlog/adrlog/internal/document"
	"github.com/adrlog/adrlog/internal/fstore"
	"github.com/adrlog/adrlog/internal/index"
	"github.com/adrlog/adrlog/internal/record"
)

const dirPerms = 0o755

// Store orchestrates record persistence under one base directory.
type Store struct {
	fs  *fstore.Store
	idx *index.Manager
	dir string
}

// Open initializes the on-disk layout under dir if absent and returns a
// Store for it.
func Open(dir string) (*Store, error) {
	return OpenWithTimeout(dir, fstore.DefaultLockTimeout)
}

// OpenWithTimeout is [Open] with an explicit lock-acquisition budget.
func OpenWithTimeout(dir string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	fs := fstore.NewWithTimeout(lockTimeout)

	return &Store{
		fs:  fs,
		idx: index.NewManager(fs, dir),
		dir: dir,
	}, nil
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.dir
}

// DocumentPath returns the path of the record's document file.
func (s *Store) DocumentPath(id string) string {
	return filepath.Join(s.dir, id+document.Extension)
}

// Index returns the current index snapshot (lock-free read).
func (s *Store) Index() (record.Index, error) {
	return s.idx.Load()
}

// CreateParams carries the caller-supplied fields of a new record.
type CreateParams struct {
	ID             string
	Title          string
	Context        string
	Decision       string
	Rationale      string
	Assumptions    []string
	ExpectedResult []string
	Risks          map[string]record.Risk
	Cost           record.Cost
	Consequences   record.Consequences
}

// Create validates the id, allocates a sequence number in the index and
// writes the record's document. The document-existence check runs before
// the index lock so a doomed request does not burn a sequence number; the
// window between that check and the lock is a documented limitation, and
// the in-lock duplicate check still protects the index itself.
func (s *Store) Create(params CreateParams) (record.Record, error) {
	if err := record.ValidateID(params.ID); err != nil {
		return record.Record{}, err
	}

	docPath := s.DocumentPath(params.ID)
	if _, err := os.Stat(docPath); err == nil {
		return record.Record{}, fmt.Errorf("%w: %s", record.ErrAlreadyExists, params.ID)
	}

	meta, err := s.idx.Create(params.ID, params.Title, record.Today())
	if err != nil {
		return record.Record{}, err
	}

	rec := record.Record{
		ID:             meta.ID,
		Sequence:       meta.Sequence,
		Title:          params.Title,
		Context:        params.Context,
		Decision:       params.Decision,
		Rationale:      params.Rationale,
		Assumptions:    normalizeList(params.Assumptions),
		ExpectedResult: normalizeList(params.ExpectedResult),
		Risks:          normalizeRisks(params.Risks),
		Cost: record.Cost{
			OneOff:  normalizeList(params.Cost.OneOff),
			Ongoing: normalizeList(params.Cost.Ongoing),
		},
		Consequences: record.Consequences{
			Positive: normalizeList(params.Consequences.Positive),
			Negative: normalizeList(params.Consequences.Negative),
		},
		Status: meta.Status,
		Date:   meta.Date,
	}

	if err := s.fs.AtomicWrite(docPath, document.Encode(rec)); err != nil {
		return record.Record{}, err
	}

	return rec, nil
}

// Get reads and decodes a record's document. Reads take no lock: the
// temp-then-rename write discipline guarantees a fully-old or fully-new
// document, never a torn one.
func (s *Store) Get(id string) (record.Record, error) {
	data, err := s.Document(id)
	if err != nil {
		return record.Record{}, err
	}

	return document.Decode(data)
}

// Document returns the raw document bytes of a record.
func (s *Store) Document(id string) ([]byte, error) {
	data, err := os.ReadFile(s.DocumentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", record.ErrNotFound, id)
		}

		return nil, fmt.Errorf("reading document: %w", err)
	}

	return data, nil
}

// UpdateStatus performs a generic status transition, then re-renders the
// document so its header matches the index entry.
func (s *Store) UpdateStatus(id string, status record.Status) (record.Meta, error) {
	meta, err := s.idx.SetStatus(id, status)
	if err != nil {
		return record.Meta{}, err
	}

	if err := s.rewriteDocument(id, func(rec *record.Record) {
		rec.Status = meta.Status
		rec.SupersededBy = 0
	}); err != nil {
		return record.Meta{}, err
	}

	return meta, nil
}

// Supersede marks a record as replaced by another (referenced by id or
// sequence number) and re-renders its document.
func (s *Store) Supersede(id, ref string) (record.Meta, error) {
	meta, err := s.idx.Supersede(id, ref)
	if err != nil {
		return record.Meta{}, err
	}

	if err := s.rewriteDocument(id, func(rec *record.Record) {
		rec.Status = record.StatusSuperseded
		rec.SupersededBy = meta.SupersededBy
	}); err != nil {
		return record.Meta{}, err
	}

	return meta, nil
}

// Update patches a record's content fields. Superseded records are
// immutable; the whole patch is validated before anything is written.
//
// The supersede check runs twice: once lock-free for a fast rejection,
// and again under the document lock. A supersede commits its index entry
// before rewriting the document, so re-reading both inside the lock
// catches one that landed after the first check.
func (s *Store) Update(id string, patch Patch) (record.Record, error) {
	idx, err := s.idx.Load()
	if err != nil {
		return record.Record{}, err
	}

	meta, exists := idx.Items[id]
	if !exists {
		return record.Record{}, fmt.Errorf("%w: %s", record.ErrNotFound, id)
	}

	if meta.Status == record.StatusSuperseded {
		return record.Record{}, fmt.Errorf("%w: %s is superseded and immutable", record.ErrConflict, id)
	}

	var updated record.Record

	err = s.fs.LockedUpdate(s.DocumentPath(id), func(current []byte) ([]byte, error) {
		if len(current) == 0 {
			return nil, fmt.Errorf("%w: document for %s", record.ErrNotFound, id)
		}

		rec, decodeErr := document.Decode(current)
		if decodeErr != nil {
			return nil, decodeErr
		}

		cur, loadErr := s.idx.Load()
		if loadErr != nil {
			return nil, loadErr
		}

		if item, ok := cur.Items[id]; ok && item.Status == record.StatusSuperseded {
			return nil, fmt.Errorf("%w: %s is superseded and immutable", record.ErrConflict, id)
		}

		if rec.Status == record.StatusSuperseded {
			return nil, fmt.Errorf("%w: %s is superseded and immutable", record.ErrConflict, id)
		}

		patch.apply(&rec)
		updated = rec

		return document.Encode(rec), nil
	})
	if err != nil {
		return record.Record{}, err
	}

	if patch.Title != nil && *patch.Title != meta.Title {
		if _, err := s.idx.Rename(id, *patch.Title); err != nil {
			return record.Record{}, err
		}
	}

	return updated, nil
}

// rewriteDocument re-renders a record's document under its lock after an
// index mutation. The mutate hook carries the already-committed index
// change into the document projection.
func (s *Store) rewriteDocument(id string, mutate func(rec *record.Record)) error {
	return s.fs.LockedUpdate(s.DocumentPath(id), func(current []byte) ([]byte, error) {
		if len(current) == 0 {
			return nil, fmt.Errorf("%w: document for %s", record.ErrNotFound, id)
		}

		rec, err := document.Decode(current)
		if err != nil {
			return nil, err
		}

		mutate(&rec)

		return document.Encode(rec), nil
	})
}

func normalizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}

	return items
}

func normalizeRisks(risks map[string]record.Risk) map[string]record.Risk {
	if len(risks) == 0 {
		return nil
	}

	return risks
}
