// Package index owns the single shared index artifact: sequence-number
// allocation, the per-record metadata projection, and the status lifecycle.
//
// Every mutation goes through one locked update of the index file, so
// concurrent callers are serialized into a total order and sequence
// allocation is free of lost-update races. Reads do not take the lock;
// because all writers rename a complete file into place, a reader observes
// either the old index or the new one, never a torn mix.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrlog/adrlog/internal/fstore"
	"github.com/adrlog/adrlog/internal/record"
)

// Filename is the name of the index artifact inside the base directory.
const Filename = "index.json"

// Manager allocates sequence numbers and enforces status transitions on
// the index artifact.
type Manager struct {
	fs   *fstore.Store
	path string
}

// NewManager returns a Manager for the index artifact under baseDir.
func NewManager(fs *fstore.Store, baseDir string) *Manager {
	return &Manager{
		fs:   fs,
		path: filepath.Join(baseDir, Filename),
	}
}

// Path returns the location of the index artifact.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the current index without taking the lock.
//
// An absent or unparseable index is returned as an empty one: the index
// must stay readable even when a crash or a hand edit corrupted it, and
// the next locked update rewrites it whole.
func (m *Manager) Load() (record.Index, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyIndex(), nil
		}

		return record.Index{}, fmt.Errorf("reading index: %w", err)
	}

	return decodeIndex(data), nil
}

// update applies fn to the index under the index lock and persists the
// result. Errors from fn propagate unchanged and nothing is written.
func (m *Manager) update(fn func(idx *record.Index) error) error {
	return m.fs.LockedUpdate(m.path, func(current []byte) ([]byte, error) {
		idx := decodeIndex(current)

		if err := fn(&idx); err != nil {
			return nil, err
		}

		next, err := json.MarshalIndent(idx, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding index: %w", err)
		}

		return append(next, '\n'), nil
	})
}

// decodeIndex parses index bytes, treating absent or corrupted content as
// an empty base state.
func decodeIndex(data []byte) record.Index {
	if len(data) == 0 {
		return emptyIndex()
	}

	var idx record.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return emptyIndex()
	}

	if idx.Items == nil {
		idx.Items = map[string]record.Meta{}
	}

	if idx.NextSequence < 1 {
		idx.NextSequence = 1
	}

	return idx
}

func emptyIndex() record.Index {
	return record.Index{NextSequence: 1, Items: map[string]record.Meta{}}
}

// Create allocates the next sequence number and inserts a new entry with
// status PROPOSED, all inside one locked update.
func (m *Manager) Create(id, title, date string) (record.Meta, error) {
	var meta record.Meta

	err := m.update(func(idx *record.Index) error {
		if _, exists := idx.Items[id]; exists {
			return fmt.Errorf("%w: %s", record.ErrAlreadyExists, id)
		}

		meta = record.Meta{
			Title:    title,
			ID:       id,
			Sequence: idx.NextSequence,
			Status:   record.StatusProposed,
			Date:     date,
		}

		idx.Items[id] = meta
		idx.NextSequence++

		return nil
	})
	if err != nil {
		return record.Meta{}, err
	}

	return meta, nil
}

// SetStatus performs a generic status transition.
//
// SUPERSEDED is never reachable this way; use [Manager.Supersede]. A record
// that is already superseded is terminal and rejects every transition.
// All other states are mutually reachable.
func (m *Manager) SetStatus(id string, next record.Status) (record.Meta, error) {
	if next == record.StatusSuperseded {
		return record.Meta{}, fmt.Errorf(
			"%w: status %s requires the supersede operation", record.ErrInvalid, next)
	}

	if _, err := record.ParseStatus(string(next)); err != nil {
		return record.Meta{}, err
	}

	var meta record.Meta

	err := m.update(func(idx *record.Index) error {
		item, exists := idx.Items[id]
		if !exists {
			return fmt.Errorf("%w: %s", record.ErrNotFound, id)
		}

		if item.Status == record.StatusSuperseded {
			return fmt.Errorf("%w: %s is superseded and immutable", record.ErrConflict, id)
		}

		item.Status = next
		idx.Items[id] = item
		meta = item

		return nil
	})
	if err != nil {
		return record.Meta{}, err
	}

	return meta, nil
}

// Supersede marks a record as replaced by another, referenced either by id
// or by sequence number. The transition is terminal.
func (m *Manager) Supersede(id, ref string) (record.Meta, error) {
	var meta record.Meta

	err := m.update(func(idx *record.Index) error {
		item, exists := idx.Items[id]
		if !exists {
			return fmt.Errorf("%w: %s", record.ErrNotFound, id)
		}

		if item.Status == record.StatusSuperseded {
			return fmt.Errorf("%w: %s is already superseded", record.ErrConflict, id)
		}

		successor, err := resolveRef(idx, ref)
		if err != nil {
			return err
		}

		if successor.ID == id {
			return fmt.Errorf("%w: record %s cannot supersede itself", record.ErrInvalid, id)
		}

		item.Status = record.StatusSuperseded
		item.SupersededBy = successor.Sequence
		idx.Items[id] = item
		meta = item

		return nil
	})
	if err != nil {
		return record.Meta{}, err
	}

	return meta, nil
}

// Rename synchronizes the index title projection after a field update.
func (m *Manager) Rename(id, title string) (record.Meta, error) {
	var meta record.Meta

	err := m.update(func(idx *record.Index) error {
		item, exists := idx.Items[id]
		if !exists {
			return fmt.Errorf("%w: %s", record.ErrNotFound, id)
		}

		item.Title = title
		idx.Items[id] = item
		meta = item

		return nil
	})
	if err != nil {
		return record.Meta{}, err
	}

	return meta, nil
}

// resolveRef resolves a superseding reference against the index. The
// reference may be a record id or a bare sequence number.
func resolveRef(idx *record.Index, ref string) (record.Meta, error) {
	if item, exists := idx.Items[ref]; exists {
		return item, nil
	}

	if seq, err := strconv.Atoi(ref); err == nil {
		for _, item := range idx.Items {
			if item.Sequence == seq {
				return item, nil
			}
		}
	}

	return record.Meta{}, fmt.Errorf("%w: superseding reference %q", record.ErrNotFound, ref)
}
