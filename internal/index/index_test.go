package index

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/adrlog/adrlog/internal/fstore"
	"github.com/adrlog/adrlog/internal/record"
)

func newManager(t *testing.T) *Manager {
	t.Helper()

	return NewManager(fstore.New(), t.TempDir())
}

func TestCreate_SequencesAreGapless(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	for i, id := range []string{"first", "second", "third"} {
		meta, err := m.Create(id, "title "+id, "2026-08-23")
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", id, err)
		}

		if meta.Sequence != i+1 {
			t.Errorf("expected sequence %d for %s, got %d", i+1, id, meta.Sequence)
		}

		if meta.Status != record.StatusProposed {
			t.Errorf("new record should be PROPOSED, got %s", meta.Status)
		}
	}

	idx, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if idx.NextSequence != 4 {
		t.Errorf("expected next_sequence 4, got %d", idx.NextSequence)
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	if _, err := m.Create("cache_policy", "first", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := m.Create("cache_policy", "again", "2026-08-23")
	if !errors.Is(err, record.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// The failed create must not have burned a sequence number.
	meta, err := m.Create("other", "other", "2026-08-23")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if meta.Sequence != 2 {
		t.Errorf("expected sequence 2, got %d", meta.Sequence)
	}
}

func TestCreate_ConcurrentCallersGetDistinctSequences(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	const callers = 16

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	seqs := make([]int, 0, callers)

	for n := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			meta, err := m.Create("rec_"+string(rune('a'+n)), "title", "2026-08-23")
			if err != nil {
				t.Errorf("Create failed: %v", err)

				return
			}

			mu.Lock()
			seqs = append(seqs, meta.Sequence)
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(seqs) != callers {
		t.Fatalf("expected %d sequences, got %d", callers, len(seqs))
	}

	sort.Ints(seqs)

	for i, seq := range seqs {
		if seq != i+1 {
			t.Fatalf("sequences must be distinct and gapless, got %v", seqs)
		}
	}
}

func TestSetStatus_Transitions(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	if _, err := m.Create("rec", "title", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Every non-terminal state is reachable from every other, in any order.
	for _, next := range []record.Status{
		record.StatusAccepted,
		record.StatusFinished,
		record.StatusFailed,
		record.StatusRejected,
		record.StatusProposed,
		record.StatusAccepted,
	} {
		meta, err := m.SetStatus("rec", next)
		if err != nil {
			t.Fatalf("SetStatus(%s) failed: %v", next, err)
		}

		if meta.Status != next {
			t.Errorf("expected status %s, got %s", next, meta.Status)
		}
	}
}

func TestSetStatus_SupersededIsUnreachable(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	if _, err := m.Create("rec", "title", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := m.SetStatus("rec", record.StatusSuperseded)
	if !errors.Is(err, record.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for generic SUPERSEDED transition, got %v", err)
	}
}

func TestSetStatus_Errors(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	if _, err := m.Create("rec", "title", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.SetStatus("missing", record.StatusAccepted); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}

	if _, err := m.SetStatus("rec", record.Status("PONDERING")); !errors.Is(err, record.ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown status, got %v", err)
	}
}

func TestSupersede_ByIDAndBySequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
	}{
		{name: "by id", ref: "successor"},
		{name: "by sequence", ref: "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newManager(t)

			if _, err := m.Create("old", "old title", "2026-08-23"); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			if _, err := m.Create("successor", "new title", "2026-08-23"); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			meta, err := m.Supersede("old", tt.ref)
			if err != nil {
				t.Fatalf("Supersede failed: %v", err)
			}

			if meta.Status != record.StatusSuperseded {
				t.Errorf("expected SUPERSEDED, got %s", meta.Status)
			}

			if meta.SupersededBy != 2 {
				t.Errorf("expected superseded_by 2, got %d", meta.SupersededBy)
			}
		})
	}
}

func TestSupersede_Errors(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	if _, err := m.Create("old", "old", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Create("successor", "new", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Supersede("missing", "successor"); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown record, got %v", err)
	}

	if _, err := m.Supersede("old", "nobody"); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown reference, got %v", err)
	}

	if _, err := m.Supersede("old", "old"); !errors.Is(err, record.ErrInvalid) {
		t.Errorf("expected ErrInvalid for self-supersede, got %v", err)
	}

	// Self-supersede through the sequence number spelling too.
	if _, err := m.Supersede("old", "1"); !errors.Is(err, record.ErrInvalid) {
		t.Errorf("expected ErrInvalid for self-supersede by sequence, got %v", err)
	}
}

func TestSupersededIsTerminal(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	if _, err := m.Create("old", "old", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Create("successor", "new", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Supersede("old", "successor"); err != nil {
		t.Fatalf("Supersede failed: %v", err)
	}

	if _, err := m.SetStatus("old", record.StatusAccepted); !errors.Is(err, record.ErrConflict) {
		t.Errorf("expected ErrConflict on transition out of SUPERSEDED, got %v", err)
	}

	if _, err := m.Supersede("old", "successor"); !errors.Is(err, record.ErrConflict) {
		t.Errorf("expected ErrConflict on double supersede, got %v", err)
	}
}

func TestLoad_ToleratesAbsentAndCorruptIndex(t *testing.T) {
	t.Parallel()

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		m := newManager(t)

		idx, err := m.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if idx.NextSequence != 1 || len(idx.Items) != 0 {
			t.Errorf("absent index should load empty, got %+v", idx)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		m := NewManager(fstore.New(), dir)

		if err := os.WriteFile(filepath.Join(dir, Filename), []byte("{not json"), 0o644); err != nil {
			t.Fatalf("writing corrupt index: %v", err)
		}

		idx, err := m.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if idx.NextSequence != 1 || len(idx.Items) != 0 {
			t.Errorf("corrupt index should load empty, got %+v", idx)
		}

		// The next mutation rewrites the artifact whole.
		meta, err := m.Create("fresh", "title", "2026-08-23")
		if err != nil {
			t.Fatalf("Create after corruption failed: %v", err)
		}

		if meta.Sequence != 1 {
			t.Errorf("expected sequence 1 after reset, got %d", meta.Sequence)
		}
	})
}

func TestRename_UpdatesTitleProjection(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	if _, err := m.Create("rec", "before", "2026-08-23"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	meta, err := m.Rename("rec", "after")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if meta.Title != "after" {
		t.Errorf("expected title %q, got %q", "after", meta.Title)
	}

	if _, err := m.Rename("missing", "x"); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
