package record

import (
	"errors"

	"github.com/adrlog/adrlog/internal/fstore"
)

// Sentinel errors for business-rule violations. They are wrapped with %w
// throughout the stack and matched with errors.Is; the tool boundary maps
// them to stable kinds via [KindOf].
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInvalid       = errors.New("invalid argument")
	ErrConflict      = errors.New("conflicting update")
)

// Kind is a stable machine-readable error category carried across the tool
// boundary so the adapter can shape responses without inspecting free text.
type Kind string

// Kind values.
const (
	KindNotFound      Kind = "NOT_FOUND"
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	KindInvalid       Kind = "INVALID"
	KindConflict      Kind = "CONFLICT"
	KindIO            Kind = "IO"
)

// KindOf classifies an error into its stable kind. Lock exhaustion counts
// as a conflict (another writer held the artifact for the whole retry
// budget); anything unclassified is an I/O failure.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	case errors.Is(err, ErrConflict), errors.Is(err, fstore.ErrWouldBlock):
		return KindConflict
	default:
		return KindIO
	}
}
