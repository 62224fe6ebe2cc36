// Package record defines the decision-record data model: the record itself,
// the shared index that allocates sequence numbers, the status lifecycle,
// and the stable error kinds surfaced at the tool boundary.
package record

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a record.
type Status string

// Status values. Superseded is terminal and reachable only through the
// dedicated supersede operation.
const (
	StatusProposed   Status = "PROPOSED"
	StatusAccepted   Status = "ACCEPTED"
	StatusRejected   Status = "REJECTED"
	StatusFinished   Status = "FINISHED"
	StatusFailed     Status = "FAILED"
	StatusSuperseded Status = "SUPERSEDED"
)

// statuses lists every valid status.
var statuses = []Status{
	StatusProposed, StatusAccepted, StatusRejected,
	StatusFinished, StatusFailed, StatusSuperseded,
}

// ParseStatus converts a string into a Status, accepting any case.
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(statuses, candidate) {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalid, s)
	}

	return candidate, nil
}

// Display renders a status as a capitalized word ("Proposed", "Accepted").
// Superseded records render with their reference instead; see the document
// codec.
func (s Status) Display() string {
	str := string(s)
	if str == "" {
		return ""
	}

	return strings.ToUpper(str[:1]) + strings.ToLower(str[1:])
}

// Probability grades a risk's likelihood.
type Probability string

// Probability values.
const (
	ProbabilityLow  Probability = "LOW"
	ProbabilityMed  Probability = "MED"
	ProbabilityHigh Probability = "HIGH"
)

// ParseProbability converts a string into a Probability, accepting any case.
func ParseProbability(s string) (Probability, error) {
	candidate := Probability(strings.ToUpper(strings.TrimSpace(s)))

	switch candidate {
	case ProbabilityLow, ProbabilityMed, ProbabilityHigh:
		return candidate, nil
	}

	return "", fmt.Errorf("%w: unknown probability %q", ErrInvalid, s)
}

// Risk describes one named risk of a decision.
type Risk struct {
	Impact      string      `json:"impact"`
	Probability Probability `json:"probability"`
	Mitigation  string      `json:"mitigation"`
}

// Cost splits the expected cost of a decision into one-off and ongoing items.
type Cost struct {
	OneOff  []string `json:"one_off"`
	Ongoing []string `json:"ongoing"`
}

// Consequences splits the expected consequences into positive and negative.
type Consequences struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

// Record is one decision-log entry with full structured content.
//
// The index is the system of record for Status, Sequence and SupersededBy;
// the per-record document is a human-readable projection kept in sync after
// each mutation.
type Record struct {
	ID             string
	Sequence       int
	Title          string
	Context        string
	Decision       string
	Rationale      string
	Assumptions    []string
	ExpectedResult []string
	Risks          map[string]Risk
	Cost           Cost
	Consequences   Consequences
	Status         Status
	SupersededBy   int // sequence number of the replacement, 0 when unset
	Date           string
}

// DateFormat is the calendar-day granularity used for record dates.
const DateFormat = "2006-01-02"

// Today returns the current date at calendar-day granularity.
func Today() string {
	return time.Now().UTC().Format(DateFormat)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateFormat, s)

	return err == nil
}

// idPattern matches valid record ids: lowercase letters, digits and
// underscores, 3-65 characters, first character a letter.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,64}$`)

// ValidateID checks a caller-supplied record id.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: id %q must match %s", ErrInvalid, id, idPattern)
	}

	return nil
}

// updatableFields is the fixed allow-list for the field-update operation.
// Identity, sequence, status and date are never patchable.
var updatableFields = []string{
	"title", "context", "decision", "rationale",
	"assumptions", "risks", "cost", "consequences", "expected_result",
}

// IsUpdatableField reports whether the named field may be patched.
func IsUpdatableField(name string) bool {
	return slices.Contains(updatableFields, name)
}

// Meta is the lightweight index projection of a record.
type Meta struct {
	Title        string `json:"title"`
	ID           string `json:"id"`
	Sequence     int    `json:"sequence_number"`
	Status       Status `json:"status"`
	Date         string `json:"date"`
	SupersededBy int    `json:"superseded_by,omitempty"`
}

// Index is the single shared artifact holding sequence allocation state and
// per-record metadata.
//
// Invariants: every item's sequence number is below NextSequence, sequence
// numbers are pairwise distinct, and NextSequence only ever increases.
type Index struct {
	NextSequence int             `json:"next_sequence"`
	Items        map[string]Meta `json:"items"`
}
