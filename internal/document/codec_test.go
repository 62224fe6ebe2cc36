package document

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adrlog/adrlog/internal/record"
)

func fullRecord() record.Record {
	return record.Record{
		ID:        "cache_policy",
		Sequence:  1,
		Title:     "Adopt LRU eviction",
		Context:   "The cache grows without bound.\n\nMemory pressure kills the process under load.",
		Decision:  "Evict least-recently-used entries past a configurable cap.",
		Rationale: "LRU matches our access pattern and is cheap to implement.",
		Assumptions: []string{
			"access pattern stays read-heavy",
			"cap can be tuned per deployment",
		},
		ExpectedResult: []string{
			"memory stays below the cap",
			"hit rate drops by less than 5%",
		},
		Risks: map[string]record.Risk{
			"thrashing": {
				Impact:      "hit rate collapses under scan workloads",
				Probability: record.ProbabilityMed,
				Mitigation:  "add scan-resistant admission later",
			},
			"tuning_burden": {
				Impact:      "operators must pick a cap",
				Probability: record.ProbabilityLow,
				Mitigation:  "ship a sane default",
			},
		},
		Cost: record.Cost{
			OneOff:  []string{"two days of implementation"},
			Ongoing: []string{"cap tuning per deployment"},
		},
		Consequences: record.Consequences{
			Positive: []string{"bounded memory"},
			Negative: []string{"evictions add tail latency"},
		},
		Status: record.StatusProposed,
		Date:   "2026-08-23",
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(r *record.Record)
	}{
		{name: "full record", mutate: func(*record.Record) {}},
		{name: "accepted", mutate: func(r *record.Record) { r.Status = record.StatusAccepted }},
		{name: "rejected", mutate: func(r *record.Record) { r.Status = record.StatusRejected }},
		{name: "finished", mutate: func(r *record.Record) { r.Status = record.StatusFinished }},
		{name: "failed", mutate: func(r *record.Record) { r.Status = record.StatusFailed }},
		{
			name: "superseded carries reference",
			mutate: func(r *record.Record) {
				r.Status = record.StatusSuperseded
				r.SupersededBy = 7
			},
		},
		{
			name: "empty lists and risks",
			mutate: func(r *record.Record) {
				r.Assumptions = nil
				r.ExpectedResult = nil
				r.Risks = nil
				r.Cost = record.Cost{}
				r.Consequences = record.Consequences{}
			},
		},
		{
			name: "empty free text",
			mutate: func(r *record.Record) {
				r.Context = ""
				r.Decision = ""
				r.Rationale = ""
			},
		},
		{
			name: "multi-paragraph text survives",
			mutate: func(r *record.Record) {
				r.Rationale = "First paragraph.\n\nSecond paragraph after a blank line."
			},
		},
		{
			name: "markdown headings inside free text survive",
			mutate: func(r *record.Record) {
				r.Context = "Background:\n## Important caveat\nThe caveat text."
				r.Decision = "# Not a title\nStill the decision."
				r.Rationale = "### Notes\nKept as text."
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			want := fullRecord()
			tt.mutate(&want)

			got, err := Decode(Encode(want))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_Layout(t *testing.T) {
	t.Parallel()

	doc := string(Encode(fullRecord()))

	if !strings.HasPrefix(doc, "---\n") {
		t.Errorf("document must start with a frontmatter delimiter")
	}

	for _, want := range []string{
		"id: cache_policy",
		"sequence: 1",
		"status: Proposed",
		"# Adopt LRU eviction",
		"## Context",
		"## Decision",
		"## Rationale",
		"## Consequences",
		"### Positive",
		"### Negative",
		"## Risks",
		"- thrashing | hit rate collapses under scan workloads | MED | add scan-resistant admission later",
		"## Acceptance Criteria",
		"## Assumptions",
		"## Costs",
		"### One-off",
		"### Ongoing",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	// Sections render in the fixed order.
	order := []string{
		"## Context", "## Decision", "## Rationale", "## Consequences",
		"## Risks", "## Acceptance Criteria", "## Assumptions", "## Costs",
	}

	last := -1

	for _, heading := range order {
		pos := strings.Index(doc, heading)
		if pos < last {
			t.Errorf("section %q out of order", heading)
		}

		last = pos
	}
}

func TestEncode_SupersededStatusLine(t *testing.T) {
	t.Parallel()

	rec := fullRecord()
	rec.Status = record.StatusSuperseded
	rec.SupersededBy = 2

	doc := string(Encode(rec))

	if !strings.Contains(doc, "status: Superseded by 2") {
		t.Errorf("superseded status must render its reference:\n%s", doc)
	}
}

func TestDecode_MalformedRiskBulletsAreDropped(t *testing.T) {
	t.Parallel()

	rec := fullRecord()
	rec.Risks = map[string]record.Risk{
		"kept": {Impact: "impact", Probability: record.ProbabilityHigh, Mitigation: "mitigation"},
	}

	doc := string(Encode(rec))

	// A hand-edited bullet with the wrong shape and one with an unknown
	// probability must both disappear rather than fail the decode.
	doc = strings.Replace(doc, "## Risks\n\n",
		"## Risks\n\n- just a note without the delimiter layout\n- broken | impact | MAYBE | mitigation\n", 1)

	got, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(got.Risks) != 1 {
		t.Fatalf("expected 1 risk, got %d: %v", len(got.Risks), got.Risks)
	}

	if _, ok := got.Risks["kept"]; !ok {
		t.Errorf("well-formed risk bullet should survive")
	}
}

func TestDecode_MissingHeaderFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "no frontmatter", doc: "# Title\n\n## Context\n"},
		{name: "unterminated frontmatter", doc: "---\nid: x\n"},
		{name: "unknown status word", doc: "---\nid: x\nsequence: 1\nstatus: Pondering\ndate: \"2026-08-23\"\n---\n"},
		{name: "malformed superseded reference", doc: "---\nid: x\nsequence: 1\nstatus: Superseded by soon\ndate: \"2026-08-23\"\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected decode error")
			}

			if record.KindOf(err) != record.KindInvalid {
				t.Errorf("expected INVALID kind, got %s", record.KindOf(err))
			}
		})
	}
}

func TestDecode_HandEditedDocument(t *testing.T) {
	t.Parallel()

	doc := `---
id: search_backend
sequence: 4
status: Accepted
date: "2026-02-10"
---

# Use inverted index

## Context

Queries got slow.

## Decision

Build an inverted index.

## Rationale

## Consequences

### Positive

- fast lookups

### Negative

## Risks

- staleness | results lag writes | LOW | rebuild nightly

## Acceptance Criteria

- p99 under 50ms

## Assumptions

## Costs

### One-off

### Ongoing
`

	got, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := record.Record{
		ID:             "search_backend",
		Sequence:       4,
		Title:          "Use inverted index",
		Context:        "Queries got slow.",
		Decision:       "Build an inverted index.",
		ExpectedResult: []string{"p99 under 50ms"},
		Risks: map[string]record.Risk{
			"staleness": {Impact: "results lag writes", Probability: record.ProbabilityLow, Mitigation: "rebuild nightly"},
		},
		Consequences: record.Consequences{Positive: []string{"fast lookups"}},
		Status:       record.StatusAccepted,
		Date:         "2026-02-10",
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_UnknownHeadingsStayInFreeText(t *testing.T) {
	t.Parallel()

	rec := fullRecord()
	rec.Context = "Background:\n## Important caveat\nThe caveat text."

	got, err := Decode(Encode(rec))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.Context != rec.Context {
		t.Fatalf("heading line lost from free text:\ngot  %q\nwant %q", got.Context, rec.Context)
	}

	// A second encode/decode cycle, as a field update performs, must be
	// stable too.
	again, err := Decode(Encode(got))
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}

	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("second cycle mismatch (-first +second):\n%s", diff)
	}

	// Only the first H1 is the title; later ones are content.
	if got.Title != rec.Title {
		t.Errorf("title changed: got %q, want %q", got.Title, rec.Title)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	t.Parallel()

	rec := fullRecord()

	first := Encode(rec)

	for range 5 {
		if diff := cmp.Diff(string(first), string(Encode(rec))); diff != "" {
			t.Fatalf("encoding must be deterministic:\n%s", diff)
		}
	}
}
