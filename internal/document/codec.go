// Package document converts a structured record to its on-disk markdown
// form and back.
//
// A document is a YAML frontmatter header carrying identity and lifecycle
// metadata, followed by the title as an H1 and a fixed sequence of sections:
//
//	---
//	id: cache_policy
//	sequence: 1
//	status: Proposed
//	date: "2026-08-23"
//	---
//
//	# Adopt LRU eviction
//
//	## Context
//	...
//
// Encoding is deterministic, so regenerating a document from its record is
// idempotent and safe to re-run. Decoding a document produced by this
// package reproduces the record exactly. Decoding hand-edited documents is
// best-effort: risk bullets that do not match the expected shape are
// dropped rather than failing the whole read.
package document

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adrlog/adrlog/internal/record"
)

// Extension is the filename extension of record documents.
const Extension = ".md"

const frontmatterDelimiter = "---"

// Section headings, in render order.
const (
	headingContext      = "Context"
	headingDecision     = "Decision"
	headingRationale    = "Rationale"
	headingConsequences = "Consequences"
	headingPositive     = "Positive"
	headingNegative     = "Negative"
	headingRisks        = "Risks"
	headingAcceptance   = "Acceptance Criteria"
	headingAssumptions  = "Assumptions"
	headingCosts        = "Costs"
	headingOneOff       = "One-off"
	headingOngoing      = "Ongoing"
)

// supersededPrefix introduces the status rendering of a superseded record.
const supersededPrefix = "Superseded by "

// header is the frontmatter metadata block. Field values mirror the
// record's index entry after every successful mutation.
type header struct {
	ID       string `yaml:"id"`
	Sequence int    `yaml:"sequence"`
	Status   string `yaml:"status"`
	Date     string `yaml:"date"`
}

// Encode renders a record as its persisted document.
func Encode(rec record.Record) []byte {
	var b strings.Builder

	head := header{
		ID:       rec.ID,
		Sequence: rec.Sequence,
		Status:   displayStatus(rec),
		Date:     rec.Date,
	}

	headYAML, err := yaml.Marshal(head)
	if err != nil {
		// A flat struct of scalars cannot fail to marshal.
		panic(fmt.Sprintf("marshaling document header: %v", err))
	}

	b.WriteString(frontmatterDelimiter + "\n")
	b.Write(headYAML)
	b.WriteString(frontmatterDelimiter + "\n")

	b.WriteString("\n# " + rec.Title + "\n")

	writeTextSection(&b, headingContext, rec.Context)
	writeTextSection(&b, headingDecision, rec.Decision)
	writeTextSection(&b, headingRationale, rec.Rationale)

	b.WriteString("\n## " + headingConsequences + "\n")
	writeListSubsection(&b, headingPositive, rec.Consequences.Positive)
	writeListSubsection(&b, headingNegative, rec.Consequences.Negative)

	b.WriteString("\n## " + headingRisks + "\n")
	writeRisks(&b, rec.Risks)

	writeListSection(&b, headingAcceptance, rec.ExpectedResult)
	writeListSection(&b, headingAssumptions, rec.Assumptions)

	b.WriteString("\n## " + headingCosts + "\n")
	writeListSubsection(&b, headingOneOff, rec.Cost.OneOff)
	writeListSubsection(&b, headingOngoing, rec.Cost.Ongoing)

	return []byte(b.String())
}

// displayStatus renders the status for the header: a capitalized word,
// except superseded records which carry their replacement's sequence number.
func displayStatus(rec record.Record) string {
	if rec.Status == record.StatusSuperseded {
		return supersededPrefix + strconv.Itoa(rec.SupersededBy)
	}

	return rec.Status.Display()
}

func writeTextSection(b *strings.Builder, heading, text string) {
	b.WriteString("\n## " + heading + "\n")

	if text != "" {
		b.WriteString("\n" + text + "\n")
	}
}

func writeListSection(b *strings.Builder, heading string, items []string) {
	b.WriteString("\n## " + heading + "\n")
	writeBullets(b, items)
}

func writeListSubsection(b *strings.Builder, heading string, items []string) {
	b.WriteString("\n### " + heading + "\n")
	writeBullets(b, items)
}

func writeBullets(b *strings.Builder, items []string) {
	if len(items) == 0 {
		return
	}

	b.WriteString("\n")

	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
}

// writeRisks renders one bullet per risk in a fixed pipe-delimited layout,
// sorted by risk name so encoding is deterministic.
func writeRisks(b *strings.Builder, risks map[string]record.Risk) {
	if len(risks) == 0 {
		return
	}

	names := make([]string, 0, len(risks))
	for name := range risks {
		names = append(names, name)
	}

	sort.Strings(names)

	b.WriteString("\n")

	for _, name := range names {
		risk := risks[name]
		b.WriteString(fmt.Sprintf("- %s | %s | %s | %s\n",
			name, risk.Impact, risk.Probability, risk.Mitigation))
	}
}

// Decode parses a persisted document back into a record.
//
// The header must be present and well-formed; the body is scanned
// section-by-section. Free-text sections accumulate their lines verbatim
// (trimmed of leading/trailing blank lines), list sections collect bullet
// lines with the marker stripped, and risk bullets that do not match the
// name | impact | probability | mitigation layout are silently dropped.
//
// Only the fixed section headings are structural: a heading-prefixed line
// whose name is not one of them stays part of the surrounding free text,
// so records whose context or rationale contain markdown headings survive
// the round trip. A free-text line spelling a fixed heading exactly is
// indistinguishable from structure; that ambiguity is inherent to the
// format.
func Decode(data []byte) (record.Record, error) {
	head, body, err := splitFrontmatter(string(data))
	if err != nil {
		return record.Record{}, err
	}

	var rec record.Record

	rec.ID = head.ID
	rec.Sequence = head.Sequence
	rec.Date = head.Date

	rec.Status, rec.SupersededBy, err = parseStatusDisplay(head.Status)
	if err != nil {
		return record.Record{}, err
	}

	parseBody(&rec, body)

	return rec, nil
}

// splitFrontmatter separates the YAML header from the markdown body.
func splitFrontmatter(content string) (header, string, error) {
	var head header

	rest, found := strings.CutPrefix(content, frontmatterDelimiter+"\n")
	if !found {
		return head, "", fmt.Errorf("%w: document missing frontmatter header", record.ErrInvalid)
	}

	headYAML, body, found := strings.Cut(rest, "\n"+frontmatterDelimiter+"\n")
	if !found {
		return head, "", fmt.Errorf("%w: document frontmatter not terminated", record.ErrInvalid)
	}

	if err := yaml.Unmarshal([]byte(headYAML), &head); err != nil {
		return head, "", fmt.Errorf("%w: parsing document header: %v", record.ErrInvalid, err)
	}

	return head, body, nil
}

// parseStatusDisplay inverts [displayStatus].
func parseStatusDisplay(s string) (record.Status, int, error) {
	if ref, found := strings.CutPrefix(s, supersededPrefix); found {
		seq, err := strconv.Atoi(strings.TrimSpace(ref))
		if err != nil {
			return "", 0, fmt.Errorf("%w: malformed superseded reference %q", record.ErrInvalid, s)
		}

		return record.StatusSuperseded, seq, nil
	}

	status, err := record.ParseStatus(s)
	if err != nil {
		return "", 0, err
	}

	return status, 0, nil
}

// section identifies where the body scanner currently is.
type section struct {
	heading    string
	subheading string
}

// subheadings maps each sectioned heading to the subheadings it owns.
var subheadings = map[string][]string{
	headingConsequences: {headingPositive, headingNegative},
	headingCosts:        {headingOneOff, headingOngoing},
}

// knownHeading reports whether name is one of the fixed section headings.
func knownHeading(name string) bool {
	switch name {
	case headingContext, headingDecision, headingRationale,
		headingConsequences, headingRisks, headingAcceptance,
		headingAssumptions, headingCosts:
		return true
	}

	return false
}

// knownSubheading reports whether name is a subheading of the current
// section.
func knownSubheading(heading, name string) bool {
	return slices.Contains(subheadings[heading], name)
}

func parseBody(rec *record.Record, body string) {
	var (
		cur   section
		lines = strings.Split(body, "\n")
		text  = map[string][]string{}
	)

	for _, line := range lines {
		if title, found := strings.CutPrefix(line, "# "); found && rec.Title == "" {
			rec.Title = strings.TrimSpace(title)

			continue
		}

		if name, found := strings.CutPrefix(line, "## "); found {
			if trimmed := strings.TrimSpace(name); knownHeading(trimmed) {
				cur = section{heading: trimmed}

				continue
			}
		}

		if name, found := strings.CutPrefix(line, "### "); found {
			if trimmed := strings.TrimSpace(name); knownSubheading(cur.heading, trimmed) {
				cur.subheading = trimmed

				continue
			}
		}

		consumeLine(rec, cur, line, text)
	}

	rec.Context = joinText(text[headingContext])
	rec.Decision = joinText(text[headingDecision])
	rec.Rationale = joinText(text[headingRationale])
}

// consumeLine routes one non-heading body line into the record field the
// current section owns.
func consumeLine(rec *record.Record, cur section, line string, text map[string][]string) {
	bullet, isBullet := strings.CutPrefix(line, "- ")

	switch cur.heading {
	case headingContext, headingDecision, headingRationale:
		text[cur.heading] = append(text[cur.heading], line)
	case headingConsequences:
		if !isBullet {
			return
		}

		switch cur.subheading {
		case headingPositive:
			rec.Consequences.Positive = append(rec.Consequences.Positive, bullet)
		case headingNegative:
			rec.Consequences.Negative = append(rec.Consequences.Negative, bullet)
		}
	case headingRisks:
		if isBullet {
			addRiskBullet(rec, bullet)
		}
	case headingAcceptance:
		if isBullet {
			rec.ExpectedResult = append(rec.ExpectedResult, bullet)
		}
	case headingAssumptions:
		if isBullet {
			rec.Assumptions = append(rec.Assumptions, bullet)
		}
	case headingCosts:
		if !isBullet {
			return
		}

		switch cur.subheading {
		case headingOneOff:
			rec.Cost.OneOff = append(rec.Cost.OneOff, bullet)
		case headingOngoing:
			rec.Cost.Ongoing = append(rec.Cost.Ongoing, bullet)
		}
	}
}

// riskBulletParts is the fixed layout of a risk bullet:
// name | impact | probability | mitigation.
const riskBulletParts = 4

// addRiskBullet parses one risk bullet. Bullets that do not match the
// expected shape are dropped; decode of hand-edited documents is
// best-effort by contract.
func addRiskBullet(rec *record.Record, bullet string) {
	parts := strings.Split(bullet, " | ")
	if len(parts) != riskBulletParts {
		return
	}

	probability, err := record.ParseProbability(parts[2])
	if err != nil {
		return
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return
	}

	if rec.Risks == nil {
		rec.Risks = map[string]record.Risk{}
	}

	rec.Risks[name] = record.Risk{
		Impact:      parts[1],
		Probability: probability,
		Mitigation:  parts[3],
	}
}

// joinText reassembles a free-text section, preserving interior blank lines
// but trimming the padding the encoder adds around the section.
func joinText(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
