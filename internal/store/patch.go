package store

import (
	"fmt"
	"sort"

	"github.com/adrlog/adrlog/internal/record"
)

// Patch is a partial update of a record's content fields. Nil pointers
// mean "leave unchanged".
type Patch struct {
	Title          *string
	Context        *string
	Decision       *string
	Rationale      *string
	Assumptions    *[]string
	ExpectedResult *[]string
	Risks          *map[string]record.Risk
	Cost           *record.Cost
	Consequences   *record.Consequences
}

// Fields returns the sorted names of the fields the patch sets.
func (p Patch) Fields() []string {
	var names []string

	if p.Title != nil {
		names = append(names, "title")
	}

	if p.Context != nil {
		names = append(names, "context")
	}

	if p.Decision != nil {
		names = append(names, "decision")
	}

	if p.Rationale != nil {
		names = append(names, "rationale")
	}

	if p.Assumptions != nil {
		names = append(names, "assumptions")
	}

	if p.ExpectedResult != nil {
		names = append(names, "expected_result")
	}

	if p.Risks != nil {
		names = append(names, "risks")
	}

	if p.Cost != nil {
		names = append(names, "cost")
	}

	if p.Consequences != nil {
		names = append(names, "consequences")
	}

	sort.Strings(names)

	return names
}

func (p Patch) apply(rec *record.Record) {
	if p.Title != nil {
		rec.Title = *p.Title
	}

	if p.Context != nil {
		rec.Context = *p.Context
	}

	if p.Decision != nil {
		rec.Decision = *p.Decision
	}

	if p.Rationale != nil {
		rec.Rationale = *p.Rationale
	}

	if p.Assumptions != nil {
		rec.Assumptions = normalizeList(*p.Assumptions)
	}

	if p.ExpectedResult != nil {
		rec.ExpectedResult = normalizeList(*p.ExpectedResult)
	}

	if p.Risks != nil {
		rec.Risks = normalizeRisks(*p.Risks)
	}

	if p.Cost != nil {
		rec.Cost = record.Cost{
			OneOff:  normalizeList(p.Cost.OneOff),
			Ongoing: normalizeList(p.Cost.Ongoing),
		}
	}

	if p.Consequences != nil {
		rec.Consequences = record.Consequences{
			Positive: normalizeList(p.Consequences.Positive),
			Negative: normalizeList(p.Consequences.Negative),
		}
	}
}

// PatchFromFields converts a loosely-typed field map (as delivered by the
// tool boundary) into a Patch. Validation is all-or-nothing: any unknown
// field name or wrongly-typed value rejects the whole patch so no partial
// update is ever applied.
func PatchFromFields(fields map[string]any) (Patch, error) {
	var patch Patch

	for name := range fields {
		if !record.IsUpdatableField(name) {
			return Patch{}, fmt.Errorf("%w: field %q is not updatable", record.ErrInvalid, name)
		}
	}

	for name, value := range fields {
		if err := patch.setField(name, value); err != nil {
			return Patch{}, err
		}
	}

	return patch, nil
}

func (p *Patch) setField(name string, value any) error {
	switch name {
	case "title":
		return assignString(name, value, &p.Title)
	case "context":
		return assignString(name, value, &p.Context)
	case "decision":
		return assignString(name, value, &p.Decision)
	case "rationale":
		return assignString(name, value, &p.Rationale)
	case "assumptions":
		return assignStringList(name, value, &p.Assumptions)
	case "expected_result":
		return assignStringList(name, value, &p.ExpectedResult)
	case "risks":
		risks, err := coerceRisks(value)
		if err != nil {
			return err
		}

		p.Risks = &risks
	case "cost":
		oneOff, ongoing, err := coercePair(name, value, "one_off", "ongoing")
		if err != nil {
			return err
		}

		p.Cost = &record.Cost{OneOff: oneOff, Ongoing: ongoing}
	case "consequences":
		positive, negative, err := coercePair(name, value, "positive", "negative")
		if err != nil {
			return err
		}

		p.Consequences = &record.Consequences{Positive: positive, Negative: negative}
	}

	return nil
}

func assignString(name string, value any, dst **string) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: field %q must be a string", record.ErrInvalid, name)
	}

	*dst = &s

	return nil
}

func assignStringList(name string, value any, dst **[]string) error {
	list, err := coerceStringList(name, value)
	if err != nil {
		return err
	}

	*dst = &list

	return nil
}

func coerceStringList(name string, value any) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return typed, nil
	case []any:
		out := make([]string, 0, len(typed))

		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: field %q must be a list of strings", record.ErrInvalid, name)
			}

			out = append(out, s)
		}

		return out, nil
	}

	return nil, fmt.Errorf("%w: field %q must be a list of strings", record.ErrInvalid, name)
}

// coercePair reads a two-list object such as cost {one_off, ongoing} or
// consequences {positive, negative}.
func coercePair(name string, value any, firstKey, secondKey string) ([]string, []string, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: field %q must be an object with %q and %q lists",
			record.ErrInvalid, name, firstKey, secondKey)
	}

	for key := range obj {
		if key != firstKey && key != secondKey {
			return nil, nil, fmt.Errorf("%w: field %q has unknown key %q", record.ErrInvalid, name, key)
		}
	}

	first, err := coerceStringList(name+"."+firstKey, obj[firstKey])
	if err != nil {
		return nil, nil, err
	}

	second, err := coerceStringList(name+"."+secondKey, obj[secondKey])
	if err != nil {
		return nil, nil, err
	}

	return first, second, nil
}

func coerceRisks(value any) (map[string]record.Risk, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case map[string]record.Risk:
		return typed, nil
	case map[string]any:
		out := make(map[string]record.Risk, len(typed))

		for name, raw := range typed {
			risk, err := coerceRisk(name, raw)
			if err != nil {
				return nil, err
			}

			out[name] = risk
		}

		return out, nil
	}

	return nil, fmt.Errorf("%w: field \"risks\" must be an object of risk entries", record.ErrInvalid)
}

func coerceRisk(name string, value any) (record.Risk, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return record.Risk{}, fmt.Errorf("%w: risk %q must be an object", record.ErrInvalid, name)
	}

	impact, _ := obj["impact"].(string)
	mitigation, _ := obj["mitigation"].(string)

	rawProbability, ok := obj["probability"].(string)
	if !ok {
		return record.Risk{}, fmt.Errorf("%w: risk %q missing probability", record.ErrInvalid, name)
	}

	probability, err := record.ParseProbability(rawProbability)
	if err != nil {
		return record.Risk{}, err
	}

	return record.Risk{
		Impact:      impact,
		Probability: probability,
		Mitigation:  mitigation,
	}, nil
}
