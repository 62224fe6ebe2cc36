package store

import (
	"fmt"
	"sort"

	"github.com/adrlog/adrlog/internal/record"
)

// DefaultPageSize is used when a list query does not set one.
const DefaultPageSize = 20

// ListQuery filters and paginates the index.
type ListQuery struct {
	Status   record.Status // exact match, empty means all
	From, To string        // inclusive YYYY-MM-DD bounds, empty means open
	Page     int           // 1-based, defaults to 1
	PageSize int           // defaults to DefaultPageSize
}

// Pagination describes the slice a list result covers.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ListResult is one page of index entries.
type ListResult struct {
	Items      []record.Meta `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// List returns index entries filtered by exact status and inclusive date
// range, sorted by date descending (same-day ties by sequence descending),
// then sliced to the requested page.
func (s *Store) List(q ListQuery) (ListResult, error) {
	if err := validateListQuery(q); err != nil {
		return ListResult{}, err
	}

	if q.Status != "" {
		// validated above; canonicalize case for the exact-match filter
		q.Status, _ = record.ParseStatus(string(q.Status))
	}

	page := q.Page
	if page == 0 {
		page = 1
	}

	pageSize := q.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	idx, err := s.idx.Load()
	if err != nil {
		return ListResult{}, err
	}

	matches := make([]record.Meta, 0, len(idx.Items))

	for _, item := range idx.Items {
		if q.Status != "" && item.Status != q.Status {
			continue
		}

		// YYYY-MM-DD compares correctly as a string.
		if q.From != "" && item.Date < q.From {
			continue
		}

		if q.To != "" && item.Date > q.To {
			continue
		}

		matches = append(matches, item)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Date != matches[j].Date {
			return matches[i].Date > matches[j].Date
		}

		return matches[i].Sequence > matches[j].Sequence
	})

	total := len(matches)

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	return ListResult{
		Items: matches[start:end],
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1 && total > 0,
		},
	}, nil
}

func validateListQuery(q ListQuery) error {
	if q.Page < 0 || q.PageSize < 0 {
		return fmt.Errorf("%w: page and page_size must be positive", record.ErrInvalid)
	}

	if q.Status != "" {
		if _, err := record.ParseStatus(string(q.Status)); err != nil {
			return err
		}
	}

	for _, bound := range []string{q.From, q.To} {
		if bound != "" && !record.ValidDate(bound) {
			return fmt.Errorf("%w: date bound %q must be YYYY-MM-DD", record.ErrInvalid, bound)
		}
	}

	return nil
}
