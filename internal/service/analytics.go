package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/taleval/taleval/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ParseIDList parses a filter value of positive integer ids separated by
// commas or dashes, e.g. "1,2,3" or "1-2-3". An empty value means no
// filter. Any non-positive or non-numeric element rejects the whole list.
func ParseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '-'
	})
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIDFilter, raw)
	}
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIDFilter, raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AnalyticsParams carries the raw request values of an analytics query
type AnalyticsParams struct {
	PromptIDs    string
	MetricIDs    string
	ModelIDs     string
	TestCaseIDs  string
	BenchmarkIDs string
	Group        string
	Strategy     string
	Page         string
	PageSize     string
}

// AnalyticsQuery is a validated analytics request
type AnalyticsQuery struct {
	Filter   model.ResultFilter
	Group    GroupDimension
	Strategy Strategy
	Page     int
	PageSize int
}

// ParseAnalyticsParams validates raw request values into a query. Scoping
// to explicit benchmark ids disables deduplication, since the caller is
// asking about those runs specifically.
func ParseAnalyticsParams(p AnalyticsParams) (AnalyticsQuery, error) {
	var q AnalyticsQuery
	var err error

	if q.Filter.PromptIDs, err = ParseIDList(p.PromptIDs); err != nil {
		return q, err
	}
	if q.Filter.MetricIDs, err = ParseIDList(p.MetricIDs); err != nil {
		return q, err
	}
	if q.Filter.ModelIDs, err = ParseIDList(p.ModelIDs); err != nil {
		return q, err
	}
	if q.Filter.TestCaseIDs, err = ParseIDList(p.TestCaseIDs); err != nil {
		return q, err
	}
	if q.Filter.BenchmarkIDs, err = ParseIDList(p.BenchmarkIDs); err != nil {
		return q, err
	}

	if q.Group, err = ParseGroupDimension(p.Group); err != nil {
		return q, err
	}
	if q.Strategy, err = ParseStrategy(p.Strategy); err != nil {
		return q, err
	}
	if len(q.Filter.BenchmarkIDs) > 0 {
		q.Strategy = StrategyAll
	}

	q.Page = 1
	if p.Page != "" {
		n, err := strconv.Atoi(p.Page)
		if err != nil || n < 1 {
			return q, fmt.Errorf("%w: page %q", ErrInvalidPagination, p.Page)
		}
		q.Page = n
	}

	q.PageSize = defaultPageSize
	if p.PageSize != "" {
		n, err := strconv.Atoi(p.PageSize)
		if err != nil || n < 1 {
			return q, fmt.Errorf("%w: pageSize %q", ErrInvalidPagination, p.PageSize)
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		q.PageSize = n
	}

	return q, nil
}

// Pagination describes one page of a larger group list
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"total_items"`
}

// AnalyticsPage is one page of grouped analytics
type AnalyticsPage struct {
	Overall    OverallStats `json:"overall"`
	Data       []GroupStats `json:"data"`
	Pagination Pagination   `json:"pagination"`
	Group      string       `json:"group"`
	Strategy   string       `json:"deduplication"`
}

// Analytics answers aggregation queries over stored results
type Analytics struct {
	results ResultStore
}

// NewAnalytics creates the analytics service
func NewAnalytics(results ResultStore) *Analytics {
	return &Analytics{results: results}
}

// Query runs the full pipeline: search, deduplicate, aggregate, paginate
// the resulting groups.
func (a *Analytics) Query(ctx context.Context, q AnalyticsQuery) (*AnalyticsPage, error) {
	results, err := a.results.Search(ctx, q.Filter)
	if err != nil {
		return nil, err
	}

	deduped := Deduplicate(asRefs(results), q.Strategy)
	analysis := Aggregate(deduped, q.Group)

	page := &AnalyticsPage{
		Overall: analysis.Overall,
		Data:    pageSlice(analysis.Groups, q.Page, q.PageSize),
		Pagination: Pagination{
			Page:       q.Page,
			PageSize:   q.PageSize,
			TotalItems: len(analysis.Groups),
		},
		Group:    string(q.Group),
		Strategy: string(q.Strategy),
	}
	return page, nil
}

// Analyze runs search, deduplication and aggregation without pagination,
// for the fixed analysis endpoints.
func (a *Analytics) Analyze(ctx context.Context, filter model.ResultFilter, dim GroupDimension, strategy Strategy) (*Analysis, error) {
	results, err := a.results.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Aggregate(Deduplicate(asRefs(results), strategy), dim), nil
}

func asRefs(results []model.Result) []*model.Result {
	refs := make([]*model.Result, len(results))
	for i := range results {
		refs[i] = &results[i]
	}
	return refs
}

func pageSlice(groups []GroupStats, page, size int) []GroupStats {
	start := (page - 1) * size
	if start >= len(groups) {
		return []GroupStats{}
	}
	end := start + size
	if end > len(groups) {
		end = len(groups)
	}
	return groups[start:end]
}
