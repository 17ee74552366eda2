// Package query parses list parameters (pagination, sort, search, filters) and
// builds the pagination meta returned with list responses.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Page describes one page of a list request.
type Page struct {
	Page    int
	PerPage int
	Sort    string
	Desc    bool
	Search  string
	Filters map[string]string
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int { return (p.Page - 1) * p.PerPage }

// CacheKey is a stable string for the page, used to key cached list results.
func (p Page) CacheKey() string {
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "p=%d&n=%d&s=%s&d=%t&q=%s", p.Page, p.PerPage, p.Sort, p.Desc, p.Search)
	for _, k := range keys {
		fmt.Fprintf(&b, "&%s=%s", k, p.Filters[k])
	}
	return b.String()
}

// Options restrict which sort columns and filters a resource accepts.
type Options struct {
	SortColumns []string
	DefaultSort string
	Filters     []string
}

// Parse reads page, per_page, sort, order, search and whitelisted filter
// parameters. Unknown sort columns fall back to the default; out-of-range page
// sizes are clamped.
func Parse(values url.Values, opts Options) Page {
	p := Page{
		Page:    atoiDefault(values.Get("page"), 1),
		PerPage: atoiDefault(values.Get("per_page"), DefaultPerPage),
		Sort:    opts.DefaultSort,
		Desc:    true,
		Search:  strings.ToLower(strings.TrimSpace(values.Get("search"))),
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if s := values.Get("sort"); s != "" {
		for _, allowed := range opts.SortColumns {
			if s == allowed {
				p.Sort = s
				break
			}
		}
	}
	if strings.EqualFold(values.Get("order"), "asc") {
		p.Desc = false
	}
	for _, f := range opts.Filters {
		if v := strings.TrimSpace(values.Get(f)); v != "" {
			if p.Filters == nil {
				p.Filters = map[string]string{}
			}
			p.Filters[f] = v
		}
	}
	return p
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewMeta builds pagination meta for total matching rows.
func NewMeta(p Page, total int) Meta {
	pages := 0
	if p.PerPage > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return Meta{Page: p.Page, PerPage: p.PerPage, Total: total, TotalPages: pages}
}
