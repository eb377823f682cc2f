// Package query parses list query strings (searchTerm, filters, sort, fields,
// page, limit) and applies them to gorm queries against a column whitelist.
package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps Offset well inside int range
	MaxPage = math.MaxInt32
)

// SortField is one key of a sort expression
type SortField struct {
	Field string
	Desc  bool
}

// Params holds the parsed list parameters
type Params struct {
	SearchTerm string
	Filters    map[string]string
	Sort       []SortField
	Fields     []string
	Page       int
	Limit      int
}

// Meta is the pagination block returned alongside list data
type Meta struct {
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"total_page"`
}

// Schema whitelists the columns a resource exposes to list queries.
// Map keys are query-string names, values are database columns.
type Schema struct {
	Searchable  []string
	Filterable  map[string]string
	Sortable    map[string]string
	Selectable  map[string]string
	DefaultSort string
}

// FromEcho parses list params from the request query string.
// Only keys named in filterKeys are collected as filters.
func FromEcho(c echo.Context, filterKeys ...string) Params {
	p := Params{
		SearchTerm: strings.TrimSpace(c.QueryParam("searchTerm")),
		Filters:    map[string]string{},
		Sort:       ParseSort(c.QueryParam("sort")),
		Fields:     splitList(c.QueryParam("fields")),
		Page:       atoiDefault(c.QueryParam("page"), DefaultPage),
		Limit:      atoiDefault(c.QueryParam("limit"), DefaultLimit),
	}
	for _, key := range filterKeys {
		if v := strings.TrimSpace(c.QueryParam(key)); v != "" {
			p.Filters[key] = v
		}
	}
	return p.Normalize()
}

// Normalize clamps page and limit into range
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Filters == nil {
		p.Filters = map[string]string{}
	}
	return p
}

// Offset returns the number of rows to skip
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// NewMeta builds the pagination block for a total row count
func NewMeta(p Params, total int64) Meta {
	return Meta{
		Page:      p.Page,
		Limit:     p.Limit,
		Total:     total,
		TotalPage: int(math.Ceil(float64(total) / float64(p.Limit))),
	}
}

// ParseSort parses "-created_at,name" into sort fields
func ParseSort(raw string) []SortField {
	var out []SortField
	for _, part := range splitList(raw) {
		if strings.HasPrefix(part, "-") {
			out = append(out, SortField{Field: strings.TrimPrefix(part, "-"), Desc: true})
		} else {
			out = append(out, SortField{Field: part})
		}
	}
	return out
}

// Filter applies search and filters to db. Unknown keys are ignored.
func Filter(db *gorm.DB, p Params, s Schema) *gorm.DB {
	if p.SearchTerm != "" && len(s.Searchable) > 0 {
		conds := make([]string, 0, len(s.Searchable))
		args := make([]interface{}, 0, len(s.Searchable))
		like := "%" + escapeLike(p.SearchTerm) + "%"
		for _, col := range s.Searchable {
			conds = append(conds, col+" ILIKE ?")
			args = append(args, like)
		}
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	for key, value := range p.Filters {
		col, ok := s.Filterable[key]
		if !ok {
			continue
		}
		values := splitList(value)
		if len(values) > 1 {
			db = db.Where(fmt.Sprintf("%s IN ?", col), values)
		} else {
			db = db.Where(fmt.Sprintf("%s = ?", col), value)
		}
	}
	return db
}

// Shape applies ordering, projection and pagination to db
func Shape(db *gorm.DB, p Params, s Schema) *gorm.DB {
	ordered := false
	for _, sf := range p.Sort {
		col, ok := s.Sortable[sf.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		db = db.Order(col + " " + dir)
		ordered = true
	}
	if !ordered && s.DefaultSort != "" {
		db = db.Order(s.DefaultSort)
	}

	if cols := selectColumns(p.Fields, s.Selectable); len(cols) > 0 {
		db = db.Select(cols)
	}

	return db.Offset(p.Offset()).Limit(p.Limit)
}

func selectColumns(fields []string, selectable map[string]string) []string {
	if len(fields) == 0 || len(selectable) == 0 {
		return nil
	}
	cols := []string{"id"}
	for _, f := range fields {
		if col, ok := selectable[f]; ok && col != "id" {
			cols = append(cols, col)
		}
	}
	if len(cols) == 1 {
		return nil
	}
	return cols
}

// MatchesSearch reports whether term occurs case-insensitively in any value.
// Used by in-memory stores to mirror the ILIKE search.
func MatchesSearch(term string, values ...string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// MatchesFilter reports whether actual equals filter or one of its comma-separated values
func MatchesFilter(filter, actual string) bool {
	for _, v := range splitList(filter) {
		if strings.EqualFold(v, actual) {
			return true
		}
	}
	return false
}

// Window returns the [start, end) slice bounds of the requested page
func Window(total int, p Params) (int, int) {
	start := p.Offset()
	if start < 0 || start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func atoiDefault(raw string, def int) int {
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	return def
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
