package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows any page can request.
	MaxLimit = 100
)

// Params holds page-number pagination inputs from controllers or services.
// A zero Page means the caller did not ask for pagination.
type Params struct {
	Page  int
	Limit int
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Enabled reports whether a page was requested.
func (p Params) Enabled() bool {
	return p.Page > 0
}

// Offset returns the number of rows to skip for the requested page.
func (p Params) Offset() int {
	if !p.Enabled() {
		return 0
	}
	return (p.Page - 1) * NormalizeLimit(p.Limit)
}

// TotalPages returns how many pages total rows span at the normalized limit.
func TotalPages(total int64, limit int) int {
	if total <= 0 {
		return 0
	}
	size := int64(NormalizeLimit(limit))
	return int((total + size - 1) / size)
}

// Parse reads raw _page/_limit values. Empty strings leave the field unset.
func Parse(page, limit string) (Params, error) {
	var params Params
	if v := strings.TrimSpace(page); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("invalid page %q", page)
		}
		params.Page = n
	}
	if v := strings.TrimSpace(limit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("invalid limit %q", limit)
		}
		params.Limit = n
	}
	return params, nil
}
