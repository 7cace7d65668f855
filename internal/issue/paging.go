package issue

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PageSize is the number of issues on one index page
const PageSize = 50

const maxOffset = 10000000

// UnknownTotal stands in for a total the backend did not report
const UnknownTotal = maxOffset

// NormalizeOffset parses an index offset from a query string. Invalid or
// out of range values become zero; valid ones are rounded down to a page
// boundary.
func NormalizeOffset(raw string) int {
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 || offset > maxOffset {
		return 0
	}
	return offset / PageSize * PageSize
}

// LastPageOffset returns the offset of the last page for total issues
func LastPageOffset(total int) int {
	return max(total-PageSize, 0)
}

// Pagination renders the navigation links of an index page
func Pagination(offset, total int, sort string) string {
	link := func(off int, text string) string {
		q := url.Values{}
		q.Set("offset", strconv.Itoa(off))
		if sort != "" {
			q.Set("sort", sort)
		}
		return `<a href="index.html?` + strings.ReplaceAll(q.Encode(), "&", "&amp;") + `">` + text + "</a>"
	}

	parts := []string{link(0, "First Page")}
	if offset > 0 {
		parts = append(parts, link(max(offset-PageSize, 0), "Previous Page"))
	}
	if total > 0 {
		count := min(PageSize, total-offset)
		parts = append(parts, fmt.Sprintf("Displaying from %d to %d of %d", offset, offset+count, total))
	}
	if offset+PageSize <= total {
		parts = append(parts, link(offset+PageSize, "Next Page"))
	}
	return strings.Join(parts, " | ")
}
