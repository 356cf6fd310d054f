package pagerange

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidSelection is returned when an expression selects no page of the document.
var ErrInvalidSelection = errors.New("no valid pages selected")

// Parse resolves a page-range expression such as "1-3,5,8-9" against a
// document of total pages. Numbers in the expression are 1-based; the result
// holds 0-based indices in strictly ascending order without duplicates.
//
// An empty expression selects every page. Ranges are clamped to [1,total],
// single numbers outside that interval are dropped. Token order in the
// expression never affects the order of the result.
func Parse(expr string, total int) ([]int, error) {
	if strings.TrimSpace(expr) == "" {
		return All(total), nil
	}

	selected := make(map[int]struct{})
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if a, b, ok := strings.Cut(part, "-"); ok {
			start, err := atoi(a)
			if err != nil {
				return nil, malformed(part)
			}
			end, err := atoi(b)
			if err != nil {
				return nil, malformed(part)
			}
			start = max(start, 1)
			end = min(end, total)
			for n := start; n <= end; n++ {
				selected[n-1] = struct{}{}
			}
			continue
		}
		n, err := atoi(part)
		if err != nil {
			return nil, malformed(part)
		}
		if n >= 1 && n <= total {
			selected[n-1] = struct{}{}
		}
	}

	if len(selected) == 0 {
		return nil, ErrInvalidSelection
	}
	out := make([]int, 0, len(selected))
	for i := range selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// All returns the identity selection [0, total-1].
func All(total int) []int {
	if total <= 0 {
		return []int{}
	}
	idx := make([]int, total)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// PageNumbers converts 0-based indices into 1-based page numbers.
func PageNumbers(indices []int) []int {
	nrs := make([]int, len(indices))
	for i, idx := range indices {
		nrs[i] = idx + 1
	}
	return nrs
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func malformed(token string) error {
	return fmt.Errorf("%w: malformed page token %q", ErrInvalidSelection, token)
}
