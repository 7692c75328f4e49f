// Package pagination describes cursor-offset pagination independently of how
// a single page is fetched.
//
// The first request always uses offset 0 and reports the total item count.
// Offsets then yields the follow-up offsets for that total:
//
//	for offset := range pagination.Offsets(first.TotalCount, 100) {
//		page, err := fetch(ctx, offset)
//		...
//	}
package pagination

import "iter"

// MaxPageSize is the largest page the catalog API accepts.
const MaxPageSize = 100

// PageCount returns how many requests are needed to read total items,
// including the first one. It is never less than 1.
func PageCount(total, pageSize int) int {
	if pageSize < 1 {
		pageSize = MaxPageSize
	}
	if total <= pageSize {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Offsets yields the offsets that follow the first page: pageSize,
// 2*pageSize, ... strictly below total. The sequence is finite and may be
// ranged over any number of times.
func Offsets(total, pageSize int) iter.Seq[int] {
	if pageSize < 1 {
		pageSize = MaxPageSize
	}
	return func(yield func(int) bool) {
		for offset := pageSize; offset < total; offset += pageSize {
			if !yield(offset) {
				return
			}
		}
	}
}
