package pagination_test

import (
	"slices"
	"testing"

	"carrefour/harvester/internal/pagination"

	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	cases := []struct {
		total    int
		pageSize int
		want     int
	}{
		{total: 0, pageSize: 100, want: 1},
		{total: 1, pageSize: 100, want: 1},
		{total: 100, pageSize: 100, want: 1},
		{total: 101, pageSize: 100, want: 2},
		{total: 250, pageSize: 100, want: 3},
		{total: 300, pageSize: 100, want: 3},
		{total: 250, pageSize: 0, want: 3},
		{total: 7, pageSize: 2, want: 4},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, pagination.PageCount(tc.total, tc.pageSize), "total=%d pageSize=%d", tc.total, tc.pageSize)
	}
}

func TestOffsets(t *testing.T) {
	cases := []struct {
		name  string
		total int
		want  []int
	}{
		{name: "empty category", total: 0, want: nil},
		{name: "single partial page", total: 42, want: nil},
		{name: "exactly one page", total: 100, want: nil},
		{name: "one item over", total: 101, want: []int{100}},
		{name: "two and a half pages", total: 250, want: []int{100, 200}},
		{name: "exact multiple", total: 300, want: []int{100, 200}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := slices.Collect(pagination.Offsets(tc.total, 100))
			require.Equal(t, tc.want, got)
			// 1 initial request plus the follow-ups
			require.Equal(t, pagination.PageCount(tc.total, 100), len(got)+1)
		})
	}
}

func TestOffsets_Restartable(t *testing.T) {
	seq := pagination.Offsets(350, 100)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Equal(t, []int{100, 200, 300}, first)
	require.Equal(t, first, second)
}

func TestOffsets_StopsEarly(t *testing.T) {
	var seen []int
	for offset := range pagination.Offsets(1000, 100) {
		seen = append(seen, offset)
		if offset == 300 {
			break
		}
	}
	require.Equal(t, []int{100, 200, 300}, seen)
}
