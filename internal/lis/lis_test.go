package lis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIndices(t *testing.T) {
	tests := []struct {
		name string
		seq  []int
		want []int
	}{
		{name: "empty", seq: nil, want: nil},
		{name: "single", seq: []int{7}, want: []int{0}},
		{name: "already sorted", seq: []int{0, 1, 2, 3}, want: []int{0, 1, 2, 3}},
		{name: "swap", seq: []int{1, 0}, want: []int{1}},
		{name: "reversed", seq: []int{3, 2, 1, 0}, want: []int{3}},
		{name: "classic", seq: []int{3, 1, 2, 0, 4}, want: []int{1, 2, 4}},
		{name: "holes are skipped", seq: []int{-1, 0, -1, 1}, want: []int{1, 3}},
		{name: "hole at end", seq: []int{1, 0, -1}, want: []int{1}},
		{name: "only holes", seq: []int{-1, -1}, want: nil},
		{name: "move one to front", seq: []int{4, 0, 1, 2, 3}, want: []int{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Indices(tt.seq)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Indices(%v) mismatch (-want +got):\n%s", tt.seq, diff)
			}
		})
	}
}

func TestIndicesIsIncreasing(t *testing.T) {
	seq := []int{9, 2, 8, -1, 3, 7, 4, 1, 6, 5, 0}
	got := Indices(seq)
	if len(got) != 4 {
		t.Fatalf("expected an increasing run of length 4, got %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("positions not ascending: %v", got)
		}
		if seq[got[i]] <= seq[got[i-1]] {
			t.Fatalf("values not increasing: %v", got)
		}
	}
}
