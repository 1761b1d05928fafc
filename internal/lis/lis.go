// Package lis computes longest increasing subsequences for keyed list
// reconciliation.
package lis

// Indices returns the positions of one longest strictly increasing
// subsequence of seq, in ascending order.
//
// Negative entries are holes (children whose key did not exist before) and
// never take part in the result, so the result is empty only when every
// entry is a hole. Runs in O(n log n).
func Indices(seq []int) []int {
	if len(seq) == 0 {
		return nil
	}

	prev := make([]int, len(seq))
	// tails[k] is the index of the smallest tail of an increasing run of length k+1
	tails := make([]int, 0, len(seq))

	for i, v := range seq {
		if v < 0 {
			continue
		}
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[i] = tails[lo-1]
		} else {
			prev[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}

	if len(tails) == 0 {
		return nil
	}

	out := make([]int, len(tails))
	k := tails[len(tails)-1]
	for j := len(out) - 1; j >= 0; j-- {
		out[j] = k
		k = prev[k]
	}
	return out
}
