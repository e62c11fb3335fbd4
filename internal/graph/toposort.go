package graph

import (
	"fmt"
	"slices"
)

// materializationOrder orders the classes of the graph so that every base
// class is materialized before the classes derived from it. Among classes
// whose bases are all placed, the one listed first in the description goes
// next, so the order is stable across runs.
//
// basesOf(i) yields the class indices i derives from. When inheritance
// loops, the classes placed so far are returned with the ones left over and
// ErrCycle.
func materializationOrder(n int, basesOf func(i int) []int) (order, unordered []int, err error) {
	if n <= 0 {
		return nil, nil, nil
	}

	pending := make([]int, n)
	derived := make([][]int, n)

	for i := range n {
		for _, b := range basesOf(i) {
			if b < 0 || b >= n {
				return nil, nil, fmt.Errorf("class %d names base index %d outside [0, %d)", i, b, n)
			}

			pending[i]++
			derived[b] = append(derived[b], i)
		}
	}

	var ready []int

	for i, p := range pending {
		if p == 0 {
			ready = append(ready, i)
		}
	}

	order = make([]int, 0, n)

	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, d := range derived[next] {
			if pending[d]--; pending[d] == 0 {
				k, _ := slices.BinarySearch(ready, d)
				ready = slices.Insert(ready, k, d)
			}
		}
	}

	if len(order) == n {
		return order, nil, nil
	}

	for i, p := range pending {
		if p > 0 {
			unordered = append(unordered, i)
		}
	}

	return order, unordered, ErrCycle
}
