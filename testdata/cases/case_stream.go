package main

import "iter"

//trace:instrument(target = "streams", skip_all)
func Numbers(limit int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range limit {
			if !yield(i) {
				return
			}
		}
	}
}

//trace:instrument(seq = false, ret)
func Ready(n int) iter.Seq[int] {
	return nil
}
