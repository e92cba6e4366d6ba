package domain

// ClampIndex bounds idx to [0, n].
func ClampIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}

// InsertAt returns a new slice with v inserted at idx, clamped to
// [0, len(items)], and the index used.
func InsertAt[T any](items []T, idx int, v T) ([]T, int) {
	idx = ClampIndex(idx, len(items))
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:idx]...)
	out = append(out, v)
	out = append(out, items[idx:]...)
	return out, idx
}

// Move returns a new slice with the element at from relocated so that it ends
// up at index to in the result. to is clamped to the valid range.
func Move[T any](items []T, from, to int) []T {
	if from < 0 || from >= len(items) {
		return append([]T(nil), items...)
	}
	v := items[from]
	rest := make([]T, 0, len(items)-1)
	rest = append(rest, items[:from]...)
	rest = append(rest, items[from+1:]...)
	out, _ := InsertAt(rest, to, v)
	return out
}
