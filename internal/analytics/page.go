package analytics

// Paginate returns the window [start, start+limit) of list, clamped to
// its bounds. A non-positive limit returns an empty slice. The returned
// slice is a copy, safe to hold after the engine lock is released.
func Paginate[T any](list []T, start, limit int) []T {
	if start < 0 || start >= len(list) || limit <= 0 {
		return []T{}
	}

	end := start + limit
	if end > len(list) {
		end = len(list)
	}

	out := make([]T, end-start)
	copy(out, list[start:end])
	return out
}
