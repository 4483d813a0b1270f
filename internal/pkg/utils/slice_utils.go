package utils

// BatchStrings splits items into batches of at most batchSize.
func BatchStrings(items []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = len(items)
	}
	if len(items) == 0 {
		return [][]string{}
	}

	var batches [][]string
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// SafeDeref returns get(*p), or the zero value of V when p is nil.
func SafeDeref[T, V any](p *T, get func(T) V) V {
	if p == nil {
		var zero V
		return zero
	}
	return get(*p)
}
